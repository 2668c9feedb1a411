package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/veloramarket/velora/internal/auth/abuse"
	"github.com/veloramarket/velora/internal/auth/domain"
	"github.com/veloramarket/velora/internal/auth/store"
	"github.com/veloramarket/velora/pkg/idx"
	"github.com/veloramarket/velora/pkg/jwtx"
	"github.com/veloramarket/velora/pkg/slogx"
)

var (
	ErrAlreadyRegistered  = errors.New("email_already_registered")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidRefresh     = errors.New("invalid_refresh_token")
	ErrUnknownAccount     = errors.New("account_not_found")
	ErrSamePassword       = errors.New("password_unchanged")
)

const bcryptCost = 10

// SessionService drives the OTP registration, login, refresh and password
// reset flows for a single principal role. The user and seller surfaces
// each get their own instance with a role-scoped Guard.
type SessionService struct {
	Role        jwtx.Role
	Store       store.Store
	Codec       *jwtx.Codec
	Guard       *abuse.Guard
	Mailer      Mailer
	FrontendURL string
}

// RegistrationRequest carries the first step of signup. Phone and Country
// are only accepted on the seller surface.
type RegistrationRequest struct {
	Email string
	Name  string
}

// VerificationRequest carries the second signup step: the emailed code
// plus the account details to persist once it checks out.
type VerificationRequest struct {
	Email    string
	OTP      string
	Password string
	Name     string
	Phone    string
	Country  string
}

// RequestRegistration starts signup by emailing a one time code. It
// refuses addresses that already hold an account for this role and
// enforces the per-email request limits before anything is sent.
func (s *SessionService) RequestRegistration(ctx context.Context, req RegistrationRequest) error {
	email := normalizeEmail(req.Email)

	_, err := s.Store.Users().FindByEmail(ctx, s.Role, email)
	switch {
	case err == nil:
		return ErrAlreadyRegistered
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("lookup account: %w", err)
	}

	if err := s.Guard.EnsureRequestAllowed(ctx, email); err != nil {
		return err
	}
	if err := s.Guard.RecordRequest(ctx, email); err != nil {
		return err
	}

	code, err := s.Guard.Issue(ctx, email)
	if err != nil {
		return err
	}

	if err := s.Mailer.SendOTP(ctx, email, strings.TrimSpace(req.Name), code); err != nil {
		slogx.FromContext(ctx).Error("failed to send otp email",
			slog.Any("error", err),
			slog.String("email", email),
		)
		return fmt.Errorf("send otp email: %w", err)
	}
	return nil
}

// CompleteRegistration consumes the emailed code, creates the account and
// signs its first session.
func (s *SessionService) CompleteRegistration(ctx context.Context, req VerificationRequest) (domain.User, jwtx.TokenPair, error) {
	email := normalizeEmail(req.Email)

	if err := s.Guard.Verify(ctx, email, req.OTP); err != nil {
		return domain.User{}, jwtx.TokenPair{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return domain.User{}, jwtx.TokenPair{}, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:           idx.New().String(),
		Role:         s.Role,
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: string(hash),
		Status:       domain.StatusActive,
		Phone:        strings.TrimSpace(req.Phone),
		Country:      strings.TrimSpace(req.Country),
	}

	if err := s.Store.Users().Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, jwtx.TokenPair{}, ErrAlreadyRegistered
		}
		return domain.User{}, jwtx.TokenPair{}, fmt.Errorf("create account: %w", err)
	}

	pair, err := s.Codec.IssuePair(user.ID, s.Role)
	if err != nil {
		return domain.User{}, jwtx.TokenPair{}, err
	}

	user.PasswordHash = ""
	return user, pair, nil
}

// Login verifies the password and signs a fresh session. Unknown emails
// and wrong passwords are indistinguishable to the caller.
func (s *SessionService) Login(ctx context.Context, email, password string) (domain.User, jwtx.TokenPair, error) {
	email = normalizeEmail(email)

	user, err := s.Store.Users().FindByEmailWithPassword(ctx, s.Role, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, jwtx.TokenPair{}, ErrInvalidCredentials
		}
		return domain.User{}, jwtx.TokenPair{}, fmt.Errorf("lookup account: %w", err)
	}

	// Accounts created through an external provider carry no password
	// hash; the password check only applies when one is set.
	if user.PasswordHash != "" {
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
			return domain.User{}, jwtx.TokenPair{}, ErrInvalidCredentials
		}
	}

	pair, err := s.Codec.IssuePair(user.ID, s.Role)
	if err != nil {
		return domain.User{}, jwtx.TokenPair{}, err
	}

	user.PasswordHash = ""
	return user, pair, nil
}

// Refresh exchanges a valid refresh token for a new token pair. The token
// must carry this service's role and reference an account that still
// exists.
func (s *SessionService) Refresh(ctx context.Context, token string) (domain.User, jwtx.TokenPair, error) {
	if token == "" {
		return domain.User{}, jwtx.TokenPair{}, ErrInvalidRefresh
	}

	claims, err := s.Codec.Verify(token)
	if err != nil {
		return domain.User{}, jwtx.TokenPair{}, ErrInvalidRefresh
	}
	if claims.Role != s.Role {
		return domain.User{}, jwtx.TokenPair{}, ErrInvalidRefresh
	}

	user, err := s.Store.Users().FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, jwtx.TokenPair{}, ErrUnknownAccount
		}
		return domain.User{}, jwtx.TokenPair{}, fmt.Errorf("lookup account: %w", err)
	}

	pair, err := s.Codec.IssuePair(user.ID, s.Role)
	if err != nil {
		return domain.User{}, jwtx.TokenPair{}, err
	}
	return user, pair, nil
}

// RequestPasswordReset emails a single-use reset link. It shares the OTP
// request limits so the two mail flows cannot be interleaved to flood an
// inbox.
func (s *SessionService) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	user, err := s.Store.Users().FindByEmail(ctx, s.Role, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnknownAccount
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	if err := s.Guard.EnsureRequestAllowed(ctx, email); err != nil {
		return err
	}
	if err := s.Guard.RecordRequest(ctx, email); err != nil {
		return err
	}

	token, err := generateResetToken()
	if err != nil {
		return err
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s&email=%s",
		strings.TrimSuffix(s.FrontendURL, "/"), token, url.QueryEscape(email))

	if err := s.Mailer.SendPasswordReset(ctx, email, user.Name, resetURL); err != nil {
		slogx.FromContext(ctx).Error("failed to send reset email",
			slog.Any("error", err),
			slog.String("email", email),
		)
		return fmt.Errorf("send reset email: %w", err)
	}

	return s.Guard.SaveResetToken(ctx, email, token)
}

// ResetPassword consumes a reset token and stores the new password. The
// new password must differ from the current one.
func (s *SessionService) ResetPassword(ctx context.Context, email, token, newPassword string) error {
	email = normalizeEmail(email)

	user, err := s.Store.Users().FindByEmailWithPassword(ctx, s.Role, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnknownAccount
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(newPassword)) == nil {
		return ErrSamePassword
	}

	if err := s.Guard.ConsumeResetToken(ctx, email, token); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.Store.Users().UpdatePassword(ctx, s.Role, email, string(hash))
}

// Profile loads the account behind an authenticated session.
func (s *SessionService) Profile(ctx context.Context, principalID string) (domain.User, error) {
	if principalID == "" {
		return domain.User{}, ErrUnknownAccount
	}

	user, err := s.Store.Users().FindByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUnknownAccount
		}
		return domain.User{}, fmt.Errorf("lookup account: %w", err)
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func generateResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
