package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/veloramarket/velora/internal/auth/abuse"
	"github.com/veloramarket/velora/internal/auth/domain"
	"github.com/veloramarket/velora/internal/auth/store/drivers/sqlite"
	"github.com/veloramarket/velora/pkg/idx"
	"github.com/veloramarket/velora/pkg/jwtx"
)

var (
	testKeyOnce sync.Once
	testKeyPEM  []byte
)

func testPrivateKeyPEM(t *testing.T) []byte {
	t.Helper()
	testKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKeyPEM = pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(key),
		})
	})
	return testKeyPEM
}

// captureMailer records the last delivery instead of sending anything.
type captureMailer struct {
	mu       sync.Mutex
	otp      string
	resetURL string
}

func (m *captureMailer) SendOTP(_ context.Context, _, _, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.otp = code
	return nil
}

func (m *captureMailer) SendPasswordReset(_ context.Context, _, _, resetURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetURL = resetURL
	return nil
}

func (m *captureMailer) lastOTP() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.otp
}

func (m *captureMailer) lastResetToken(t *testing.T) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := url.Parse(m.resetURL)
	require.NoError(t, err)
	return u.Query().Get("token")
}

func newTestService(t *testing.T, role jwtx.Role) (*SessionService, *miniredis.Miniredis, *captureMailer) {
	t.Helper()

	codec, err := jwtx.NewCodec(jwtx.CodecOptions{
		PrivateKeyPEM: testPrivateKeyPEM(t),
		Issuer:        "velora-auth",
		Audience:      "velora-api",
	})
	require.NoError(t, err)

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	mailer := &captureMailer{}

	svc := &SessionService{
		Role:        role,
		Store:       st,
		Codec:       codec,
		Guard:       abuse.NewGuard(rdb, role),
		Mailer:      mailer,
		FrontendURL: "http://localhost:8000",
	}
	return svc, mr, mailer
}

func register(t *testing.T, svc *SessionService, mr *miniredis.Miniredis, mailer *captureMailer, email, password string) string {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, svc.RequestRegistration(ctx, RegistrationRequest{Email: email, Name: "Alice"}))

	user, pair, err := svc.CompleteRegistration(ctx, VerificationRequest{
		Email:    email,
		OTP:      mailer.lastOTP(),
		Password: password,
		Name:     "Alice",
	})
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	require.NotEmpty(t, pair.AccessToken)

	// Clear the issue cooldown so follow-up flows in the same test can
	// request again.
	mr.FastForward(3 * time.Minute)
	return user.ID
}

func TestRegistrationFlow(t *testing.T) {
	ctx := context.Background()
	svc, mr, mailer := newTestService(t, jwtx.RoleUser)

	require.NoError(t, svc.RequestRegistration(ctx, RegistrationRequest{Email: "Alice@Example.com", Name: "Alice"}))
	code := mailer.lastOTP()
	require.Len(t, code, 6)

	t.Run("issue arms the cooldown", func(t *testing.T) {
		err := svc.RequestRegistration(ctx, RegistrationRequest{Email: "alice@example.com", Name: "Alice"})
		require.ErrorIs(t, err, abuse.ErrCooldown)
	})

	user, pair, err := svc.CompleteRegistration(ctx, VerificationRequest{
		Email:    "alice@example.com",
		OTP:      code,
		Password: "s3cret-pass",
		Name:     "Alice",
	})
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", user.Email)
	require.Equal(t, jwtx.RoleUser, user.Role)
	require.Empty(t, user.PasswordHash)

	claims, err := svc.Codec.Verify(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.Subject)
	require.Equal(t, jwtx.RoleUser, claims.Role)

	t.Run("code is single use", func(t *testing.T) {
		_, _, err := svc.CompleteRegistration(ctx, VerificationRequest{
			Email:    "alice@example.com",
			OTP:      code,
			Password: "s3cret-pass",
			Name:     "Alice",
		})
		require.ErrorIs(t, err, abuse.ErrExpired)
	})

	t.Run("registered email is refused", func(t *testing.T) {
		mr.FastForward(3 * time.Minute)
		err := svc.RequestRegistration(ctx, RegistrationRequest{Email: "alice@example.com", Name: "Alice"})
		require.ErrorIs(t, err, ErrAlreadyRegistered)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc, mr, mailer := newTestService(t, jwtx.RoleUser)
	userID := register(t, svc, mr, mailer, "alice@example.com", "s3cret-pass")

	t.Run("valid credentials", func(t *testing.T) {
		user, pair, err := svc.Login(ctx, "alice@example.com", "s3cret-pass")
		require.NoError(t, err)
		require.Equal(t, userID, user.ID)
		require.Empty(t, user.PasswordHash)
		require.NotEmpty(t, pair.AccessToken)
		require.NotEmpty(t, pair.RefreshToken)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := svc.Login(ctx, "alice@example.com", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, _, err := svc.Login(ctx, "nobody@example.com", "s3cret-pass")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("account without a password", func(t *testing.T) {
		require.NoError(t, svc.Store.Users().Create(ctx, domain.User{
			ID:     idx.New().String(),
			Role:   jwtx.RoleUser,
			Email:  "sso@example.com",
			Name:   "Sso Alice",
			Status: domain.StatusActive,
		}))

		user, pair, err := svc.Login(ctx, "sso@example.com", "anything")
		require.NoError(t, err)
		require.Equal(t, "sso@example.com", user.Email)
		require.NotEmpty(t, pair.AccessToken)
		require.NotEmpty(t, pair.RefreshToken)
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	svc, mr, mailer := newTestService(t, jwtx.RoleUser)
	userID := register(t, svc, mr, mailer, "alice@example.com", "s3cret-pass")

	_, pair, err := svc.Login(ctx, "alice@example.com", "s3cret-pass")
	require.NoError(t, err)

	t.Run("valid refresh token", func(t *testing.T) {
		user, next, err := svc.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
		require.Equal(t, userID, user.ID)
		require.NotEmpty(t, next.AccessToken)
		require.NotEmpty(t, next.RefreshToken)
	})

	t.Run("empty token", func(t *testing.T) {
		_, _, err := svc.Refresh(ctx, "")
		require.ErrorIs(t, err, ErrInvalidRefresh)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, _, err := svc.Refresh(ctx, "not-a-jwt")
		require.ErrorIs(t, err, ErrInvalidRefresh)
	})

	t.Run("role mismatch", func(t *testing.T) {
		sellers, _, _ := newTestService(t, jwtx.RoleSeller)
		_, _, err := sellers.Refresh(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidRefresh)
	})
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()
	svc, mr, mailer := newTestService(t, jwtx.RoleUser)
	register(t, svc, mr, mailer, "alice@example.com", "s3cret-pass")

	t.Run("unknown email", func(t *testing.T) {
		err := svc.RequestPasswordReset(ctx, "nobody@example.com")
		require.ErrorIs(t, err, ErrUnknownAccount)
	})

	require.NoError(t, svc.RequestPasswordReset(ctx, "alice@example.com"))
	token := mailer.lastResetToken(t)
	require.Len(t, token, 64)

	t.Run("unchanged password is refused", func(t *testing.T) {
		err := svc.ResetPassword(ctx, "alice@example.com", token, "s3cret-pass")
		require.ErrorIs(t, err, ErrSamePassword)
	})

	t.Run("wrong token", func(t *testing.T) {
		err := svc.ResetPassword(ctx, "alice@example.com", "bogus", "n3w-pass-123")
		require.ErrorIs(t, err, abuse.ErrResetTokenInvalid)
	})

	require.NoError(t, svc.ResetPassword(ctx, "alice@example.com", token, "n3w-pass-123"))

	t.Run("token is single use", func(t *testing.T) {
		err := svc.ResetPassword(ctx, "alice@example.com", token, "an0ther-pass")
		require.ErrorIs(t, err, abuse.ErrResetTokenInvalid)
	})

	t.Run("new password works, old does not", func(t *testing.T) {
		_, _, err := svc.Login(ctx, "alice@example.com", "n3w-pass-123")
		require.NoError(t, err)

		_, _, err = svc.Login(ctx, "alice@example.com", "s3cret-pass")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestProfile(t *testing.T) {
	ctx := context.Background()
	svc, mr, mailer := newTestService(t, jwtx.RoleSeller)
	sellerID := register(t, svc, mr, mailer, "shop@example.com", "s3cret-pass")

	user, err := svc.Profile(ctx, sellerID)
	require.NoError(t, err)
	require.Equal(t, "shop@example.com", user.Email)
	require.Empty(t, user.PasswordHash)

	t.Run("unknown id", func(t *testing.T) {
		_, err := svc.Profile(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ")
		require.ErrorIs(t, err, ErrUnknownAccount)
	})

	t.Run("empty id", func(t *testing.T) {
		_, err := svc.Profile(ctx, "")
		require.ErrorIs(t, err, ErrUnknownAccount)
	})
}
