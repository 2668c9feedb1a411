package http

import (
	"errors"
	"net/http"

	"github.com/veloramarket/velora/internal/auth/abuse"
	"github.com/veloramarket/velora/internal/auth/service"
	"github.com/veloramarket/velora/pkg/cookiex"
	"github.com/veloramarket/velora/pkg/httpx"
	"github.com/veloramarket/velora/pkg/jwtx"
)

// ServiceName tags error envelopes so clients can tell which service
// rejected the request.
const ServiceName = "auth-service"

// SessionHandler serves the session lifecycle for one role. The router
// mounts two instances, one under /user and one under /seller.
type SessionHandler struct {
	Service *service.SessionService
	Bridge  *cookiex.Bridge
}

func (h *SessionHandler) role() jwtx.Role { return h.Service.Role }

func (h *SessionHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	req, err := httpx.DecodeValid[registerRequest](r)
	if err != nil {
		httpx.WriteError(w, r, ServiceName, err)
		return
	}

	err = h.Service.RequestRegistration(r.Context(), service.RegistrationRequest{
		Email: req.Email,
		Name:  req.Name,
	})
	if err != nil {
		if errors.Is(err, service.ErrAlreadyRegistered) {
			err = httpx.NewValidationError(h.alreadyRegisteredMessage(), nil)
		}
		httpx.WriteError(w, r, ServiceName, guardError(err))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, messageResponse{Message: "OTP sent to email. Please check your account."})
}

func (h *SessionHandler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var vreq service.VerificationRequest
	if h.role() == jwtx.RoleSeller {
		req, err := httpx.DecodeValid[sellerVerifyRequest](r)
		if err != nil {
			httpx.WriteError(w, r, ServiceName, err)
			return
		}
		vreq = service.VerificationRequest{
			Email:    req.Email,
			OTP:      req.OTP,
			Password: req.Password,
			Name:     req.Name,
			Phone:    req.Phone,
			Country:  req.Country,
		}
	} else {
		req, err := httpx.DecodeValid[verifyRequest](r)
		if err != nil {
			httpx.WriteError(w, r, ServiceName, err)
			return
		}
		vreq = service.VerificationRequest{
			Email:    req.Email,
			OTP:      req.OTP,
			Password: req.Password,
			Name:     req.Name,
		}
	}

	user, pair, err := h.Service.CompleteRegistration(r.Context(), vreq)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyRegistered) {
			err = httpx.NewValidationError(h.alreadyRegisteredMessage(), nil)
		}
		httpx.WriteError(w, r, ServiceName, guardError(err))
		return
	}

	h.Bridge.WriteSession(w, h.role(), pair, user.Status)
	httpx.WriteJSON(w, http.StatusCreated, sessionResponse{
		Status:      "success",
		Message:     h.registeredMessage(),
		AccessToken: pair.AccessToken,
		Data:        user,
	})
}

func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	req, err := httpx.DecodeValid[loginRequest](r)
	if err != nil {
		httpx.WriteError(w, r, ServiceName, err)
		return
	}

	user, pair, err := h.Service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			err = httpx.NewValidationError("Invalid email or password", nil)
		}
		httpx.WriteError(w, r, ServiceName, err)
		return
	}

	h.Bridge.WriteSession(w, h.role(), pair, user.Status)
	httpx.WriteJSON(w, http.StatusOK, sessionResponse{
		Status:      "success",
		Message:     "Login successful",
		AccessToken: pair.AccessToken,
		Data:        user,
	})
}

// HandleRefresh reads the refresh token from the Authorization header; the
// gateway lifts it there from the role's refresh cookie.
func (h *SessionHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	token, _ := httpx.BearerToken(r)

	user, pair, err := h.Service.Refresh(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRefresh):
			err = httpx.NewUnauthorizedError()
		case errors.Is(err, service.ErrUnknownAccount):
			err = httpx.NewValidationError(h.accountNotFoundMessage(), nil)
		}
		httpx.WriteError(w, r, ServiceName, err)
		return
	}

	h.Bridge.WriteSession(w, h.role(), pair, user.Status)
	httpx.WriteJSON(w, http.StatusOK, sessionResponse{
		Status:      "success",
		Message:     "Token refreshed successfully",
		AccessToken: pair.AccessToken,
		Data:        user,
	})
}

func (h *SessionHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	req, err := httpx.DecodeValid[forgotPasswordRequest](r)
	if err != nil {
		httpx.WriteError(w, r, ServiceName, err)
		return
	}

	if err := h.Service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		if errors.Is(err, service.ErrUnknownAccount) {
			err = httpx.NewValidationError("No user found with this email", nil)
		}
		httpx.WriteError(w, r, ServiceName, guardError(err))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, messageResponse{Message: "OTP sent to email. Please check your account."})
}

func (h *SessionHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	req, err := httpx.DecodeValid[resetPasswordRequest](r)
	if err != nil {
		httpx.WriteError(w, r, ServiceName, err)
		return
	}

	if err := h.Service.ResetPassword(r.Context(), req.Email, req.Token, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownAccount):
			err = httpx.NewValidationError(h.accountNotFoundMessage(), nil)
		case errors.Is(err, service.ErrSamePassword):
			err = httpx.NewValidationError("New password must be different from the old password", nil)
		}
		httpx.WriteError(w, r, ServiceName, guardError(err))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, statusResponse{Status: "success", Message: "Password reset successful"})
}

func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.Bridge.ClearSession(w, h.role())
	httpx.WriteJSON(w, http.StatusOK, statusResponse{Status: "success", Message: "Logged out successfully"})
}

func (h *SessionHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	auth, ok := httpx.AuthFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, r, ServiceName, httpx.NewUnauthorizedError())
		return
	}

	user, err := h.Service.Profile(r.Context(), auth.PrincipalID)
	if err != nil {
		if errors.Is(err, service.ErrUnknownAccount) {
			err = httpx.NewValidationError(h.notAuthenticatedMessage(), nil)
		}
		httpx.WriteError(w, r, ServiceName, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, profileResponse{Status: "success", Data: user})
}

func (h *SessionHandler) alreadyRegisteredMessage() string {
	if h.role() == jwtx.RoleSeller {
		return "Email is already registered as seller"
	}
	return "Email is already registered"
}

func (h *SessionHandler) registeredMessage() string {
	if h.role() == jwtx.RoleSeller {
		return "Seller registered successfully"
	}
	return "User registered successfully"
}

func (h *SessionHandler) accountNotFoundMessage() string {
	if h.role() == jwtx.RoleSeller {
		return "No seller found with this email"
	}
	return "No user found with this email"
}

func (h *SessionHandler) notAuthenticatedMessage() string {
	if h.role() == jwtx.RoleSeller {
		return "Seller not authenticated"
	}
	return "User not authenticated"
}

// guardError exposes throttling and OTP failures as validation errors;
// their text is part of the client contract. Anything else passes through
// untouched.
func guardError(err error) error {
	var invalid *abuse.InvalidOTPError
	if errors.As(err, &invalid) {
		return httpx.NewValidationError(invalid.Error(), nil)
	}

	for _, sentinel := range []error{
		abuse.ErrLocked,
		abuse.ErrSpamLocked,
		abuse.ErrCooldown,
		abuse.ErrTooManyRequests,
		abuse.ErrAttemptsExhausted,
		abuse.ErrExpired,
		abuse.ErrResetTokenInvalid,
	} {
		if errors.Is(err, sentinel) {
			return httpx.NewValidationError(sentinel.Error(), nil)
		}
	}
	return err
}
