package http

import (
	"net/mail"
	"strings"
	"unicode"

	"github.com/veloramarket/velora/internal/auth/domain"
	"github.com/veloramarket/velora/pkg/httpx"
)

type registerRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (r registerRequest) Validate() error {
	details := map[string]string{}
	checkEmail(details, r.Email)
	checkName(details, r.Name)
	return asValidationError(details)
}

type verifyRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	OTP      string `json:"otp"`
	Password string `json:"password"`
}

func (r verifyRequest) Validate() error {
	details := map[string]string{}
	checkEmail(details, r.Email)
	checkName(details, r.Name)
	checkOTP(details, r.OTP)
	checkPassword(details, "password", r.Password)
	return asValidationError(details)
}

// sellerVerifyRequest adds the seller-only contact fields on top of the
// shared verification payload.
type sellerVerifyRequest struct {
	verifyRequest
	Phone   string `json:"phone"`
	Country string `json:"country"`
}

func (r sellerVerifyRequest) Validate() error {
	details := map[string]string{}
	checkEmail(details, r.Email)
	checkName(details, r.Name)
	checkOTP(details, r.OTP)
	checkPassword(details, "password", r.Password)
	if len(r.Phone) < 10 {
		details["phone"] = "Phone number must be at least 10 digits long"
	}
	if strings.TrimSpace(r.Country) == "" {
		details["country"] = "Select your country"
	}
	return asValidationError(details)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginRequest) Validate() error {
	details := map[string]string{}
	checkEmail(details, r.Email)
	if len(r.Password) < 8 {
		details["password"] = "Password must be at least 8 characters long"
	}
	return asValidationError(details)
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (r forgotPasswordRequest) Validate() error {
	details := map[string]string{}
	checkEmail(details, r.Email)
	return asValidationError(details)
}

type resetPasswordRequest struct {
	Email           string `json:"email"`
	Token           string `json:"token"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (r resetPasswordRequest) Validate() error {
	details := map[string]string{}
	checkEmail(details, r.Email)
	if r.Token == "" {
		details["token"] = "Reset token is required"
	}
	checkPassword(details, "newPassword", r.NewPassword)
	if r.ConfirmPassword != r.NewPassword {
		details["confirmPassword"] = "Passwords do not match"
	}
	return asValidationError(details)
}

type messageResponse struct {
	Message string `json:"message"`
}

type sessionResponse struct {
	Status      string      `json:"status"`
	Message     string      `json:"message"`
	AccessToken string      `json:"accessToken"`
	Data        domain.User `json:"data"`
}

type profileResponse struct {
	Status string      `json:"status"`
	Data   domain.User `json:"data"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func checkEmail(details map[string]string, email string) {
	if _, err := mail.ParseAddress(strings.TrimSpace(email)); err != nil {
		details["email"] = "Invalid email address"
	}
}

func checkName(details map[string]string, name string) {
	if len(strings.TrimSpace(name)) < 3 {
		details["name"] = "Name must be at least 3 characters long"
	}
}

func checkOTP(details map[string]string, otp string) {
	if len(otp) != 6 {
		details["otp"] = "OTP must be 6 characters long"
	}
}

// checkPassword enforces the storefront's password policy: at least 8
// characters with an uppercase letter, a lowercase letter, a digit and a
// special character.
func checkPassword(details map[string]string, field, password string) {
	if len(password) < 8 {
		details[field] = "Password must be at least 8 characters long"
		return
	}

	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune("@$!%*?&", r):
			special = true
		}
	}
	if !lower || !upper || !digit || !special {
		details[field] = "Password must contain at least one uppercase letter, one lowercase letter, one number, and one special character"
	}
}

func asValidationError(details map[string]string) error {
	if len(details) == 0 {
		return nil
	}
	return httpx.NewValidationError("Validation failed", details)
}
