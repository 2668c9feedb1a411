package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTLs. Access tokens stay short-lived because there is no
// revocation list; refresh tokens trade that off for user convenience.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Role identifies which side of the marketplace a principal belongs to.
type Role string

const (
	RoleUser   Role = "user"
	RoleSeller Role = "seller"
)

// ParseRole validates a wire-level role string.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleSeller:
		return Role(s), nil
	}
	return "", ErrInvalidToken
}

// Claims is the payload shared by both token families. Kept minimal and
// stable: sub, role, iss, aud, exp are the wire contract.
type Claims struct {
	jwt.RegisteredClaims

	Role Role `json:"role,omitempty"`
}

// ErrInvalidToken covers every verification failure. Callers surface it
// generically so clients cannot distinguish expired from malformed from
// wrong-audience tokens.
var ErrInvalidToken = errors.New("jwtx: invalid token")

// NewClaims builds the claims for one token of either family.
func NewClaims(principalID string, role Role, issuer, audience string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   principalID,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: role,
	}
}

// validatePayload enforces the fields the registered-claim checks don't:
// a token without a subject or role is useless to the edge.
func (c *Claims) validatePayload() error {
	if c.Subject == "" || c.Role == "" {
		return ErrInvalidToken
	}
	if _, err := ParseRole(string(c.Role)); err != nil {
		return ErrInvalidToken
	}
	return nil
}
