package domain

import (
	"time"

	"github.com/veloramarket/velora/pkg/jwtx"
)

// Account status values surfaced to the storefront via the status cookie.
const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// User is a marketplace principal, buyer or seller. Phone and Country are
// only populated for sellers.
type User struct {
	ID           string    `json:"id"`
	Role         jwtx.Role `json:"role"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Status       string    `json:"status"`
	Phone        string    `json:"phone,omitempty"`
	Country      string    `json:"country,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
