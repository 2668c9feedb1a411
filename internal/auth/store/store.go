package store

import (
	"context"
	"errors"

	"github.com/veloramarket/velora/internal/auth/domain"
	"github.com/veloramarket/velora/pkg/jwtx"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface the session service sees. The
// session core treats it as an opaque user store; sqlite is just the
// driver this deployment ships with.
type Store interface {
	Users() Users

	ApplyMigrations() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error

	// Close releases any underlying resources.
	Close() error
}

type Users interface {
	// FindByEmail returns a principal without its password hash.
	FindByEmail(ctx context.Context, role jwtx.Role, email string) (domain.User, error)

	// FindByEmailWithPassword is the login path: same lookup, hash included.
	FindByEmailWithPassword(ctx context.Context, role jwtx.Role, email string) (domain.User, error)

	// FindByID resolves a token subject back to a principal.
	FindByID(ctx context.Context, id string) (domain.User, error)

	// Create inserts a new principal (id provided by the app via ULID).
	// Returns ErrAlreadyExists when the (role, email) pair is taken.
	Create(ctx context.Context, u domain.User) error

	// UpdatePassword sets a new password hash and bumps updated_at.
	UpdatePassword(ctx context.Context, role jwtx.Role, email, newHash string) error
}
