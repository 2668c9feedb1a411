package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veloramarket/velora/internal/auth/domain"
	"github.com/veloramarket/velora/internal/auth/store"
	"github.com/veloramarket/velora/pkg/jwtx"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	st, err := NewStore(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedUser(t *testing.T, st *Store, role jwtx.Role, email string) domain.User {
	t.Helper()

	u := domain.User{
		ID:           "01J0000000000000000000000" + string(role[0]),
		Role:         role,
		Email:        email,
		Name:         "Alice",
		PasswordHash: "$2a$10$hash",
		Status:       domain.StatusActive,
	}
	if role == jwtx.RoleSeller {
		u.Phone = "0123456789"
		u.Country = "AU"
	}
	require.NoError(t, st.Users().Create(context.Background(), u))
	return u
}

func TestUsersRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seeded := seedUser(t, st, jwtx.RoleUser, "alice@example.com")

	t.Run("find by email hides the hash", func(t *testing.T) {
		u, err := st.Users().FindByEmail(ctx, jwtx.RoleUser, "alice@example.com")
		require.NoError(t, err)
		require.Equal(t, seeded.ID, u.ID)
		require.Empty(t, u.PasswordHash)
		require.False(t, u.CreatedAt.IsZero())
	})

	t.Run("find with password", func(t *testing.T) {
		u, err := st.Users().FindByEmailWithPassword(ctx, jwtx.RoleUser, "alice@example.com")
		require.NoError(t, err)
		require.Equal(t, "$2a$10$hash", u.PasswordHash)
	})

	t.Run("find by id", func(t *testing.T) {
		u, err := st.Users().FindByID(ctx, seeded.ID)
		require.NoError(t, err)
		require.Equal(t, "alice@example.com", u.Email)
		require.Empty(t, u.PasswordHash)
	})

	t.Run("missing rows map to ErrNotFound", func(t *testing.T) {
		_, err := st.Users().FindByEmail(ctx, jwtx.RoleUser, "nobody@example.com")
		require.ErrorIs(t, err, store.ErrNotFound)

		_, err = st.Users().FindByID(ctx, "missing-id")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestUsersUniquePerRole(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedUser(t, st, jwtx.RoleUser, "alice@example.com")

	t.Run("duplicate within a role is rejected", func(t *testing.T) {
		dup := domain.User{
			ID:           "01J0000000000000000000000X",
			Role:         jwtx.RoleUser,
			Email:        "alice@example.com",
			Name:         "Alice Again",
			PasswordHash: "$2a$10$hash",
			Status:       domain.StatusActive,
		}
		err := st.Users().Create(ctx, dup)
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("same email under the other role is fine", func(t *testing.T) {
		seller := seedUser(t, st, jwtx.RoleSeller, "alice@example.com")

		u, err := st.Users().FindByEmail(ctx, jwtx.RoleSeller, "alice@example.com")
		require.NoError(t, err)
		require.Equal(t, seller.ID, u.ID)
		require.Equal(t, "0123456789", u.Phone)
		require.Equal(t, "AU", u.Country)
	})
}

func TestUpdatePassword(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedUser(t, st, jwtx.RoleUser, "alice@example.com")

	require.NoError(t, st.Users().UpdatePassword(ctx, jwtx.RoleUser, "alice@example.com", "$2a$10$newhash"))

	u, err := st.Users().FindByEmailWithPassword(ctx, jwtx.RoleUser, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, "$2a$10$newhash", u.PasswordHash)

	t.Run("unknown email", func(t *testing.T) {
		err := st.Users().UpdatePassword(ctx, jwtx.RoleUser, "nobody@example.com", "$2a$10$x")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}
