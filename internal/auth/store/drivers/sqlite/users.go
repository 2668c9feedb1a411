package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/veloramarket/velora/internal/auth/domain"
	"github.com/veloramarket/velora/pkg/jwtx"
)

type usersRepo struct {
	db *sql.DB
}

const userColumns = `id, role, email, name, password_hash, status, phone, country, created_at, updated_at`

func scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	var role string
	var phone, country sql.NullString
	err := row.Scan(
		&u.ID, &role, &u.Email, &u.Name, &u.PasswordHash, &u.Status,
		&phone, &country, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.Role = jwtx.Role(role)
	u.Phone = phone.String
	u.Country = country.String
	return u, nil
}

func (r *usersRepo) FindByEmail(ctx context.Context, role jwtx.Role, email string) (domain.User, error) {
	u, err := r.FindByEmailWithPassword(ctx, role, email)
	if err != nil {
		return domain.User{}, err
	}
	u.PasswordHash = ""
	return u, nil
}

func (r *usersRepo) FindByEmailWithPassword(ctx context.Context, role jwtx.Role, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE role = ? AND email = ?`,
		string(role), email,
	)
	return scanUser(row)
}

func (r *usersRepo) FindByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, err
	}
	u.PasswordHash = ""
	return u, nil
}

func (r *usersRepo) Create(ctx context.Context, u domain.User) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, role, email, name, password_hash, status, phone, country, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, string(u.Role), u.Email, u.Name, u.PasswordHash, u.Status,
		nullable(u.Phone), nullable(u.Country), now, now,
	)
	return mapConstraint(err)
}

func (r *usersRepo) UpdatePassword(ctx context.Context, role jwtx.Role, email, newHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE role = ? AND email = ?`,
		newHash, time.Now().UTC(), string(role), email,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
