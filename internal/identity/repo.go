package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository persists the registry in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a user into the role's table. A conflicting email yields
// ErrEmailTaken rather than a second row.
func (r *Repository) Create(ctx context.Context, u *User) error {
	table, err := tableForRole(u.Role)
	if err != nil {
		return err
	}
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, name, email, password_hash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO NOTHING
		RETURNING created_at
	`, table), u.ID, u.Name, u.Email, u.passwordHash)
	if err := row.Scan(&u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

// GetByEmail returns the role's user for an email, or nil when absent.
func (r *Repository) GetByEmail(ctx context.Context, role, email string) (*User, error) {
	table, err := tableForRole(role)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, name, email, password_hash, created_at FROM %s WHERE email = $1
	`, table), email)
	u := User{Role: role}
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.passwordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// FacultyExists reports whether a faculty id resolves.
func (r *Repository) FacultyExists(ctx context.Context, id string) (bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT 1 FROM faculty WHERE id = $1`, id)
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, subject, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (subject, token, expires_at)
		VALUES ($1, $2, $3)
	`, subject, token, expiresAt)
	return err
}

// RevokeRefreshToken marks a token revoked.
func (r *Repository) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`, token)
	return err
}
