package session

import (
	"context"
	"database/sql"
	"errors"
)

// Repository persists sessions in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes a new session row. The row is authoritative from this
// point on; nothing ever updates it.
func (r *Repository) Insert(ctx context.Context, s *Session) error {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO sessions (id, course, faculty_id, code, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, s.ID, s.Course, s.FacultyID, s.Code, s.CreatedAt, s.ExpiresAt)
	return row.Scan(&s.CreatedAt)
}

// Get returns a session by id, or nil when absent.
func (r *Repository) Get(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, course, faculty_id, code, created_at, expires_at
		FROM sessions WHERE id = $1
	`, id)
	var s Session
	if err := row.Scan(&s.ID, &s.Course, &s.FacultyID, &s.Code, &s.CreatedAt, &s.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}
