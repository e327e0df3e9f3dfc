package session

import (
	"errors"
	"time"
)

// Session is one class meeting's attendance window. Rows are immutable
// after insert and are never deleted during the retention window.
type Session struct {
	ID        string    `json:"id"`
	Course    string    `json:"course"`
	FacultyID string    `json:"facultyId"`
	Code      string    `json:"qrCode,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session's window has closed at the given instant.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Redacted returns a copy safe for unauthenticated reads: everything but
// the code, which must only travel inside the QR payload.
func (s *Session) Redacted() Session {
	out := *s
	out.Code = ""
	return out
}

var (
	// ErrMissingField marks a creation request with an absent or empty field.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidExpiry marks a creation request whose expiry is not in the future.
	ErrInvalidExpiry = errors.New("expiresAt must be in the future")
	// ErrOwnerNotFound marks a creation request whose faculty id resolves to nothing.
	ErrOwnerNotFound = errors.New("faculty not found")
)
