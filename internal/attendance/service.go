package attendance

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"rollcall/internal/session"
)

// SessionSource resolves session ids; nil result means no such session.
type SessionSource interface {
	Get(ctx context.Context, id string) (*session.Session, error)
}

// Ledger is the persistence surface of the engine. Insert must be backed
// by a storage-level uniqueness constraint on (session, student).
type Ledger interface {
	Exists(ctx context.Context, sessionID, studentID string) (bool, error)
	Insert(ctx context.Context, rec Record) (Record, error)
	HistoryForStudent(ctx context.Context, studentID string) ([]HistoryEntry, error)
	RosterForSession(ctx context.Context, sessionID string) ([]Record, error)
}

// Service is the single authority deciding whether a (session, code,
// student) triple becomes a committed mark. Handlers hold no other write
// path into the ledger.
type Service struct {
	sessions SessionSource
	ledger   Ledger
	now      func() time.Time
}

// NewService creates the verification engine.
func NewService(sessions SessionSource, ledger Ledger) *Service {
	return &Service{sessions: sessions, ledger: ledger, now: time.Now}
}

// VerifyAndMark runs the accept/reject state machine in strict order:
// lookup, code match, expiry, duplicate, commit. Each rejection is
// terminal; a concurrent duplicate surfacing at commit time resolves to
// ErrAlreadyMarked, never to a second record.
func (s *Service) VerifyAndMark(ctx context.Context, sessionID, code, studentID string) (Record, *session.Session, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return Record{}, nil, fmt.Errorf("lookup session: %w", err)
	}
	if sess == nil {
		return Record{}, nil, ErrSessionNotFound
	}

	if subtle.ConstantTimeCompare([]byte(code), []byte(sess.Code)) != 1 {
		return Record{}, nil, ErrInvalidCode
	}

	// Server clock only; client-claimed time is never consulted.
	if sess.Expired(s.now()) {
		return Record{}, nil, ErrSessionExpired
	}

	exists, err := s.ledger.Exists(ctx, sessionID, studentID)
	if err != nil {
		return Record{}, nil, fmt.Errorf("duplicate check: %w", err)
	}
	if exists {
		return Record{}, nil, ErrAlreadyMarked
	}

	rec, err := s.ledger.Insert(ctx, Record{
		SessionID: sessionID,
		StudentID: studentID,
		Code:      code,
		MarkedAt:  s.now().UTC(),
	})
	if err != nil {
		// ErrAlreadyMarked from the unique constraint passes through as-is.
		return Record{}, nil, err
	}
	return rec, sess, nil
}

// HistoryForStudent returns the student's marks with course context.
func (s *Service) HistoryForStudent(ctx context.Context, studentID string) ([]HistoryEntry, error) {
	return s.ledger.HistoryForStudent(ctx, studentID)
}

// RosterForSession returns all marks committed for a session.
func (s *Service) RosterForSession(ctx context.Context, sessionID string) ([]Record, error) {
	return s.ledger.RosterForSession(ctx, sessionID)
}
