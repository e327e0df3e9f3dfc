// Package attendance implements the verification engine and the
// append-only ledger of committed marks.
package attendance

import (
	"errors"
	"time"
)

// Record is one durable attendance mark. At most one record exists per
// (session, student) pair; rows are never updated or deleted.
type Record struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	StudentID string    `json:"studentId"`
	Code      string    `json:"qrCode"`
	MarkedAt  time.Time `json:"markedAt"`
}

// HistoryEntry is a student-facing view of a mark, joined with the
// session it belongs to.
type HistoryEntry struct {
	AttendanceID string    `json:"attendanceId"`
	SessionID    string    `json:"sessionId"`
	MarkedAt     time.Time `json:"markedAt"`
	Course       string    `json:"course"`
	SessionDate  time.Time `json:"sessionDate"`
}

// Terminal rejection reasons of the verification state machine. Each maps
// 1:1 to a caller-visible response; none is retryable with the same input.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidCode     = errors.New("invalid QR code")
	ErrSessionExpired  = errors.New("session has expired")
	ErrAlreadyMarked   = errors.New("attendance already marked for this session")
)
