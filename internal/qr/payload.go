// Package qr implements the scan payload codec and QR image rendering.
// The structured JSON payload is the compatibility surface; the barcode
// around it is interchangeable.
package qr

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rollcall/internal/session"
)

// ErrInvalidPayload marks any scan string that does not decode to a
// complete payload. Decoding fails closed: partial output is never returned.
var ErrInvalidPayload = errors.New("invalid QR payload")

// Payload is the capability token embedded in the QR image. Course and
// ExpiresAt are redundant hints for client-side pre-validation; only
// SessionID and Code carry trust.
type Payload struct {
	SessionID string    `json:"sessionId"`
	Code      string    `json:"qrCode"`
	Course    string    `json:"course,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Encode derives the payload and its transport string from a session.
func Encode(s *session.Session) (Payload, string, error) {
	p := Payload{
		SessionID: s.ID,
		Code:      s.Code,
		Course:    s.Course,
		ExpiresAt: s.ExpiresAt,
	}
	data, err := json.Marshal(p)
	if err != nil {
		return Payload{}, "", fmt.Errorf("encode payload: %w", err)
	}
	return p, string(data), nil
}

// Decode parses a scanned transport string. Any parse failure, or a
// missing sessionId or qrCode, yields ErrInvalidPayload.
func Decode(raw string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if p.SessionID == "" {
		return Payload{}, fmt.Errorf("%w: missing sessionId", ErrInvalidPayload)
	}
	if p.Code == "" {
		return Payload{}, fmt.Errorf("%w: missing qrCode", ErrInvalidPayload)
	}
	return p, nil
}
