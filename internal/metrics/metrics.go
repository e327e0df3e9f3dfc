// Package metrics registers the service's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Mark outcomes. Labels match the verification engine's terminal states.
const (
	OutcomeMarked          = "marked"
	OutcomeSessionNotFound = "session_not_found"
	OutcomeInvalidCode     = "invalid_code"
	OutcomeSessionExpired  = "session_expired"
	OutcomeAlreadyMarked   = "already_marked"
	OutcomeError           = "error"
)

var (
	// SessionsCreated counts minted sessions.
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rollcall_sessions_created_total",
		Help: "Number of class sessions created.",
	})

	// MarkAttempts counts verification attempts by terminal outcome.
	MarkAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollcall_mark_attempts_total",
		Help: "Attendance mark attempts by outcome.",
	}, []string{"outcome"})
)
