// Package handler exposes the HTTP surface over the session, attendance
// and identity services.
package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/internal/identity"
	"rollcall/internal/metrics"
	"rollcall/internal/qr"
	"rollcall/internal/queue"
	"rollcall/internal/session"
)

// TokenStore records refresh tokens issued at login.
type TokenStore interface {
	SaveRefreshToken(ctx context.Context, subject, token string, expiresAt time.Time) error
}

// JWTConfig carries the signing parameters handlers need to issue tokens.
type JWTConfig struct {
	Issuer     string
	SigningKey string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Handler owns the request handlers and their dependencies.
type Handler struct {
	sessions *session.Service
	marks    *attendance.Service
	identity *identity.Service
	tokens   TokenStore
	q        queue.Queue
	jwt      JWTConfig
}

// New creates a handler. q and tokens may be nil in tests.
func New(sessions *session.Service, marks *attendance.Service, ident *identity.Service, tokens TokenStore, q queue.Queue, jwt JWTConfig) *Handler {
	return &Handler{sessions: sessions, marks: marks, identity: ident, tokens: tokens, q: q, jwt: jwt}
}

// ---------- Auth ----------

type registerRequest struct {
	Role     string `json:"role" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// Register creates a student or faculty account.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.identity.Register(c.Request.Context(), req.Role, req.Name, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidRole):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
		case errors.Is(err, identity.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "user": user})
}

type loginRequest struct {
	Role     string `json:"role" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login checks credentials and issues a token pair.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.identity.Login(c.Request.Context(), req.Role, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidRole):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
		case errors.Is(err, identity.ErrBadCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		}
		return
	}

	pair, err := auth.Issue(user.ID, user.Role, h.jwt.Issuer, h.jwt.SigningKey, h.jwt.AccessTTL, h.jwt.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	if h.tokens != nil {
		if err := h.tokens.SaveRefreshToken(c.Request.Context(), user.ID, pair.RefreshToken, pair.RefreshExp); err != nil {
			log.Printf("save refresh token failed: %v", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"token":         pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_at":    pair.AccessExp.Unix(),
		"user":          user,
	})
}

// ---------- Sessions ----------

type createSessionRequest struct {
	Course    string    `json:"course"`
	FacultyID string    `json:"facultyId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CreateSession mints a session row and returns it with a render-ready QR.
func (h *Handler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	sess, err := h.sessions.Create(c.Request.Context(), req.Course, req.FacultyID, req.ExpiresAt)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrMissingField):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		case errors.Is(err, session.ErrInvalidExpiry):
			c.JSON(http.StatusBadRequest, gin.H{"error": "expiresAt must be in the future"})
		case errors.Is(err, session.ErrOwnerNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Faculty not found"})
		default:
			log.Printf("create session failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		}
		return
	}

	payload, payloadString, err := qr.Encode(sess)
	if err != nil {
		log.Printf("encode payload for %s failed: %v", sess.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	image, err := qr.ImageDataURL(payloadString)
	if err != nil {
		log.Printf("render qr for %s failed: %v", sess.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	metrics.SessionsCreated.Inc()
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"session": sess,
		"qr": gin.H{
			"payload":       payload,
			"payloadString": payloadString,
			"image":         image,
		},
	})
}

// GetSession serves client-side pre-validation. The code never leaves
// through this endpoint; the QR payload is its only channel.
func (h *Handler) GetSession(c *gin.Context) {
	sess, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		log.Printf("get session failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, sess.Redacted())
}

// ---------- Attendance ----------

type markRequest struct {
	SessionID string `json:"sessionId"`
	Code      string `json:"qrCode"`
	StudentID string `json:"studentId"`
}

// Mark runs the verification engine for one scan.
func (h *Handler) Mark(c *gin.Context) {
	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" || req.Code == "" || req.StudentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	if claims, ok := auth.FromContext(c); ok && claims.Subject != "" && claims.Subject != req.StudentID {
		c.JSON(http.StatusForbidden, gin.H{"error": "student mismatch"})
		return
	}

	rec, sess, err := h.marks.VerifyAndMark(c.Request.Context(), req.SessionID, req.Code, req.StudentID)
	if err != nil {
		status, reason, outcome := mapMarkError(err)
		metrics.MarkAttempts.WithLabelValues(outcome).Inc()
		if outcome == metrics.OutcomeError {
			log.Printf("mark attendance failed: %v", err)
		}
		c.JSON(status, gin.H{"success": false, "error": reason})
		return
	}

	metrics.MarkAttempts.WithLabelValues(metrics.OutcomeMarked).Inc()
	if h.q != nil {
		msg := queue.Message{Type: queue.TypeAttendanceMarked, Body: []byte(rec.SessionID)}
		if err := h.q.Publish(c.Request.Context(), msg); err != nil {
			log.Printf("queue publish failed: %v", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Attendance marked successfully",
		"attendance": rec,
		"session": gin.H{
			"id":     sess.ID,
			"course": sess.Course,
		},
	})
}

// mapMarkError translates a terminal engine state into HTTP status,
// user-displayable reason and metric outcome.
func mapMarkError(err error) (int, string, string) {
	switch {
	case errors.Is(err, attendance.ErrSessionNotFound):
		return http.StatusNotFound, "Session not found", metrics.OutcomeSessionNotFound
	case errors.Is(err, attendance.ErrInvalidCode):
		return http.StatusBadRequest, "Invalid QR code", metrics.OutcomeInvalidCode
	case errors.Is(err, attendance.ErrSessionExpired):
		return http.StatusBadRequest, "Session has expired", metrics.OutcomeSessionExpired
	case errors.Is(err, attendance.ErrAlreadyMarked):
		return http.StatusBadRequest, "Attendance already marked for this session", metrics.OutcomeAlreadyMarked
	default:
		return http.StatusInternalServerError, "Server error", metrics.OutcomeError
	}
}

// StudentHistory returns a student's marks joined with course names.
func (h *Handler) StudentHistory(c *gin.Context) {
	records, err := h.marks.HistoryForStudent(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		log.Printf("student history failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	if records == nil {
		records = []attendance.HistoryEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "attendance": records})
}

// SessionRoster returns all marks for a session with a count.
func (h *Handler) SessionRoster(c *gin.Context) {
	records, err := h.marks.RosterForSession(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		log.Printf("session roster failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "attendance": records, "count": len(records)})
}
