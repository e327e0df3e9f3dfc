package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/attendance"
	"rollcall/internal/session"
)

type memSessionStore struct {
	mu   sync.Mutex
	rows map[string]*session.Session
}

func (m *memSessionStore) Insert(_ context.Context, s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.rows[s.ID] = &cp
	return nil
}

func (m *memSessionStore) Get(_ context.Context, id string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

type staticOwners struct{ ids map[string]bool }

func (o staticOwners) FacultyExists(_ context.Context, id string) (bool, error) {
	return o.ids[id], nil
}

type memLedger struct {
	mu   sync.Mutex
	rows map[[2]string]attendance.Record
}

func (m *memLedger) Exists(_ context.Context, sessionID, studentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[[2]string{sessionID, studentID}]
	return ok, nil
}

func (m *memLedger) Insert(_ context.Context, rec attendance.Record) (attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]string{rec.SessionID, rec.StudentID}
	if _, ok := m.rows[key]; ok {
		return attendance.Record{}, attendance.ErrAlreadyMarked
	}
	rec.ID = uuid.NewString()
	m.rows[key] = rec
	return rec, nil
}

func (m *memLedger) HistoryForStudent(_ context.Context, studentID string) ([]attendance.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []attendance.HistoryEntry
	for key, rec := range m.rows {
		if key[1] == studentID {
			res = append(res, attendance.HistoryEntry{
				AttendanceID: rec.ID,
				SessionID:    rec.SessionID,
				MarkedAt:     rec.MarkedAt,
			})
		}
	}
	return res, nil
}

func (m *memLedger) RosterForSession(_ context.Context, sessionID string) ([]attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []attendance.Record
	for key, rec := range m.rows {
		if key[0] == sessionID {
			res = append(res, rec)
		}
	}
	return res, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *memSessionStore, *memLedger) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := &memSessionStore{rows: make(map[string]*session.Session)}
	ledger := &memLedger{rows: make(map[[2]string]attendance.Record)}
	sessions := session.NewService(store, staticOwners{ids: map[string]bool{"fac-7": true}}, nil)
	marks := attendance.NewService(sessions, ledger)

	h := New(sessions, marks, nil, nil, nil, JWTConfig{})

	r := gin.New()
	r.POST("/sessions", h.CreateSession)
	r.GET("/sessions/:id", h.GetSession)
	r.POST("/attendance/mark", h.Mark)
	r.GET("/attendance/student/:studentId", h.StudentHistory)
	r.GET("/attendance/session/:sessionId", h.SessionRoster)
	return r, store, ledger
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	out := map[string]any{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func createSession(t *testing.T, r *gin.Engine) (id, code string) {
	t.Helper()
	w, out := doJSON(t, r, http.MethodPost, "/sessions", gin.H{
		"course":    "CS101",
		"facultyId": "fac-7",
		"expiresAt": time.Now().Add(2 * time.Hour).UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sess := out["session"].(map[string]any)
	return sess["id"].(string), sess["qrCode"].(string)
}

// Scenario A: creating a session returns an id, a code and a QR payload
// carrying both.
func TestCreateSessionReturnsQR(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w, out := doJSON(t, r, http.MethodPost, "/sessions", gin.H{
		"course":    "CS101",
		"facultyId": "fac-7",
		"expiresAt": time.Now().Add(2 * time.Hour).UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, true, out["success"])

	sess := out["session"].(map[string]any)
	assert.NotEmpty(t, sess["id"])
	assert.NotEmpty(t, sess["qrCode"])

	qrOut := out["qr"].(map[string]any)
	payloadString := qrOut["payloadString"].(string)
	assert.Contains(t, payloadString, sess["id"].(string))
	assert.Contains(t, payloadString, sess["qrCode"].(string))
	assert.Contains(t, qrOut["image"].(string), "data:image/png;base64,")
}

func TestCreateSessionRejections(t *testing.T) {
	r, _, _ := newTestRouter(t)
	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)

	w, _ := doJSON(t, r, http.MethodPost, "/sessions", gin.H{"facultyId": "fac-7", "expiresAt": future})
	assert.Equal(t, http.StatusBadRequest, w.Code, "missing course")

	w, _ = doJSON(t, r, http.MethodPost, "/sessions", gin.H{"course": "CS101", "expiresAt": future})
	assert.Equal(t, http.StatusBadRequest, w.Code, "missing faculty")

	w, _ = doJSON(t, r, http.MethodPost, "/sessions", gin.H{"course": "CS101", "facultyId": "fac-7"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "missing expiry")

	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	w, _ = doJSON(t, r, http.MethodPost, "/sessions", gin.H{"course": "CS101", "facultyId": "fac-7", "expiresAt": past})
	assert.Equal(t, http.StatusBadRequest, w.Code, "past expiry")

	w, _ = doJSON(t, r, http.MethodPost, "/sessions", gin.H{"course": "CS101", "facultyId": "fac-404", "expiresAt": future})
	assert.Equal(t, http.StatusNotFound, w.Code, "unknown faculty")
}

func TestGetSessionRedactsCode(t *testing.T) {
	r, _, _ := newTestRouter(t)
	id, _ := createSession(t, r)

	w, out := doJSON(t, r, http.MethodGet, "/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, out["id"])
	_, hasCode := out["qrCode"]
	assert.False(t, hasCode, "code must not leave through the lookup endpoint")

	w, _ = doJSON(t, r, http.MethodGet, "/sessions/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// Scenarios B and C: a valid scan commits once; the immediate repeat
// resolves to AlreadyMarked with no second record.
func TestMarkThenDuplicate(t *testing.T) {
	r, _, ledger := newTestRouter(t)
	id, code := createSession(t, r)

	w, out := doJSON(t, r, http.MethodPost, "/attendance/mark", gin.H{
		"sessionId": id, "qrCode": code, "studentId": "stu-1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, out["success"])
	rec := out["attendance"].(map[string]any)
	assert.Equal(t, id, rec["sessionId"])
	assert.Equal(t, "stu-1", rec["studentId"])
	markedAt, err := time.Parse(time.RFC3339, rec["markedAt"].(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), markedAt, 5*time.Second)
	assert.Equal(t, "CS101", out["session"].(map[string]any)["course"])

	w, out = doJSON(t, r, http.MethodPost, "/attendance/mark", gin.H{
		"sessionId": id, "qrCode": code, "studentId": "stu-1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Attendance already marked for this session", out["error"])

	roster, err := ledger.RosterForSession(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, roster, 1)
}

// Scenario D: a well-formed but wrong code is rejected.
func TestMarkInvalidCode(t *testing.T) {
	r, _, _ := newTestRouter(t)
	id, _ := createSession(t, r)

	w, out := doJSON(t, r, http.MethodPost, "/attendance/mark", gin.H{
		"sessionId": id, "qrCode": "definitely-wrong-code", "studentId": "stu-1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid QR code", out["error"])
}

// Scenario E: an unknown session id is a 404.
func TestMarkSessionNotFound(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w, out := doJSON(t, r, http.MethodPost, "/attendance/mark", gin.H{
		"sessionId": uuid.NewString(), "qrCode": "whatever", "studentId": "stu-1",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Session not found", out["error"])
}

func TestMarkExpiredSession(t *testing.T) {
	r, store, _ := newTestRouter(t)
	// Seed an already-expired session directly; the creation endpoint
	// refuses to mint one.
	sess := &session.Session{
		ID:        uuid.NewString(),
		Course:    "CS101",
		FacultyID: "fac-7",
		Code:      session.GenerateCode(),
		CreatedAt: time.Now().Add(-2 * time.Hour).UTC(),
		ExpiresAt: time.Now().Add(-time.Hour).UTC(),
	}
	require.NoError(t, store.Insert(context.Background(), sess))

	w, out := doJSON(t, r, http.MethodPost, "/attendance/mark", gin.H{
		"sessionId": sess.ID, "qrCode": sess.Code, "studentId": "stu-1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Session has expired", out["error"])
}

func TestMarkMissingFields(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w, out := doJSON(t, r, http.MethodPost, "/attendance/mark", gin.H{"sessionId": "s1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing required fields", out["error"])
}

func TestLedgerViews(t *testing.T) {
	r, _, _ := newTestRouter(t)
	id, code := createSession(t, r)

	for i := 0; i < 3; i++ {
		w, _ := doJSON(t, r, http.MethodPost, "/attendance/mark", gin.H{
			"sessionId": id, "qrCode": code, "studentId": fmt.Sprintf("stu-%d", i),
		})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w, out := doJSON(t, r, http.MethodGet, "/attendance/session/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), out["count"])
	assert.Len(t, out["attendance"].([]any), 3)

	w, out = doJSON(t, r, http.MethodGet, "/attendance/student/stu-0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, out["attendance"].([]any), 1)
}
