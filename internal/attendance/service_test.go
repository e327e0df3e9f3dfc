package attendance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/session"
)

type fakeSessions struct {
	rows map[string]*session.Session
}

func (f *fakeSessions) Get(_ context.Context, id string) (*session.Session, error) {
	s, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

// memLedger enforces (session, student) uniqueness under a mutex, the way
// the Postgres unique constraint does.
type memLedger struct {
	mu   sync.Mutex
	rows map[[2]string]Record
}

func newMemLedger() *memLedger { return &memLedger{rows: make(map[[2]string]Record)} }

func (m *memLedger) Exists(_ context.Context, sessionID, studentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[[2]string{sessionID, studentID}]
	return ok, nil
}

func (m *memLedger) Insert(_ context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]string{rec.SessionID, rec.StudentID}
	if _, ok := m.rows[key]; ok {
		return Record{}, ErrAlreadyMarked
	}
	rec.ID = uuid.NewString()
	m.rows[key] = rec
	return rec, nil
}

func (m *memLedger) HistoryForStudent(_ context.Context, studentID string) ([]HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []HistoryEntry
	for key, rec := range m.rows {
		if key[1] == studentID {
			res = append(res, HistoryEntry{AttendanceID: rec.ID, SessionID: rec.SessionID, MarkedAt: rec.MarkedAt})
		}
	}
	return res, nil
}

func (m *memLedger) RosterForSession(_ context.Context, sessionID string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []Record
	for key, rec := range m.rows {
		if key[0] == sessionID {
			res = append(res, rec)
		}
	}
	return res, nil
}

var baseTime = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func newEngine(t *testing.T) (*Service, *fakeSessions, *memLedger) {
	t.Helper()
	sessions := &fakeSessions{rows: map[string]*session.Session{
		"s1": {
			ID:        "s1",
			Course:    "CS101",
			FacultyID: "fac-1",
			Code:      "correct-code",
			CreatedAt: baseTime.Add(-time.Hour),
			ExpiresAt: baseTime.Add(time.Hour),
		},
	}}
	ledger := newMemLedger()
	svc := NewService(sessions, ledger)
	svc.now = func() time.Time { return baseTime }
	return svc, sessions, ledger
}

func TestVerifyAndMarkSuccess(t *testing.T) {
	svc, _, ledger := newEngine(t)

	rec, sess, err := svc.VerifyAndMark(context.Background(), "s1", "correct-code", "stu-1")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "s1", rec.SessionID)
	assert.Equal(t, "stu-1", rec.StudentID)
	assert.Equal(t, baseTime, rec.MarkedAt)
	assert.Equal(t, "CS101", sess.Course)

	roster, err := ledger.RosterForSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, roster, 1)
}

func TestVerifyAndMarkRejections(t *testing.T) {
	t.Run("session not found", func(t *testing.T) {
		svc, _, _ := newEngine(t)
		_, _, err := svc.VerifyAndMark(context.Background(), "missing", "correct-code", "stu-1")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("invalid code", func(t *testing.T) {
		svc, _, ledger := newEngine(t)
		_, _, err := svc.VerifyAndMark(context.Background(), "s1", "wrong-code", "stu-1")
		assert.ErrorIs(t, err, ErrInvalidCode)
		roster, _ := ledger.RosterForSession(context.Background(), "s1")
		assert.Empty(t, roster)
	})

	t.Run("already marked", func(t *testing.T) {
		svc, _, _ := newEngine(t)
		_, _, err := svc.VerifyAndMark(context.Background(), "s1", "correct-code", "stu-1")
		require.NoError(t, err)
		_, _, err = svc.VerifyAndMark(context.Background(), "s1", "correct-code", "stu-1")
		assert.ErrorIs(t, err, ErrAlreadyMarked)
	})

	t.Run("other students unaffected", func(t *testing.T) {
		svc, _, ledger := newEngine(t)
		_, _, err := svc.VerifyAndMark(context.Background(), "s1", "correct-code", "stu-1")
		require.NoError(t, err)
		_, _, err = svc.VerifyAndMark(context.Background(), "s1", "correct-code", "stu-2")
		require.NoError(t, err)
		roster, _ := ledger.RosterForSession(context.Background(), "s1")
		assert.Len(t, roster, 2)
	})
}

// A mark succeeds just before expiry and fails just after, on the server
// clock only.
func TestVerifyAndMarkExpiryBoundary(t *testing.T) {
	svc, sessions, _ := newEngine(t)
	expiry := sessions.rows["s1"].ExpiresAt

	svc.now = func() time.Time { return expiry.Add(-time.Second) }
	_, _, err := svc.VerifyAndMark(context.Background(), "s1", "correct-code", "stu-early")
	require.NoError(t, err)

	svc.now = func() time.Time { return expiry.Add(time.Second) }
	_, _, err = svc.VerifyAndMark(context.Background(), "s1", "correct-code", "stu-late")
	assert.ErrorIs(t, err, ErrSessionExpired)
}

// N concurrent identical marks commit exactly one record; the rest resolve
// to ErrAlreadyMarked via the ledger's uniqueness guard.
func TestVerifyAndMarkConcurrentDuplicates(t *testing.T) {
	svc, _, ledger := newEngine(t)

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = svc.VerifyAndMark(context.Background(), "s1", "correct-code", "stu-1")
		}(i)
	}
	wg.Wait()

	var successes, dupes int
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		require.ErrorIs(t, err, ErrAlreadyMarked)
		dupes++
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, dupes)

	roster, err := ledger.RosterForSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, roster, 1)
}
