package session

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence surface the service needs.
type Store interface {
	Insert(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
}

// OwnerResolver answers whether a faculty id references a real account.
type OwnerResolver interface {
	FacultyExists(ctx context.Context, id string) (bool, error)
}

// Service mints sessions and serves lookups.
type Service struct {
	store  Store
	owners OwnerResolver
	cache  *Cache
	now    func() time.Time
}

// NewService creates a service. cache may be nil.
func NewService(store Store, owners OwnerResolver, cache *Cache) *Service {
	return &Service{store: store, owners: owners, cache: cache, now: time.Now}
}

// Create validates the request, mints a code and inserts exactly one row.
func (s *Service) Create(ctx context.Context, course, facultyID string, expiresAt time.Time) (*Session, error) {
	if course == "" {
		return nil, fmt.Errorf("%w: course", ErrMissingField)
	}
	if facultyID == "" {
		return nil, fmt.Errorf("%w: facultyId", ErrMissingField)
	}
	if expiresAt.IsZero() {
		return nil, fmt.Errorf("%w: expiresAt", ErrMissingField)
	}
	now := s.now().UTC()
	if !expiresAt.After(now) {
		return nil, ErrInvalidExpiry
	}
	ok, err := s.owners.FacultyExists(ctx, facultyID)
	if err != nil {
		return nil, fmt.Errorf("resolve faculty: %w", err)
	}
	if !ok {
		return nil, ErrOwnerNotFound
	}

	sess := &Session{
		ID:        uuid.NewString(),
		Course:    course,
		FacultyID: facultyID,
		Code:      GenerateCode(),
		CreatedAt: now,
		ExpiresAt: expiresAt.UTC(),
	}
	if err := s.store.Insert(ctx, sess); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	if err := s.cache.Put(ctx, sess); err != nil {
		log.Printf("session cache put %s failed: %v", sess.ID, err)
	}
	return sess, nil
}

// Get resolves a session by id, cache first. Returns nil when absent.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	if cached, err := s.cache.Get(ctx, id); err != nil {
		log.Printf("session cache get %s failed: %v", id, err)
	} else if cached != nil {
		return cached, nil
	}
	sess, err := s.store.Get(ctx, id)
	if err != nil || sess == nil {
		return sess, err
	}
	if err := s.cache.Put(ctx, sess); err != nil {
		log.Printf("session cache put %s failed: %v", sess.ID, err)
	}
	return sess, nil
}
