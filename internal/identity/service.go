package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Registry is the persistence surface of the service.
type Registry interface {
	Create(ctx context.Context, u *User) error
	GetByEmail(ctx context.Context, role, email string) (*User, error)
	FacultyExists(ctx context.Context, id string) (bool, error)
}

// Service handles registration and credential checks.
type Service struct {
	repo Registry
}

// NewService creates a service backed by a registry.
func NewService(repo Registry) *Service {
	return &Service{repo: repo}
}

// Register creates a new account for the role.
func (s *Service) Register(ctx context.Context, role, name, email, password string) (*User, error) {
	if name == "" || email == "" || password == "" {
		return nil, fmt.Errorf("name, email and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &User{
		ID:           uuid.NewString(),
		Role:         role,
		Name:         name,
		Email:        email,
		passwordHash: string(hash),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login checks credentials and returns the account. Unknown users and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, role, email, password string) (*User, error) {
	u, err := s.repo.GetByEmail(ctx, role, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.passwordHash), []byte(password)); err != nil {
		return nil, ErrBadCredentials
	}
	return u, nil
}

// FacultyExists exposes owner resolution for session creation.
func (s *Service) FacultyExists(ctx context.Context, id string) (bool, error) {
	return s.repo.FacultyExists(ctx, id)
}
