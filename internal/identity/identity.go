// Package identity holds the faculty and student registry that the
// session and attendance flows resolve against.
package identity

import (
	"errors"
	"time"
)

// Roles known to the registry.
const (
	RoleStudent = "student"
	RoleFaculty = "faculty"
)

// User is a registered faculty member or student.
type User struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`

	passwordHash string
}

var (
	// ErrInvalidRole marks a role outside student/faculty.
	ErrInvalidRole = errors.New("invalid role")
	// ErrEmailTaken marks a registration against an existing email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrBadCredentials covers both unknown user and wrong password.
	ErrBadCredentials = errors.New("invalid email or password")
)

func tableForRole(role string) (string, error) {
	switch role {
	case RoleStudent:
		return "students", nil
	case RoleFaculty:
		return "faculty", nil
	default:
		return "", ErrInvalidRole
	}
}
