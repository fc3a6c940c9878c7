package models

import (
	"time"
)

// Roles recognized by the role gate.
const (
	RoleAdmin = "admin"
	RoleAgent = "agent"
	RoleUser  = "user"
)

// Account statuses.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

type User struct {
	ID              string
	Email           string
	PasswordHash    string
	Name            string
	Role            string // "admin", "agent", "user"
	Status          string // "active", "inactive"
	FailedAttempts  int
	LastFailedLogin *time.Time
	TOTPSecret      *string // Set once the user begins TOTP enrollment
	TOTPEnabled     bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ValidRole reports whether role is one of the recognized roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleAgent, RoleUser:
		return true
	}
	return false
}

// AuthUser is the request-scoped identity produced by the session
// authenticator and consumed by the role gate and handlers.
type AuthUser struct {
	UserID    string
	Email     string
	Role      string
	SessionID string
	CSRFToken string
}
