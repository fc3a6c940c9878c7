package models

import "time"

// Policy types.
const (
	PolicyTypeAuto   = "auto"
	PolicyTypeHome   = "home"
	PolicyTypeLife   = "life"
	PolicyTypeHealth = "health"
)

// Policy statuses.
const (
	PolicyStatusActive    = "active"
	PolicyStatusExpired   = "expired"
	PolicyStatusCancelled = "cancelled"
)

type Policy struct {
	ID           string
	PolicyNumber string
	ClientID     string
	AgentID      string
	Type         string // "auto", "home", "life", "health"
	Premium      float64
	Status       string // "active", "expired", "cancelled"
	StartDate    time.Time
	EndDate      time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
