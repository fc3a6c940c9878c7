// Package session provides server-side session state behind a pluggable
// store. A session is identified by an opaque ID carried in an HTTP-only
// cookie; all other state lives server-side.
package session

import (
	"context"
	"time"
)

// Session is the server-side state for one authenticated browser session.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Role         string    `json:"role"`
	CSRFToken    string    `json:"csrf_token"`
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store is the capability abstraction for session persistence. Load returns
// models.ErrUnauthorized semantics via a nil session and ErrNotFound from
// implementations; callers translate.
type Store interface {
	// Load returns the session for id, or ErrNotFound.
	Load(ctx context.Context, id string) (*Session, error)
	// Save writes the session state under its ID with the given TTL.
	Save(ctx context.Context, sess *Session, ttl time.Duration) error
	// Destroy removes the session. Destroying a missing session is not an error.
	Destroy(ctx context.Context, id string) error
}
