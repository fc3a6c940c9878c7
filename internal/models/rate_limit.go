package models

import "time"

// RateLimitEntry is one row of the append-only rate_limits log. An action is
// gated by counting entries for (UserID, Action) inside a sliding window;
// entries are never updated, only inserted and periodically purged.
type RateLimitEntry struct {
	ID        string
	UserID    string
	Action    string
	CreatedAt time.Time
}
