package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coverdeskhq/coverdesk/internal/models"
)

// AttemptRecord tracks failed logins from one source IP.
type AttemptRecord struct {
	Count        int       `json:"count"`
	FirstAttempt time.Time `json:"first_attempt"`
}

// ThrottleStore is the keyed store behind the login throttle. Get returns
// ErrNotFound when no record exists for the IP.
type ThrottleStore interface {
	Get(ctx context.Context, ip string) (*AttemptRecord, error)
	Put(ctx context.Context, ip string, rec *AttemptRecord, ttl time.Duration) error
	Delete(ctx context.Context, ip string) error
}

// LoginThrottle blocks repeated failed login attempts per source IP,
// independent of the per-account lock in the credential store.
type LoginThrottle struct {
	store       ThrottleStore
	maxAttempts int
	window      time.Duration
	logger      *slog.Logger
}

// NewLoginThrottle creates a LoginThrottle over the given store.
func NewLoginThrottle(store ThrottleStore, maxAttempts int, window time.Duration, logger *slog.Logger) *LoginThrottle {
	return &LoginThrottle{
		store:       store,
		maxAttempts: maxAttempts,
		window:      window,
		logger:      logger,
	}
}

// Check rejects the attempt with ErrTooManyAttempts when the IP has reached
// the limit inside the window. The check itself never increments the
// counter; a stale record (window elapsed) is deleted so the next attempt
// starts fresh. Store failures fail open: a throttle outage must not lock
// everyone out.
func (t *LoginThrottle) Check(ctx context.Context, ip string) error {
	rec, err := t.store.Get(ctx, ip)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		t.logger.Error("login throttle check failed", slog.String("ip", ip), slog.Any("error", err))
		return nil
	}

	if time.Since(rec.FirstAttempt) >= t.window {
		if err := t.store.Delete(ctx, ip); err != nil {
			t.logger.Error("failed to delete stale throttle record", slog.String("ip", ip), slog.Any("error", err))
		}
		return nil
	}

	if rec.Count >= t.maxAttempts {
		t.logger.Warn("login throttled",
			slog.String("ip", ip),
			slog.Int("attempts", rec.Count))
		return models.ErrTooManyAttempts
	}

	return nil
}

// RecordFailure increments the IP's counter, creating the record with
// count=1 on the first failure. Called for every failed login, including
// malformed requests that never reach the credential check.
func (t *LoginThrottle) RecordFailure(ctx context.Context, ip string) {
	rec, err := t.store.Get(ctx, ip)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			t.logger.Error("failed to read throttle record", slog.String("ip", ip), slog.Any("error", err))
			return
		}
		rec = nil
	}

	now := time.Now()
	if rec == nil || now.Sub(rec.FirstAttempt) >= t.window {
		rec = &AttemptRecord{Count: 1, FirstAttempt: now}
	} else {
		rec.Count++
	}

	if err := t.store.Put(ctx, ip, rec, t.window); err != nil {
		t.logger.Error("failed to record login failure", slog.String("ip", ip), slog.Any("error", err))
	}
}

// Reset clears the IP's record after a successful login.
func (t *LoginThrottle) Reset(ctx context.Context, ip string) {
	if err := t.store.Delete(ctx, ip); err != nil {
		t.logger.Error("failed to reset throttle record", slog.String("ip", ip), slog.Any("error", err))
	}
}

// MemoryThrottleStore is an in-process ThrottleStore with TTL eviction.
type MemoryThrottleStore struct {
	mu      sync.Mutex
	records map[string]memoryThrottleEntry
}

type memoryThrottleEntry struct {
	rec       AttemptRecord
	expiresAt time.Time
}

// NewMemoryThrottleStore creates an empty in-memory throttle store.
func NewMemoryThrottleStore() *MemoryThrottleStore {
	return &MemoryThrottleStore{
		records: make(map[string]memoryThrottleEntry),
	}
}

func (s *MemoryThrottleStore) Get(ctx context.Context, ip string) (*AttemptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.records[ip]
	if !ok {
		return nil, models.ErrNotFound
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.records, ip)
		return nil, models.ErrNotFound
	}

	rec := entry.rec
	return &rec, nil
}

func (s *MemoryThrottleStore) Put(ctx context.Context, ip string, rec *AttemptRecord, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[ip] = memoryThrottleEntry{
		rec:       *rec,
		expiresAt: time.Now().Add(ttl),
	}

	// Opportunistic eviction keeps the map bounded without a background loop.
	if len(s.records) > 10000 {
		now := time.Now()
		for key, entry := range s.records {
			if now.After(entry.expiresAt) {
				delete(s.records, key)
			}
		}
	}

	return nil
}

func (s *MemoryThrottleStore) Delete(ctx context.Context, ip string) error {
	s.mu.Lock()
	delete(s.records, ip)
	s.mu.Unlock()
	return nil
}
