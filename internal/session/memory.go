package session

import (
	"context"
	"sync"
	"time"

	"github.com/coverdeskhq/coverdesk/internal/models"
)

type memoryEntry struct {
	sess      Session
	expiresAt time.Time
}

// MemoryStore is an in-process session store with TTL eviction. Suitable for
// single-instance deployments and tests; use the Redis store when running
// more than one replica.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	stopCh  chan struct{}
}

// NewMemoryStore creates a memory store and starts its eviction loop.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		stopCh:  make(chan struct{}),
	}
	go s.evictLoop()
	return s
}

func (s *MemoryStore) Load(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()

	if !ok {
		return nil, models.ErrNotFound
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, id)
		s.mu.Unlock()
		return nil, models.ErrNotFound
	}

	sess := entry.sess
	return &sess, nil
}

func (s *MemoryStore) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	s.mu.Lock()
	s.entries[sess.ID] = memoryEntry{
		sess:      *sess,
		expiresAt: time.Now().Add(ttl),
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Destroy(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

// Close stops the eviction loop.
func (s *MemoryStore) Close() {
	close(s.stopCh)
}

func (s *MemoryStore) evictLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for id, entry := range s.entries {
				if now.After(entry.expiresAt) {
					delete(s.entries, id)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}
