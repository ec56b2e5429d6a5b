package nonce

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store using in-memory storage.
// This is NOT suitable for distributed deployments.
type MemoryStore struct {
	mu      sync.Mutex
	items   map[string]time.Time
	stopCh  chan struct{}
	stopped bool
}

// NewMemoryStore creates a new in-memory marker store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		items:  make(map[string]time.Time),
		stopCh: make(chan struct{}),
	}

	// Start cleanup goroutine.
	go s.cleanupLoop()

	return s
}

// Consume marks key as used. Atomic under the store mutex.
func (s *MemoryStore) Consume(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expiresAt, ok := s.items[key]; ok && time.Now().Before(expiresAt) {
		return false, nil
	}

	s.items[key] = time.Now().Add(ttl)
	return true, nil
}

// Exists reports whether key is currently marked.
func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt, ok := s.items[key]
	if !ok || time.Now().After(expiresAt) {
		return false, nil
	}
	return true, nil
}

// Release removes the mark on key.
func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

// Close stops the cleanup goroutine.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.stopped {
		close(s.stopCh)
		s.stopped = true
	}
	return nil
}

// cleanupLoop periodically removes expired markers.
func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup removes expired markers.
func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, expiresAt := range s.items {
		if now.After(expiresAt) {
			delete(s.items, key)
		}
	}
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
