package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process counter store for tests and single-instance
// local runs. State is local to the process, so it cannot enforce a global
// limit across replicas.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
	now      func() time.Time
}

type memoryCounter struct {
	count     int64
	expiresAt time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]*memoryCounter),
		now:      time.Now,
	}
}

// Incr increments the counter for key, starting fresh when its window expired.
func (s *MemoryStore) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c, ok := s.counters[key]
	if !ok || (!c.expiresAt.IsZero() && now.After(c.expiresAt)) {
		c = &memoryCounter{}
		s.counters[key] = c
	}
	c.count++
	return c.count, nil
}

// Expire sets the key's expiry relative to now.
func (s *MemoryStore) Expire(_ context.Context, key string, seconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.counters[key]; ok {
		c.expiresAt = s.now().Add(time.Duration(seconds) * time.Second)
	}
	return nil
}
