// Package attempts holds the process-local attempt counter store.
package attempts

import (
	"context"
	"slices"
	"sync"
	"time"
)

type entry struct {
	count       int
	members     []string
	windowStart time.Time
}

// MemoryStore is a fixed-window counter map guarded by a single mutex.
// An entry whose window elapsed is treated as absent and is dropped by Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
	window  time.Duration
	now     func() time.Time
}

// Option customises a MemoryStore.
type Option func(*MemoryStore)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) { s.now = now }
}

func NewMemoryStore(window time.Duration, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*entry),
		window:  window,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Increment(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e := s.live(key, now)
	if e == nil {
		e = &entry{windowStart: now}
		s.entries[key] = e
	}
	e.count++
	return e.count, nil
}

func (s *MemoryStore) Count(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.live(key, s.now()); e != nil {
		return e.count, nil
	}
	return 0, nil
}

func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Remember(_ context.Context, key, member string, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e := s.live(key, now)
	if e == nil {
		e = &entry{windowStart: now}
		s.entries[key] = e
	}
	if len(e.members) < limit && !slices.Contains(e.members, member) {
		e.members = append(e.members, member)
	}
	return nil
}

func (s *MemoryStore) Members(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key, s.now())
	if e == nil || len(e.members) == 0 {
		return nil, nil
	}
	out := slices.Clone(e.members)
	slices.Sort(out)
	return out, nil
}

// Sweep evicts every expired entry and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for k, e := range s.entries {
		if s.expired(e, now) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored keys, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Run sweeps every interval until ctx is cancelled.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.window
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// live returns the entry for key if its window is still open. Caller holds mu.
func (s *MemoryStore) live(key string, now time.Time) *entry {
	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	if s.expired(e, now) {
		delete(s.entries, key)
		return nil
	}
	return e
}

func (s *MemoryStore) expired(e *entry, now time.Time) bool {
	return now.Sub(e.windowStart) > s.window
}
