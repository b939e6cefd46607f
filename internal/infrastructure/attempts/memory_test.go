package attempts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newStore() (*MemoryStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
	return NewMemoryStore(15*time.Minute, WithClock(clock.Now)), clock
}

func TestMemoryStore_IncrementWithinWindow(t *testing.T) {
	s, clock := newStore()
	ctx := context.Background()

	for i := 1; i <= 6; i++ {
		n, err := s.Increment(ctx, "login:email:bob@x.com")
		require.NoError(t, err)
		assert.Equal(t, i, n)
		clock.Advance(time.Minute)
	}

	n, err := s.Count(ctx, "login:email:bob@x.com")
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	n, _ = s.Count(ctx, "login:email:other@x.com")
	assert.Zero(t, n)
}

func TestMemoryStore_WindowReset(t *testing.T) {
	s, clock := newStore()
	ctx := context.Background()

	// Five failures, each separated by more than the window, never accumulate.
	for i := 0; i < 5; i++ {
		n, err := s.Increment(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		clock.Advance(15*time.Minute + time.Second)
	}

	// The window is anchored at the first failure, not the latest one.
	_, _ = s.Increment(ctx, "k")
	clock.Advance(10 * time.Minute)
	_, _ = s.Increment(ctx, "k")
	clock.Advance(5*time.Minute + time.Second)
	n, _ := s.Count(ctx, "k")
	assert.Zero(t, n)
}

func TestMemoryStore_BoundaryIsInclusive(t *testing.T) {
	s, clock := newStore()
	ctx := context.Background()

	_, _ = s.Increment(ctx, "k")
	clock.Advance(15 * time.Minute)
	n, _ := s.Increment(ctx, "k")
	assert.Equal(t, 2, n, "exactly one window later still counts")
}

func TestMemoryStore_ResetAndSweep(t *testing.T) {
	s, clock := newStore()
	ctx := context.Background()

	_, _ = s.Increment(ctx, "a")
	_, _ = s.Increment(ctx, "b")
	require.NoError(t, s.Reset(ctx, "a"))
	n, _ := s.Count(ctx, "a")
	assert.Zero(t, n)

	clock.Advance(time.Minute)
	_, _ = s.Increment(ctx, "c")
	clock.Advance(15 * time.Minute)

	assert.Equal(t, 1, s.Sweep(), "only b is past its window")
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_RememberCapsAndExpires(t *testing.T) {
	s, clock := newStore()
	ctx := context.Background()

	for _, email := range []string{"carol@x.com", "bob@x.com", "carol@x.com", "dave@x.com"} {
		require.NoError(t, s.Remember(ctx, "seen:login:ip:203.0.113.9", email, 2))
	}
	members, err := s.Members(ctx, "seen:login:ip:203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob@x.com", "carol@x.com"}, members)

	clock.Advance(15*time.Minute + time.Second)
	members, err = s.Members(ctx, "seen:login:ip:203.0.113.9")
	require.NoError(t, err)
	assert.Empty(t, members)
	assert.Zero(t, s.Len(), "expired sets are dropped on read")
}

func TestMemoryStore_ConcurrentIncrements(t *testing.T) {
	s, _ := newStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Increment(ctx, "shared")
		}()
	}
	wg.Wait()

	n, _ := s.Count(ctx, "shared")
	assert.Equal(t, 50, n)
}

func TestMemoryStore_RunStopsOnCancel(t *testing.T) {
	s, _ := newStore()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
