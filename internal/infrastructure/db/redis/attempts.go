package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const attemptPrefix = "attempts:"

// incrScript increments a counter and starts its window on the first hit,
// in one round trip so a crash between INCR and EXPIRE cannot leave a key
// without a TTL.
var incrScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// rememberScript adds a member to a capped set and starts its window when the
// set has no TTL yet.
var rememberScript = redis.NewScript(`
if redis.call("SISMEMBER", KEYS[1], ARGV[1]) == 0 and redis.call("SCARD", KEYS[1]) < tonumber(ARGV[2]) then
  redis.call("SADD", KEYS[1], ARGV[1])
end
if redis.call("PTTL", KEYS[1]) == -1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[3])
end
return 0
`)

// AttemptStore is a fixed-window counter store shared by every API instance.
// Key format: attempts:<tracker>:<ip|email>
type AttemptStore struct {
	client redis.UniversalClient
	window time.Duration
}

// NewAttemptStore creates an AttemptStore wrapping the given Redis client.
func NewAttemptStore(client redis.UniversalClient, window time.Duration) *AttemptStore {
	return &AttemptStore{client: client, window: window}
}

func (s *AttemptStore) Increment(ctx context.Context, key string) (int, error) {
	n, err := incrScript.Run(ctx, s.client, []string{s.key(key)}, s.window.Milliseconds()).Int()
	if err != nil {
		return 0, fmt.Errorf("attempt increment: %w", err)
	}
	return n, nil
}

// Count returns zero for missing or expired keys.
func (s *AttemptStore) Count(ctx context.Context, key string) (int, error) {
	n, err := s.client.Get(ctx, s.key(key)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("attempt count: %w", err)
	}
	return n, nil
}

func (s *AttemptStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("attempt reset: %w", err)
	}
	return nil
}

func (s *AttemptStore) Remember(ctx context.Context, key, member string, limit int) error {
	err := rememberScript.Run(ctx, s.client, []string{s.key(key)}, member, limit, s.window.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("attempt remember: %w", err)
	}
	return nil
}

func (s *AttemptStore) Members(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.SMembers(ctx, s.key(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("attempt members: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}
	sort.Strings(members)
	return members, nil
}

func (s *AttemptStore) key(k string) string {
	return attemptPrefix + k
}
