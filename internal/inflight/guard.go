// Package inflight prevents a second auth submission for the same session
// while an earlier one is still waiting on the backend.
package inflight

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

// ErrInFlight is returned by Acquire when the key is already held.
var ErrInFlight = errors.New("inflight: submission already in progress")

const (
	defaultTTL       = 30 * time.Second
	defaultKeyPrefix = "issuetracker:inflight:"
)

// Guard hands out exclusive holds per key. The returned release func is safe to call more than once.
type Guard interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// MemoryGuard is a process-local Guard.
type MemoryGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemoryGuard constructs an empty MemoryGuard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{held: make(map[string]struct{})}
}

// Acquire implements Guard.
func (g *MemoryGuard) Acquire(_ context.Context, key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.held[key]; ok {
		return nil, ErrInFlight
	}
	g.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, key)
			g.mu.Unlock()
		})
	}, nil
}

// releaseScript deletes the key only when it still carries our token, so an
// expired hold never releases a newer one.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard shares holds across replicas. Holds expire after TTL so a crashed
// replica cannot block a session forever.
type RedisGuard struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// NewRedisGuard constructs a RedisGuard. A non-positive ttl selects the default.
func NewRedisGuard(client redis.UniversalClient, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisGuard{client: client, ttl: ttl, prefix: defaultKeyPrefix}
}

// Acquire implements Guard.
func (g *RedisGuard) Acquire(ctx context.Context, key string) (func(), error) {
	token := ulid.Make().String()
	redisKey := g.prefix + key

	ok, err := g.client.SetNX(ctx, redisKey, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("inflight: acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrInFlight
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The request context may already be cancelled here.
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, g.client, []string{redisKey}, token).Err()
		})
	}, nil
}
