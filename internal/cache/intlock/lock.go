// Package intlock serializes per-integration config updates with a
// Redis-backed distributed mutex keyed by integration id.
package intlock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Locker is a Redis-backed per-integration mutex.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{client: client, ttl: ttl}
}

var acquireScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
  return 1
end
return 0
`)

var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// Handle is a held lock; call Release to free it.
type Handle struct {
	locker *Locker
	key    string
	token  string
}

// Acquire attempts to take the per-integration lock, returning false if it
// is already held.
func (l *Locker) Acquire(ctx context.Context, integrationID string) (*Handle, bool, error) {
	key := lockKey(integrationID)
	token := uuid.New().String()

	res, err := acquireScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return nil, false, fmt.Errorf("intlock: acquire: %w", err)
	}
	if res != 1 {
		return nil, false, nil
	}
	return &Handle{locker: l, key: key, token: token}, true, nil
}

// Release frees the lock if this handle still holds it.
func (h *Handle) Release(ctx context.Context) error {
	if h == nil {
		return nil
	}
	if _, err := releaseScript.Run(ctx, h.locker.client, []string{h.key}, h.token).Result(); err != nil {
		return fmt.Errorf("intlock: release: %w", err)
	}
	return nil
}

func lockKey(integrationID string) string {
	return fmt.Sprintf("sync:integration:%s:config-lock", integrationID)
}
