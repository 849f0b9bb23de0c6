package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/LimitlessJacko/LimitlessFlashBot/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockLua deletes a lock key only if its value matches the caller's unique
// token. This prevents one holder from accidentally releasing another
// holder's lock.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// extendLua pushes the lock's expiry forward only while the caller still
// holds it.
const extendLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`

// LockManager implements domain.LockManager using Redis SETNX with a TTL and
// Lua-based conditional unlock and extend.
type LockManager struct {
	rdb      *redis.Client
	unlockSc *redis.Script
	extendSc *redis.Script
}

// NewLockManager creates a LockManager backed by the given Client.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{
		rdb:      c.Underlying(),
		unlockSc: redis.NewScript(unlockLua),
		extendSc: redis.NewScript(extendLua),
	}
}

func lockKey(key string) string {
	return "lock:" + key
}

// Acquire attempts to obtain a distributed lock for the given key with the
// specified TTL. On success it returns a Lock handle that the holder must
// Release, and should Extend periodically when holding beyond the TTL.
//
// It returns domain.ErrLockHeld if the lock is already held by another party.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (domain.Lock, error) {
	token := uuid.New().String()
	lk := lockKey(key)

	ok, err := lm.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	return &lock{lm: lm, key: lk, token: token}, nil
}

// lock is a held lock handle. It is not safe for concurrent use except for
// repeated Release calls.
type lock struct {
	lm       *LockManager
	key      string
	token    string
	released bool
}

// Extend pushes the lock's expiry forward by ttl. It fails with
// domain.ErrLockHeld when the lock was lost (expired and taken by another
// party).
func (l *lock) Extend(ctx context.Context, ttl time.Duration) error {
	if l.released {
		return domain.ErrLockHeld
	}
	res, err := l.lm.extendSc.Run(ctx, l.lm.rdb, []string{l.key}, l.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("redis: extend lock %s: %w", l.key, err)
	}
	if res == 0 {
		return domain.ErrLockHeld
	}
	return nil
}

// Release frees the lock. It is safe to call more than once.
func (l *lock) Release() {
	if l.released {
		return
	}
	l.released = true

	// Use a background context so release succeeds even if the caller's
	// context is already cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = l.lm.unlockSc.Run(ctx, l.lm.rdb, []string{l.key}, l.token).Err()
}

// Compile-time interface check.
var _ domain.LockManager = (*LockManager)(nil)
