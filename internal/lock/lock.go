// Package lock serialises balance-affecting work per user.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrNotHeld is returned by release when the lock expired or was taken over.
var ErrNotHeld = errors.New("lock not held")

// Locker acquires an exclusive lock on key until release is called.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func() error, err error)
}

// UserKey is the lock key guarding one user's balance.
func UserKey(userID uuid.UUID) string { return "lock:user:" + userID.String() }

// compare-and-delete so a holder never releases a lock it lost to TTL expiry.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`

// RedisLocker is a SET NX PX lock shared by every API instance.
type RedisLocker struct {
	rdb      *redis.Client
	ttl      time.Duration
	retry    time.Duration
	newToken func() string
}

func NewRedisLocker(rdb *redis.Client, ttl, retry time.Duration) *RedisLocker {
	return &RedisLocker{rdb: rdb, ttl: ttl, retry: retry, newToken: func() string { return uuid.New().String() }}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func() error, error) {
	token := l.newToken()
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
	return func() error {
		// detached from ctx: a cancelled request must still release.
		n, err := l.rdb.Eval(context.Background(), releaseScript, []string{key}, token).Int64()
		if err != nil {
			return fmt.Errorf("release %s: %w", key, err)
		}
		if n == 0 {
			return ErrNotHeld
		}
		return nil
	}, nil
}

// LocalLocker is an in-process keyed mutex for single-node deployments.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]chan struct{})}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func() error, error) {
	l.mu.Lock()
	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() error {
		once.Do(func() { <-ch })
		return nil
	}, nil
}
