package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultLeaseTTL = 30 * time.Minute

// Lock guards a cron cycle so that one replica runs it at a time.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// keyedLock is implemented by locks that can name the resource they guard.
type keyedLock interface {
	Key() string
}

type leaseClient interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ReleaseIfOwner(ctx context.Context, key, owner string) (bool, error)
}

// RedisLock holds a TTL lease on a Redis key. Every acquire writes a fresh
// token, and release deletes the key only while it still carries that token.
type RedisLock struct {
	client leaseClient
	key    string
	ttl    time.Duration

	mu       sync.Mutex
	token    string
	acquired time.Time
}

func NewRedisLock(client leaseClient, key string, ttl time.Duration) (*RedisLock, error) {
	switch {
	case client == nil:
		return nil, errors.New("cron lock: redis client required")
	case key == "":
		return nil, errors.New("cron lock: key required")
	}
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

func (l *RedisLock) Key() string { return l.key }

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	won, err := l.client.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", l.key, err)
	}
	if !won {
		return false, nil
	}
	l.mu.Lock()
	l.token, l.acquired = token, time.Now()
	l.mu.Unlock()
	return true, nil
}

// Release is a no-op when this instance holds no lease. A lease that expired
// and was taken by another replica is left in place.
func (l *RedisLock) Release(ctx context.Context) error {
	l.mu.Lock()
	token, acquired := l.token, l.acquired
	l.token, l.acquired = "", time.Time{}
	l.mu.Unlock()

	if token == "" {
		return nil
	}
	released, err := l.client.ReleaseIfOwner(ctx, l.key, token)
	if err != nil {
		return fmt.Errorf("release lease %s: %w", l.key, err)
	}
	if !released && time.Since(acquired) < l.ttl {
		return fmt.Errorf("release lease %s: token missing before ttl elapsed", l.key)
	}
	return nil
}

// LocalLock is an in-process Lock for single-replica deployments and tests.
// The zero value is ready to use.
type LocalLock struct {
	Name string

	mu   sync.Mutex
	held bool
}

func (l *LocalLock) Key() string { return l.Name }

func (l *LocalLock) Acquire(context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *LocalLock) Release(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	return nil
}
