package entitlements

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/helpdesk-billing/pkg/logger"
)

// Invalidator drops cached entitlements after a write to one of their inputs.
type Invalidator interface {
	InvalidateTenant(ctx context.Context, tenantID uuid.UUID) error
	InvalidateAll(ctx context.Context) error
}

// NoopInvalidator is used when caching is disabled.
type NoopInvalidator struct{}

func (NoopInvalidator) InvalidateTenant(context.Context, uuid.UUID) error { return nil }
func (NoopInvalidator) InvalidateAll(context.Context) error                { return nil }

type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	EntitlementsKey(generation, version int64, tenantID string) string
	EntitlementsGenerationKey() string
	EntitlementsVersionKey(tenantID string) string
}

// CachedResolver serves resolved entitlements from Redis. Entries are keyed by
// the global plan generation and a per-tenant version, both read before the
// inner resolve. Invalidation bumps a counter instead of deleting, so a resolve
// that raced a write stores under a key no later read will build.
type CachedResolver struct {
	inner Resolver
	store cacheStore
	ttl   time.Duration
	logg  *logger.Logger
}

// NewCachedResolver wraps inner with a Redis cache of the given ttl.
func NewCachedResolver(inner Resolver, store cacheStore, ttl time.Duration, logg *logger.Logger) *CachedResolver {
	return &CachedResolver{inner: inner, store: store, ttl: ttl, logg: logg}
}

// Resolve falls back to the inner resolver on any cache failure.
func (c *CachedResolver) Resolve(ctx context.Context, tenantID uuid.UUID) (Entitlements, error) {
	gen, err := c.counter(ctx, c.store.EntitlementsGenerationKey())
	if err != nil {
		c.warn(ctx, "entitlements cache generation unavailable", err)
		return c.inner.Resolve(ctx, tenantID)
	}
	version, err := c.counter(ctx, c.store.EntitlementsVersionKey(tenantID.String()))
	if err != nil {
		c.warn(ctx, "entitlements cache tenant version unavailable", err)
		return c.inner.Resolve(ctx, tenantID)
	}
	key := c.store.EntitlementsKey(gen, version, tenantID.String())

	raw, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var ent Entitlements
		jsonErr := json.Unmarshal([]byte(raw), &ent)
		if jsonErr == nil {
			return ent, nil
		}
		c.warn(ctx, "entitlements cache entry corrupt", jsonErr)
	case !errors.Is(err, goredis.Nil):
		c.warn(ctx, "entitlements cache read failed", err)
	}

	ent, err := c.inner.Resolve(ctx, tenantID)
	if err != nil {
		return Entitlements{}, err
	}
	if payload, err := json.Marshal(ent); err == nil {
		if err := c.store.Set(ctx, key, payload, c.ttl); err != nil {
			c.warn(ctx, "entitlements cache write failed", err)
		}
	}
	return ent, nil
}

func (c *CachedResolver) InvalidateTenant(ctx context.Context, tenantID uuid.UUID) error {
	_, err := c.store.Incr(ctx, c.store.EntitlementsVersionKey(tenantID.String()))
	return err
}

func (c *CachedResolver) InvalidateAll(ctx context.Context) error {
	_, err := c.store.Incr(ctx, c.store.EntitlementsGenerationKey())
	return err
}

// counter reads a generation or version key. A missing key reads as zero.
func (c *CachedResolver) counter(ctx context.Context, key string) (int64, error) {
	raw, err := c.store.Get(ctx, key)
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

func (c *CachedResolver) warn(ctx context.Context, msg string, err error) {
	if c.logg == nil {
		return
	}
	ctx = c.logg.WithField(ctx, "error", err.Error())
	c.logg.Warn(ctx, msg)
}
