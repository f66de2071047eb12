// Package cache holds read-through caches for products and carts.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrCacheMiss is returned by Store.Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Store is a byte-level cache backend.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

func ProductKey(id string) string {
	return "product:" + id
}

func CartKey(userID string) string {
	return "cart:" + userID
}

// Typed stores JSON-encoded values of T and collapses concurrent misses for
// the same key into one load.
type Typed[T any] struct {
	store Store
	ttl   time.Duration
	group singleflight.Group
}

func NewTyped[T any](store Store, ttl time.Duration) *Typed[T] {
	return &Typed[T]{store: store, ttl: ttl}
}

func (c *Typed[T]) Get(ctx context.Context, key string) (*T, error) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return &v, nil
}

func (c *Typed[T]) Set(ctx context.Context, key string, v *T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.store.Set(ctx, key, data, c.ttl)
}

func (c *Typed[T]) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.store.Delete(ctx, keys...)
}

// GetOrLoad returns the cached value or calls load and caches its result.
// Cache failures degrade to calling load; load errors are not cached. The
// boolean reports a cache hit.
func (c *Typed[T]) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) (*T, error)) (*T, bool, error) {
	if v, err := c.Get(ctx, key); err == nil {
		return v, true, nil
	}

	res, err, _ := c.group.Do(key, func() (any, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		_ = c.Set(ctx, key, v)
		return v, nil
	})
	if err != nil {
		return nil, false, err
	}
	return res.(*T), false, nil
}
