package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/saiset-co/b2b-portal/types"
	"github.com/saiset-co/b2b-portal/utils"
)

// RawValue is a JSON encoded value returned by stores that serialize entries.
type RawValue []byte

// Memoizer wraps a store with the read-through pattern.
//
// Without coalescing two concurrent misses for the same key both run their
// producer and the last Set wins. With coalescing the misses share a single
// producer call; the producer then runs with the context of the first caller.
type Memoizer struct {
	store    types.CacheManager
	logger   types.Logger
	coalesce bool
	group    singleflight.Group
}

func NewMemoizer(store types.CacheManager, logger types.Logger, coalesce bool) *Memoizer {
	return &Memoizer{
		store:    store,
		logger:   logger,
		coalesce: coalesce,
	}
}

func (m *Memoizer) Store() types.CacheManager {
	return m.store
}

// Memoize returns the cached value for key or calls fn, caches its result for
// ttl and returns it. Errors from fn are returned as is and never cached.
func Memoize[T any](ctx context.Context, m *Memoizer, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if value, ok := GetAs[T](m.store, key); ok {
		return value, nil
	}

	if !m.coalesce {
		return load(ctx, m, key, ttl, fn)
	}

	result, err, shared := m.group.Do(key, func() (interface{}, error) {
		return load(ctx, m, key, ttl, fn)
	})

	if shared {
		m.logger.Debug("Coalesced cache miss", zap.String("key", key))
	}

	if err != nil {
		var zero T
		return zero, err
	}

	return result.(T), nil
}

func load[T any](ctx context.Context, m *Memoizer, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	value, err := fn(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	if setErr := m.store.Set(key, value, ttl); setErr != nil {
		m.logger.Warn("Failed to store memoized value",
			zap.String("key", key),
			zap.Error(setErr))
	}

	return value, nil
}

// GetAs reads key and converts the stored value to T. Values kept by
// serializing stores are decoded from JSON.
func GetAs[T any](store types.CacheManager, key string) (T, bool) {
	var zero T

	value, ok := store.Get(key)
	if !ok {
		return zero, false
	}

	switch typed := value.(type) {
	case T:
		return typed, true
	case RawValue:
		var decoded T
		if err := utils.Unmarshal([]byte(typed), &decoded); err != nil {
			return zero, false
		}
		return decoded, true
	default:
		return zero, false
	}
}
