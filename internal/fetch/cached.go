package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/vmg75/weather-bot/internal/cache"
)

// FetchFunc produces a fresh payload from the upstream API.
type FetchFunc func(ctx context.Context) (json.RawMessage, error)

// Result is a payload together with its provenance.
type Result struct {
	Payload   json.RawMessage
	FetchedAt time.Time
	// Stale is set when the payload came from an expired cache entry served
	// because the fresh fetch failed.
	Stale bool
}

// Cached binds one cache store to the fetch-or-fallback policy:
//
//  1. a valid cache entry is returned without touching the network;
//  2. otherwise the upstream is fetched, and a success always overwrites
//     the cache (a failed write is logged, never surfaced — the fresh
//     payload still goes to the caller);
//  3. on fetch failure the last cached entry is served however old,
//     marked stale;
//  4. only when there is no entry at all does the error propagate.
//
// Upstream application errors (a structured error payload) skip the stale
// fallback: the provider answered, so the answer is surfaced as is.
type Cached struct {
	store *cache.Store
	log   *zap.Logger
	now   func() time.Time
}

// NewCached wraps store with the fetch-or-fallback policy.
func NewCached(store *cache.Store, log *zap.Logger) *Cached {
	return &Cached{store: store, log: log, now: time.Now}
}

// GetOrFetch implements the policy above for one key.
func (c *Cached) GetOrFetch(ctx context.Context, key string, fn FetchFunc) (Result, error) {
	entry, found := c.store.Get(key)
	if found && entry.Valid(c.now()) {
		return Result{Payload: entry.Payload, FetchedAt: entry.FetchedAt}, nil
	}

	payload, err := fn(ctx)
	if err == nil {
		if perr := c.store.PutAt(key, payload, c.now()); perr != nil {
			// A broken cache must never mask a successful fetch.
			c.log.Warn("cache write failed", zap.String("key", key), zap.Error(perr))
		}
		return Result{Payload: payload, FetchedAt: c.now()}, nil
	}

	var ue *UpstreamError
	var pe *permanentError
	if errors.As(err, &ue) || errors.As(err, &pe) {
		return Result{}, err
	}

	if found {
		c.log.Warn("upstream failed, serving stale cache entry",
			zap.String("key", key),
			zap.Duration("age", entry.Age(c.now())),
			zap.Error(err))
		return Result{Payload: entry.Payload, FetchedAt: entry.FetchedAt, Stale: true}, nil
	}

	return Result{}, err
}
