package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vmg75/weather-bot/internal/cache"
)

func newTestCached(t *testing.T) (*cache.Store, *Cached) {
	t.Helper()
	store := cache.NewStore(filepath.Join(t.TempDir(), "c.json"), zap.NewNop())
	return store, NewCached(store, zap.NewNop())
}

func fetchCounter(payload string, err error) (FetchFunc, *int) {
	calls := 0
	return func(ctx context.Context) (json.RawMessage, error) {
		calls++
		if err != nil {
			return nil, err
		}
		return json.RawMessage(payload), nil
	}, &calls
}

func TestGetOrFetch_ValidHitSkipsNetwork(t *testing.T) {
	store, c := newTestCached(t)
	if err := store.Put("k", json.RawMessage(`{"cached":1}`)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	fn, calls := fetchCounter(`{"fresh":1}`, nil)
	res, err := c.GetOrFetch(context.Background(), "k", fn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *calls != 0 {
		t.Fatalf("valid hit must not fetch, got %d calls", *calls)
	}
	if res.Stale {
		t.Fatal("valid hit must not be stale")
	}
	if string(res.Payload) != `{"cached":1}` {
		t.Fatalf("wrong payload: %s", res.Payload)
	}
}

func TestGetOrFetch_MissFetchesAndCaches(t *testing.T) {
	store, c := newTestCached(t)

	fn, calls := fetchCounter(`{"fresh":1}`, nil)
	res, err := c.GetOrFetch(context.Background(), "k", fn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *calls != 1 {
		t.Fatalf("want 1 fetch, got %d", *calls)
	}
	if string(res.Payload) != `{"fresh":1}` {
		t.Fatalf("wrong payload: %s", res.Payload)
	}
	if _, ok := store.Get("k"); !ok {
		t.Fatal("fresh payload was not cached")
	}
}

func TestGetOrFetch_ExpiredEntryRefetched(t *testing.T) {
	store, c := newTestCached(t)
	old := time.Now().UTC().Add(-2 * cache.TTL)
	if err := store.PutAt("k", json.RawMessage(`{"old":1}`), old); err != nil {
		t.Fatalf("seed: %v", err)
	}

	fn, calls := fetchCounter(`{"new":1}`, nil)
	res, err := c.GetOrFetch(context.Background(), "k", fn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *calls != 1 {
		t.Fatalf("expired entry must refetch, got %d calls", *calls)
	}
	if string(res.Payload) != `{"new":1}` || res.Stale {
		t.Fatalf("want fresh payload, got %s stale=%v", res.Payload, res.Stale)
	}
}

func TestGetOrFetch_FailureServesStale(t *testing.T) {
	store, c := newTestCached(t)
	old := time.Now().UTC().Add(-2 * cache.TTL)
	if err := store.PutAt("k", json.RawMessage(`{"old":1}`), old); err != nil {
		t.Fatalf("seed: %v", err)
	}

	fn, _ := fetchCounter("", &ExhaustedError{Attempts: 3, Last: errors.New("timeout")})
	res, err := c.GetOrFetch(context.Background(), "k", fn)
	if err != nil {
		t.Fatalf("stale fallback expected, got error: %v", err)
	}
	if !res.Stale {
		t.Fatal("result must be marked stale")
	}
	if string(res.Payload) != `{"old":1}` {
		t.Fatalf("wrong payload: %s", res.Payload)
	}
}

func TestGetOrFetch_FailureWithNoCacheSurfaces(t *testing.T) {
	_, c := newTestCached(t)

	boom := &ExhaustedError{Attempts: 3, Last: errors.New("timeout")}
	fn, _ := fetchCounter("", boom)
	_, err := c.GetOrFetch(context.Background(), "k", fn)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("want ErrExhausted, got %v", err)
	}
}

func TestGetOrFetch_UpstreamErrorSkipsFallback(t *testing.T) {
	store, c := newTestCached(t)
	old := time.Now().UTC().Add(-2 * cache.TTL)
	if err := store.PutAt("k", json.RawMessage(`{"old":1}`), old); err != nil {
		t.Fatalf("seed: %v", err)
	}

	fn, _ := fetchCounter("", &UpstreamError{Code: "404", Message: "city not found"})
	_, err := c.GetOrFetch(context.Background(), "k", fn)
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("upstream error must surface past stale cache, got %v", err)
	}
}

func TestGetOrFetch_CacheWriteFailureStillReturnsPayload(t *testing.T) {
	// A directory at the store path makes every save fail.
	dir := t.TempDir()
	store := cache.NewStore(dir, zap.NewNop())
	c := NewCached(store, zap.NewNop())

	fn, _ := fetchCounter(`{"fresh":1}`, nil)
	res, err := c.GetOrFetch(context.Background(), "k", fn)
	if err != nil {
		t.Fatalf("broken cache must not mask the fetch: %v", err)
	}
	if string(res.Payload) != `{"fresh":1}` {
		t.Fatalf("wrong payload: %s", res.Payload)
	}
}

func TestGetOrFetch_PermanentErrorNotCached(t *testing.T) {
	store, c := newTestCached(t)

	sentinel := errors.New("no matching place")
	fn, _ := fetchCounter("", Permanent(sentinel))
	_, err := c.GetOrFetch(context.Background(), "k", fn)
	if !errors.Is(err, sentinel) {
		t.Fatalf("want wrapped sentinel, got %v", err)
	}
	if _, ok := store.Get("k"); ok {
		t.Fatal("permanent failure must not create a cache entry")
	}
}
