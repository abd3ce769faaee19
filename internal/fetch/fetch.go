// Package fetch performs upstream API calls with bounded retry and backoff,
// and layers the cache-or-fetch workflow on top: a valid cache entry
// short-circuits the network, a failed fetch falls back to the last cached
// payload however stale, and only a miss with no cache at all surfaces an
// error.
package fetch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const maxAttempts = 3

// Doer abstracts *http.Client for tests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher issues GET requests returning JSON, retrying transient failures
// (rate limiting, connection errors, timeouts) with exponential backoff:
// 1s, 2s, 4s. Application-level and other HTTP errors fail immediately.
type Fetcher struct {
	client Doer
	log    *zap.Logger

	// sleep waits for the backoff delay; injectable so tests don't block.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Fetcher using the given HTTP client.
func New(client Doer, log *zap.Logger) *Fetcher {
	return &Fetcher{
		client: client,
		log:    log,
		sleep:  sleepCtx,
	}
}

// GetJSON fetches url and returns the raw JSON body.
// On transient failures it retries up to 3 attempts total; once exhausted it
// returns an *ExhaustedError. It does not consult any cache.
func (f *Fetcher) GetJSON(ctx context.Context, url string) (json.RawMessage, error) {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			// 2^(attempt-1) seconds: 1s before the second try, 2s before
			// the third. The wait aborts when ctx is canceled.
			delay := time.Duration(1<<(attempt-1)) * time.Second
			f.log.Info("transient upstream failure, backing off",
				zap.Duration("delay", delay),
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
			if err := f.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		payload, err := f.getOnce(ctx, url)
		if err == nil {
			return payload, nil
		}
		if !transient(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, &ExhaustedError{Attempts: maxAttempts, Last: lastErr}
}

func (f *Fetcher) getOnce(ctx context.Context, url string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transportError{err: err}
	}
	if !json.Valid(body) {
		return nil, errMalformed
	}
	return json.RawMessage(body), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
