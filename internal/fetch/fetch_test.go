package fetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"
)

// step is one scripted round trip.
type step struct {
	status int
	body   string
	err    error
}

type scriptedDoer struct {
	steps []step
	calls int
}

func (d *scriptedDoer) Do(req *http.Request) (*http.Response, error) {
	if d.calls >= len(d.steps) {
		panic("scriptedDoer: unexpected extra call")
	}
	s := d.steps[d.calls]
	d.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &http.Response{
		StatusCode: s.status,
		Body:       io.NopCloser(bytes.NewBufferString(s.body)),
	}, nil
}

// newTestFetcher records backoff delays instead of sleeping.
func newTestFetcher(t *testing.T, d Doer) (*Fetcher, *[]time.Duration) {
	t.Helper()
	f := New(d, zap.NewNop())
	var delays []time.Duration
	f.sleep = func(ctx context.Context, dur time.Duration) error {
		delays = append(delays, dur)
		return nil
	}
	return f, &delays
}

func TestGetJSON_SuccessFirstTry(t *testing.T) {
	d := &scriptedDoer{steps: []step{{status: 200, body: `{"ok":true}`}}}
	f, delays := newTestFetcher(t, d)

	payload, err := f.GetJSON(context.Background(), "http://x/api")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != `{"ok":true}` {
		t.Fatalf("wrong payload: %s", payload)
	}
	if len(*delays) != 0 {
		t.Fatalf("no backoff expected, got %v", *delays)
	}
}

func TestGetJSON_RetriesRateLimitWithBackoff(t *testing.T) {
	d := &scriptedDoer{steps: []step{
		{status: 429},
		{status: 429},
		{status: 200, body: `{}`},
	}}
	f, delays := newTestFetcher(t, d)

	if _, err := f.GetJSON(context.Background(), "http://x/api"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.calls != 3 {
		t.Fatalf("want 3 attempts, got %d", d.calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(*delays) != len(want) || (*delays)[0] != want[0] || (*delays)[1] != want[1] {
		t.Fatalf("want delays %v, got %v", want, *delays)
	}
}

func TestGetJSON_RetriesTransportErrors(t *testing.T) {
	d := &scriptedDoer{steps: []step{
		{err: errors.New("connection refused")},
		{status: 200, body: `[]`},
	}}
	f, _ := newTestFetcher(t, d)

	if _, err := f.GetJSON(context.Background(), "http://x/api"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.calls != 2 {
		t.Fatalf("want 2 attempts, got %d", d.calls)
	}
}

func TestGetJSON_ExhaustsAfterThreeAttempts(t *testing.T) {
	d := &scriptedDoer{steps: []step{
		{err: errors.New("timeout")},
		{err: errors.New("timeout")},
		{err: errors.New("timeout")},
	}}
	f, _ := newTestFetcher(t, d)

	_, err := f.GetJSON(context.Background(), "http://x/api")
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("want ErrExhausted, got %v", err)
	}
	var ex *ExhaustedError
	if !errors.As(err, &ex) || ex.Attempts != 3 {
		t.Fatalf("want 3 recorded attempts, got %+v", err)
	}
	if d.calls != 3 {
		t.Fatalf("want 3 attempts, got %d", d.calls)
	}
}

func TestGetJSON_ServerErrorFailsImmediately(t *testing.T) {
	d := &scriptedDoer{steps: []step{{status: 500, body: `oops`}}}
	f, delays := newTestFetcher(t, d)

	_, err := f.GetJSON(context.Background(), "http://x/api")
	var se *StatusError
	if !errors.As(err, &se) || se.Status != 500 {
		t.Fatalf("want StatusError 500, got %v", err)
	}
	if d.calls != 1 || len(*delays) != 0 {
		t.Fatalf("500 must not be retried: calls=%d delays=%v", d.calls, *delays)
	}
}

func TestGetJSON_MalformedBodyFailsImmediately(t *testing.T) {
	d := &scriptedDoer{steps: []step{{status: 200, body: `{broken`}}}
	f, _ := newTestFetcher(t, d)

	_, err := f.GetJSON(context.Background(), "http://x/api")
	if err == nil {
		t.Fatal("expected error for malformed body")
	}
	if d.calls != 1 {
		t.Fatalf("malformed body must not be retried, got %d calls", d.calls)
	}
}

func TestGetJSON_BackoffAbortsOnCancel(t *testing.T) {
	d := &scriptedDoer{steps: []step{{status: 429}}}
	f := New(d, zap.NewNop())
	f.sleep = func(ctx context.Context, _ time.Duration) error {
		return context.Canceled
	}

	_, err := f.GetJSON(context.Background(), "http://x/api")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}
