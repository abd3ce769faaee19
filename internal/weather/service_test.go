package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vmg75/weather-bot/internal/cache"
	"github.com/vmg75/weather-bot/internal/fetch"
	"github.com/vmg75/weather-bot/internal/owm"
)

type fakeProvider struct {
	current  json.RawMessage
	forecast json.RawMessage
	air      json.RawMessage
	calls    int
}

func (p *fakeProvider) CurrentWeather(ctx context.Context, lat, lon float64) (json.RawMessage, error) {
	p.calls++
	return p.current, nil
}

func (p *fakeProvider) Forecast(ctx context.Context, lat, lon float64, count int) (json.RawMessage, error) {
	p.calls++
	return p.forecast, nil
}

func (p *fakeProvider) AirPollution(ctx context.Context, lat, lon float64) (json.RawMessage, error) {
	p.calls++
	return p.air, nil
}

func newTestService(t *testing.T, p Provider) *Service {
	t.Helper()
	dir := t.TempDir()
	mk := func(name string) *fetch.Cached {
		return fetch.NewCached(cache.NewStore(filepath.Join(dir, name), zap.NewNop()), zap.NewNop())
	}
	return NewService(p, mk("current.json"), mk("forecast.json"), mk("air.json"), zap.NewNop())
}

// feed builds a forecast payload with one item per given UTC timestamp.
func feed(t *testing.T, stamps ...time.Time) json.RawMessage {
	t.Helper()
	fc := owm.Forecast{}
	fc.City.Name = "Testville"
	for i, ts := range stamps {
		var item owm.ForecastItem
		item.Dt = ts.Unix()
		item.Main.Temp = float64(i)
		fc.List = append(fc.List, item)
	}
	payload, err := json.Marshal(fc)
	if err != nil {
		t.Fatalf("marshal feed: %v", err)
	}
	return payload
}

func day(d, hour int) time.Time {
	return time.Date(2026, 8, d, hour, 0, 0, 0, time.UTC)
}

func TestDeriveDaily_PicksSlotClosestToNoon(t *testing.T) {
	payload := feed(t,
		day(25, 6), day(25, 9), day(25, 15), day(25, 21),
		day(26, 0), day(26, 12), day(26, 18),
	)

	out, err := deriveDaily(payload, 7)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	var daily owm.Forecast
	if err := json.Unmarshal(out, &daily); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(daily.List) != 2 {
		t.Fatalf("want 2 days, got %d", len(daily.List))
	}
	// Day 25: 09:00 and 15:00 are both 3h from noon; the earlier one wins.
	if got := time.Unix(daily.List[0].Dt, 0).UTC().Hour(); got != 9 {
		t.Fatalf("day 1: want 09:00 slot, got %02d:00", got)
	}
	if got := time.Unix(daily.List[1].Dt, 0).UTC().Hour(); got != 12 {
		t.Fatalf("day 2: want 12:00 slot, got %02d:00", got)
	}
}

func TestDeriveDaily_CapsAtRequestedDays(t *testing.T) {
	var stamps []time.Time
	for d := 20; d < 30; d++ {
		stamps = append(stamps, day(d, 12))
	}
	out, err := deriveDaily(feed(t, stamps...), 7)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	var daily owm.Forecast
	if err := json.Unmarshal(out, &daily); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(daily.List) != 7 {
		t.Fatalf("want 7 days, got %d", len(daily.List))
	}
	if daily.City.Name != "Testville" {
		t.Fatalf("city block must carry over, got %q", daily.City.Name)
	}
}

func TestHourly_CountIsPartOfCacheKey(t *testing.T) {
	p := &fakeProvider{forecast: feed(t, day(25, 12))}
	s := newTestService(t, p)
	ctx := context.Background()

	if _, err := s.Hourly(ctx, 55.75, 37.61, 8); err != nil {
		t.Fatalf("hourly 8: %v", err)
	}
	if _, err := s.Hourly(ctx, 55.75, 37.61, 16); err != nil {
		t.Fatalf("hourly 16: %v", err)
	}
	if p.calls != 2 {
		t.Fatalf("different counts must fetch separately, got %d calls", p.calls)
	}

	// Same count again is a cache hit.
	if _, err := s.Hourly(ctx, 55.75, 37.61, 8); err != nil {
		t.Fatalf("hourly repeat: %v", err)
	}
	if p.calls != 2 {
		t.Fatalf("repeat must hit cache, got %d calls", p.calls)
	}
}

func TestHourly_ClampsBadCounts(t *testing.T) {
	p := &fakeProvider{forecast: feed(t, day(25, 12))}
	s := newTestService(t, p)

	for _, count := range []int{0, -3, HourlyCount + 1} {
		if _, err := s.Hourly(context.Background(), 1, 2, count); err != nil {
			t.Fatalf("hourly count=%d: %v", count, err)
		}
	}
	// All three clamp to the default and share one cache entry.
	if p.calls != 1 {
		t.Fatalf("clamped counts must share a key, got %d calls", p.calls)
	}
}

func TestCurrent_RoundTrip(t *testing.T) {
	cur := fmt.Sprintf(`{"name":"Bern","dt":%d,"main":{"temp":18.4,"humidity":60},"wind":{"speed":2.5,"deg":90},"weather":[{"description":"clear sky"}],"sys":{"country":"CH"}}`, day(25, 12).Unix())
	p := &fakeProvider{current: json.RawMessage(cur)}
	s := newTestService(t, p)

	rep, err := s.Current(context.Background(), 46.95, 7.45)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if rep.Stale {
		t.Fatal("fresh fetch must not be stale")
	}
	text := FormatCurrent(rep)
	for _, want := range []string{"Bern, CH", "18.4°C", "60%", "Clear sky"} {
		if !strings.Contains(text, want) {
			t.Errorf("formatted report missing %q:\n%s", want, text)
		}
	}
}
