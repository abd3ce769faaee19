package country

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/vmg75/weather-bot/internal/fetch"
)

const japanJSON = `[{
	"name":{"common":"Japan","official":"Japan"},
	"capital":["Tokyo"],
	"region":"Asia","subregion":"Eastern Asia",
	"population":125000000,"area":377975,
	"flag":"🇯🇵",
	"currencies":{"JPY":{"name":"Japanese yen","symbol":"¥"}},
	"languages":{"jpn":"Japanese"},
	"capitalInfo":{"latlng":[35.68,139.75]}
}]`

func newTestService(t *testing.T, rest, meteo http.HandlerFunc) *Service {
	t.Helper()
	restSrv := httptest.NewServer(rest)
	t.Cleanup(restSrv.Close)
	meteoSrv := httptest.NewServer(meteo)
	t.Cleanup(meteoSrv.Close)

	fetcher := fetch.New(restSrv.Client(), zap.NewNop())
	return New(fetcher, restSrv.URL, meteoSrv.URL)
}

func TestLookup(t *testing.T) {
	s := newTestService(t,
		func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/v3.1/name/") {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write([]byte(japanJSON))
		},
		func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) },
	)

	info, err := s.Lookup(context.Background(), "Japan")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if info.Name.Common != "Japan" || info.Capital[0] != "Tokyo" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if len(info.CapitalInfo.LatLng) != 2 {
		t.Fatalf("capital coordinates missing: %+v", info.CapitalInfo)
	}
}

func TestLookup_UnknownCountry(t *testing.T) {
	s := newTestService(t,
		func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) },
		func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) },
	)

	_, err := s.Lookup(context.Background(), "Wakanda")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestLookup_EmptyName(t *testing.T) {
	s := newTestService(t,
		func(w http.ResponseWriter, r *http.Request) { t.Error("no request expected") },
		func(w http.ResponseWriter, r *http.Request) {},
	)

	if _, err := s.Lookup(context.Background(), "  "); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestWeather(t *testing.T) {
	s := newTestService(t,
		func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) },
		func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("current_weather") != "true" {
				t.Errorf("current_weather flag missing: %s", r.URL.RawQuery)
			}
			_, _ = w.Write([]byte(`{"current_weather":{"temperature":28.3,"windspeed":11.5,"weathercode":2}}`))
		},
	)

	got, err := s.Weather(context.Background(), 35.68, 139.75)
	if err != nil {
		t.Fatalf("weather: %v", err)
	}
	if got.Temperature != 28.3 || got.WeatherCode != 2 {
		t.Fatalf("unexpected weather: %+v", got)
	}
}

func TestFormat_WithCapitalWeather(t *testing.T) {
	s := newTestService(t,
		func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(japanJSON)) },
		func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) },
	)
	info, err := s.Lookup(context.Background(), "Japan")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}

	text := Format(info, &CapitalWeather{Temperature: 28.3, WindSpeed: 11.5, WeatherCode: 2})
	for _, want := range []string{"Japan", "Tokyo", "JPY (Japanese yen)", "Japanese", "28.3°C", "Partly cloudy"} {
		if !strings.Contains(text, want) {
			t.Errorf("formatted card missing %q:\n%s", want, text)
		}
	}
}

func TestWeatherCodeDescription(t *testing.T) {
	if got := WeatherCodeDescription(95); got != "Thunderstorm" {
		t.Fatalf("want Thunderstorm, got %q", got)
	}
	if got := WeatherCodeDescription(42); !strings.Contains(got, "42") {
		t.Fatalf("unknown code must include the number, got %q", got)
	}
}
