// Package weather serves current conditions, hourly and daily forecasts and
// air-quality data, each behind its own cache category.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vmg75/weather-bot/internal/cache"
	"github.com/vmg75/weather-bot/internal/fetch"
	"github.com/vmg75/weather-bot/internal/owm"
)

// HourlyCount is the default number of 3-hour forecast slots (5 days).
const HourlyCount = 40

// DailyCount is the number of days in the derived daily forecast.
const DailyCount = 7

// Provider is the slice of the OpenWeatherMap client the service needs.
type Provider interface {
	CurrentWeather(ctx context.Context, lat, lon float64) (json.RawMessage, error)
	Forecast(ctx context.Context, lat, lon float64, count int) (json.RawMessage, error)
	AirPollution(ctx context.Context, lat, lon float64) (json.RawMessage, error)
}

// Report is a payload plus its staleness marker, as handed to formatters.
type Report struct {
	Payload json.RawMessage
	Stale   bool
}

// Service wires the provider to the per-category cache stores.
type Service struct {
	provider Provider
	current  *fetch.Cached
	forecast *fetch.Cached
	air      *fetch.Cached
	log      *zap.Logger
}

// NewService creates a Service. The forecast store backs both the hourly
// and the derived daily categories, mirroring the on-disk layout.
func NewService(provider Provider, current, forecast, air *fetch.Cached, log *zap.Logger) *Service {
	return &Service{
		provider: provider,
		current:  current,
		forecast: forecast,
		air:      air,
		log:      log,
	}
}

// Current returns current conditions for the coordinates.
func (s *Service) Current(ctx context.Context, lat, lon float64) (Report, error) {
	res, err := s.current.GetOrFetch(ctx, cache.CoordsKey(lat, lon), func(ctx context.Context) (json.RawMessage, error) {
		return s.provider.CurrentWeather(ctx, lat, lon)
	})
	if err != nil {
		return Report{}, err
	}
	return Report{Payload: res.Payload, Stale: res.Stale}, nil
}

// Hourly returns the 3-hour-interval forecast with the requested number of
// slots. The count is part of the cache key: different counts are different
// payloads for the same place.
func (s *Service) Hourly(ctx context.Context, lat, lon float64, count int) (Report, error) {
	if count <= 0 || count > HourlyCount {
		count = HourlyCount
	}
	res, err := s.forecast.GetOrFetch(ctx, cache.HourlyKey(lat, lon, count), func(ctx context.Context) (json.RawMessage, error) {
		return s.provider.Forecast(ctx, lat, lon, count)
	})
	if err != nil {
		return Report{}, err
	}
	return Report{Payload: res.Payload, Stale: res.Stale}, nil
}

// Daily returns a per-day forecast derived from the full 3-hour feed: for
// each day the sample closest to 12:00 is picked, and when two samples are
// equally close to noon the earlier one wins. The derived document is what
// gets cached, so cache readers see a stable shape.
func (s *Service) Daily(ctx context.Context, lat, lon float64) (Report, error) {
	res, err := s.forecast.GetOrFetch(ctx, cache.DailyKey(lat, lon, DailyCount), func(ctx context.Context) (json.RawMessage, error) {
		payload, err := s.provider.Forecast(ctx, lat, lon, 0)
		if err != nil {
			return nil, err
		}
		return deriveDaily(payload, DailyCount)
	})
	if err != nil {
		return Report{}, err
	}
	return Report{Payload: res.Payload, Stale: res.Stale}, nil
}

// AirQuality returns current air-pollution data for the coordinates.
func (s *Service) AirQuality(ctx context.Context, lat, lon float64) (Report, error) {
	res, err := s.air.GetOrFetch(ctx, cache.AirKey(lat, lon), func(ctx context.Context) (json.RawMessage, error) {
		return s.provider.AirPollution(ctx, lat, lon)
	})
	if err != nil {
		return Report{}, err
	}
	return Report{Payload: res.Payload, Stale: res.Stale}, nil
}

const noonHour = 12

// deriveDaily reduces a 3-hour forecast feed to at most days entries, one
// per calendar day, keeping the slot nearest to noon.
func deriveDaily(payload json.RawMessage, days int) (json.RawMessage, error) {
	var full owm.Forecast
	if err := json.Unmarshal(payload, &full); err != nil {
		return nil, fmt.Errorf("decode forecast response: %w", err)
	}

	type pick struct {
		item owm.ForecastItem
		diff int
	}
	best := map[string]pick{}
	var order []string

	for _, item := range full.List {
		t := time.Unix(item.Dt, 0).UTC()
		day := t.Format("2006-01-02")

		diff := t.Hour() - noonHour
		if diff < 0 {
			diff = -diff
		}

		cur, seen := best[day]
		if !seen {
			best[day] = pick{item: item, diff: diff}
			order = append(order, day)
			continue
		}
		// Strict less-than keeps the earlier sample on a tie, since the
		// feed is chronological.
		if diff < cur.diff {
			best[day] = pick{item: item, diff: diff}
		}
	}

	daily := owm.Forecast{City: full.City}
	for _, day := range order {
		if len(daily.List) >= days {
			break
		}
		daily.List = append(daily.List, best[day].item)
	}

	return json.Marshal(daily)
}
