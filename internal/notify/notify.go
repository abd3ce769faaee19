// Package notify implements the scheduled delivery workflow: resolve the
// subscriber's subject, run the cache-backed fetch, format the report and
// hand it to the delivery sink.
package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/vmg75/weather-bot/internal/geo"
	"github.com/vmg75/weather-bot/internal/store"
	"github.com/vmg75/weather-bot/internal/weather"
)

// Sink performs the actual send. The scheduler and the fetch path know
// nothing about Telegram; any error from the sink is logged by the caller
// and never fatal.
type Sink interface {
	Deliver(subscriberID int64, renderedText string) error
}

// Resolver is the slice of the geo resolver the workflow needs.
type Resolver interface {
	Resolve(ctx context.Context, query string) ([]geo.Candidate, error)
}

// Weather is the slice of the weather service the workflow needs.
type Weather interface {
	Current(ctx context.Context, lat, lon float64) (weather.Report, error)
}

// Service builds one notification per subscriber per trigger.
type Service struct {
	users    store.Repo
	resolver Resolver
	weather  Weather
	sink     Sink
	log      *zap.Logger
}

// New creates the delivery workflow.
func New(users store.Repo, resolver Resolver, w Weather, sink Sink, log *zap.Logger) *Service {
	return &Service{users: users, resolver: resolver, weather: w, sink: sink, log: log}
}

// Notify delivers the current weather for the subscriber's default city.
// Stored coordinates are preferred; otherwise the city is resolved, and an
// ambiguous resolution is an error — a scheduled job must never guess.
func (s *Service) Notify(ctx context.Context, subscriberID int64) error {
	u, ok, err := s.users.Get(subscriberID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return fmt.Errorf("subscriber %d has no profile", subscriberID)
	}

	lat, lon, err := s.subject(ctx, &u)
	if err != nil {
		return err
	}

	report, err := s.weather.Current(ctx, lat, lon)
	if err != nil {
		return fmt.Errorf("fetch weather for %q: %w", u.DefaultCity, err)
	}

	text := "🌅 Scheduled weather report\n\n" + weather.FormatCurrent(report)
	if err := s.sink.Deliver(subscriberID, text); err != nil {
		return fmt.Errorf("deliver: %w", err)
	}

	if err := s.users.Touch(subscriberID); err != nil {
		s.log.Warn("touch failed", zap.Int64("subscriber", subscriberID), zap.Error(err))
	}
	return nil
}

func (s *Service) subject(ctx context.Context, u *store.User) (float64, float64, error) {
	if u.HasCoordinates() {
		return *u.CityLat, *u.CityLon, nil
	}
	if u.DefaultCity == "" {
		return 0, 0, errors.New("no default city configured")
	}

	candidates, err := s.resolver.Resolve(ctx, u.DefaultCity)
	if err != nil {
		return 0, 0, fmt.Errorf("resolve %q: %w", u.DefaultCity, err)
	}
	if len(candidates) > 1 {
		return 0, 0, fmt.Errorf("city %q is ambiguous, set it via /setcity", u.DefaultCity)
	}
	return candidates[0].Lat, candidates[0].Lon, nil
}
