// Package geo turns free-text place queries into coordinates via the
// OpenWeatherMap geocoding API, caching results under the shared key scheme.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmg75/weather-bot/internal/cache"
	"github.com/vmg75/weather-bot/internal/fetch"
	"github.com/vmg75/weather-bot/internal/owm"
)

// ErrNotFound is returned when a query matches no place at all. It is
// distinct from network failures and is never cached.
var ErrNotFound = errors.New("no matching place")

// Candidate is one resolved place. When a query yields several candidates
// the caller must let the user pick; auto-selecting is forbidden because it
// silently picks the wrong place.
type Candidate struct {
	Name    string  `json:"name"`
	State   string  `json:"state,omitempty"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// DisplayName renders "Name, State, Country" with the state omitted when
// the provider did not report one.
func (c Candidate) DisplayName() string {
	if c.State != "" {
		return fmt.Sprintf("%s, %s, %s", c.Name, c.State, c.Country)
	}
	return fmt.Sprintf("%s, %s", c.Name, c.Country)
}

// Geocoder is the slice of the OpenWeatherMap client the resolver needs.
type Geocoder interface {
	GeocodeDirect(ctx context.Context, query string, limit int) (json.RawMessage, error)
	GeocodeReverse(ctx context.Context, lat, lon float64) (json.RawMessage, error)
}

// Resolver resolves queries through the cached-fetch workflow, so repeated
// lookups for the same place stay off the network for the cache TTL and
// survive upstream outages on stale data.
type Resolver struct {
	geocoder Geocoder
	cached   *fetch.Cached
}

// New creates a Resolver backed by the given geocoding cache store.
func New(geocoder Geocoder, cached *fetch.Cached) *Resolver {
	return &Resolver{geocoder: geocoder, cached: cached}
}

const maxCandidates = 5

// Resolve returns the candidates matching a free-text query.
// Zero candidates surface as ErrNotFound; a single candidate may be used
// automatically; several require explicit disambiguation by the caller.
func (r *Resolver) Resolve(ctx context.Context, query string) ([]Candidate, error) {
	res, err := r.cached.GetOrFetch(ctx, cache.CityKey(query), func(ctx context.Context) (json.RawMessage, error) {
		payload, err := r.geocoder.GeocodeDirect(ctx, query, maxCandidates)
		if err != nil {
			return nil, err
		}
		return payload, rejectEmpty(payload)
	})
	if err != nil {
		return nil, err
	}
	return decodeCandidates(res.Payload)
}

// ResolveCoords finds the canonical place for raw coordinates (e.g. a
// Telegram location message), cached under the coordinate key.
func (r *Resolver) ResolveCoords(ctx context.Context, lat, lon float64) (Candidate, error) {
	res, err := r.cached.GetOrFetch(ctx, cache.CoordsKey(lat, lon), func(ctx context.Context) (json.RawMessage, error) {
		payload, err := r.geocoder.GeocodeReverse(ctx, lat, lon)
		if err != nil {
			return nil, err
		}
		return payload, rejectEmpty(payload)
	})
	if err != nil {
		return Candidate{}, err
	}

	candidates, err := decodeCandidates(res.Payload)
	if err != nil {
		return Candidate{}, err
	}
	if len(candidates) == 0 {
		return Candidate{}, ErrNotFound
	}
	return candidates[0], nil
}

// rejectEmpty keeps empty result sets out of the cache: a "not found" is a
// property of the query, not a payload worth persisting.
func rejectEmpty(payload json.RawMessage) error {
	var places []owm.Place
	if err := json.Unmarshal(payload, &places); err != nil {
		return fmt.Errorf("decode geocoding response: %w", err)
	}
	if len(places) == 0 {
		return fetch.Permanent(ErrNotFound)
	}
	return nil
}

func decodeCandidates(payload json.RawMessage) ([]Candidate, error) {
	var places []owm.Place
	if err := json.Unmarshal(payload, &places); err != nil {
		return nil, fmt.Errorf("decode geocoding response: %w", err)
	}

	candidates := make([]Candidate, 0, len(places))
	for _, p := range places {
		candidates = append(candidates, Candidate{
			Name:    p.Name,
			State:   p.State,
			Country: p.Country,
			Lat:     p.Lat,
			Lon:     p.Lon,
		})
	}
	return candidates, nil
}
