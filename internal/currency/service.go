// Package currency serves exchange rates from open.er-api.com. Each base
// currency's full rate table is persisted in the currency cache store; the
// provider's time_next_update_unix is honored, so a table is never refetched
// before the instant the provider announces.
package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vmg75/weather-bot/internal/cache"
	"github.com/vmg75/weather-bot/internal/fetch"
)

// DefaultBaseURL is the production API host.
const DefaultBaseURL = "https://open.er-api.com"

// Favorites are the base currencies kept warm by UpdateAll.
var Favorites = []string{"USD", "EUR", "GBP", "CNY", "RUB"}

// ErrUnknownCurrency is returned when neither a direct nor a reverse rate
// exists for a conversion pair.
var ErrUnknownCurrency = errors.New("unknown currency")

// Rates is one base currency's rate table as returned by the provider.
type Rates struct {
	BaseCode           string             `json:"base_code"`
	Provider           string             `json:"provider"`
	TimeLastUpdateUTC  string             `json:"time_last_update_utc"`
	TimeNextUpdateUTC  string             `json:"time_next_update_utc"`
	TimeNextUpdateUnix int64              `json:"time_next_update_unix"`
	Rates              map[string]float64 `json:"rates"`
}

// Service fetches and caches rate tables.
type Service struct {
	fetcher *fetch.Fetcher
	store   *cache.Store
	baseURL string
	log     *zap.Logger
	now     func() time.Time
}

// New creates a Service. baseURL may be empty to use production.
func New(fetcher *fetch.Fetcher, store *cache.Store, baseURL string, log *zap.Logger) *Service {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Service{
		fetcher: fetcher,
		store:   store,
		baseURL: baseURL,
		log:     log,
		now:     time.Now,
	}
}

// Get returns the rate table for a base code. The cached table is reused
// until the provider's announced next-update instant; after that a fresh
// fetch is attempted, falling back to the cached table on failure.
func (s *Service) Get(ctx context.Context, base string) (Rates, error) {
	base = strings.ToUpper(base)
	key := cache.BaseKey(base)

	if entry, ok := s.store.Get(key); ok {
		rates, err := decode(entry.Payload)
		if err == nil && !s.updateDue(rates) {
			return rates, nil
		}
	}

	payload, err := s.fetcher.GetJSON(ctx, fmt.Sprintf("%s/v6/latest/%s", s.baseURL, base))
	if err != nil {
		// Serve whatever we have, however old.
		if entry, ok := s.store.Get(key); ok {
			if rates, derr := decode(entry.Payload); derr == nil {
				s.log.Warn("rate fetch failed, serving cached table",
					zap.String("base", base), zap.Error(err))
				return rates, nil
			}
		}
		return Rates{}, err
	}

	rates, err := decode(payload)
	if err != nil {
		return Rates{}, err
	}
	if perr := s.store.Put(key, payload); perr != nil {
		s.log.Warn("rate cache write failed", zap.String("base", base), zap.Error(perr))
	}
	return rates, nil
}

// UpdateAll refreshes every favorite base that is due. Bases that are not
// due yet are skipped, per the provider's next-update contract.
func (s *Service) UpdateAll(ctx context.Context) error {
	var firstErr error
	for _, base := range Favorites {
		if _, err := s.Get(ctx, base); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Convert converts amount between two codes using a direct rate when the
// source is a cached base, or the reverse rate when the target is.
func (s *Service) Convert(ctx context.Context, amount float64, from, to string) (float64, error) {
	rate, err := s.Rate(ctx, from, to)
	if err != nil {
		return 0, err
	}
	return amount * rate, nil
}

// Rate returns the multiplier from one currency to another.
func (s *Service) Rate(ctx context.Context, from, to string) (float64, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)

	if rates, err := s.Get(ctx, from); err == nil {
		if r, ok := rates.Rates[to]; ok {
			return r, nil
		}
	}
	// Reverse lookup: to's table quotes from.
	rates, err := s.Get(ctx, to)
	if err != nil {
		return 0, err
	}
	if r, ok := rates.Rates[from]; ok && r != 0 {
		return 1 / r, nil
	}
	return 0, fmt.Errorf("%w: %s/%s", ErrUnknownCurrency, from, to)
}

// Available lists every currency code present in the cached tables, sorted.
func (s *Service) Available() []string {
	seen := map[string]struct{}{}
	for _, key := range s.store.Keys() {
		entry, ok := s.store.Get(key)
		if !ok {
			continue
		}
		rates, err := decode(entry.Payload)
		if err != nil {
			continue
		}
		for code := range rates.Rates {
			seen[code] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return append([]string(nil), Favorites...)
	}
	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func (s *Service) updateDue(r Rates) bool {
	if r.TimeNextUpdateUnix == 0 {
		return true
	}
	return s.now().Unix() >= r.TimeNextUpdateUnix
}

func decode(payload json.RawMessage) (Rates, error) {
	var r Rates
	if err := json.Unmarshal(payload, &r); err != nil {
		return Rates{}, fmt.Errorf("decode rates: %w", err)
	}
	return r, nil
}

// FormatConversion renders a conversion result for display.
func FormatConversion(amount float64, from, to string, result float64) string {
	return fmt.Sprintf("%.2f %s = %.2f %s", amount, strings.ToUpper(from), result, strings.ToUpper(to))
}

// FormatTables summarizes the cached rate tables.
func FormatTables(tables []Rates) string {
	if len(tables) == 0 {
		return "No currency data yet."
	}
	var b strings.Builder
	b.WriteString("💱 Exchange-rate tables:\n<code>")
	for _, t := range tables {
		fmt.Fprintf(&b, "%-4s  updated %s, next %s, %d rates\n",
			t.BaseCode, t.TimeLastUpdateUTC, t.TimeNextUpdateUTC, len(t.Rates))
	}
	b.WriteString("</code>")
	return b.String()
}

// Tables returns the cached rate tables for the favorite bases.
func (s *Service) Tables() []Rates {
	var out []Rates
	for _, base := range Favorites {
		entry, ok := s.store.Get(cache.BaseKey(base))
		if !ok {
			continue
		}
		if rates, err := decode(entry.Payload); err == nil {
			out = append(out, rates)
		}
	}
	return out
}
