// Package country serves country facts from the REST Countries API and
// current weather for the capital from Open-Meteo.
package country

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/vmg75/weather-bot/internal/fetch"
)

// Production API hosts.
const (
	DefaultRestBaseURL  = "https://restcountries.com"
	DefaultMeteoBaseURL = "https://api.open-meteo.com"
)

// ErrNotFound is returned when no country matches the query.
var ErrNotFound = errors.New("country not found")

// Info is the subset of the REST Countries payload the bot displays.
type Info struct {
	Name struct {
		Common   string `json:"common"`
		Official string `json:"official"`
	} `json:"name"`
	Capital    []string `json:"capital"`
	Region     string   `json:"region"`
	Subregion  string   `json:"subregion"`
	Population int64    `json:"population"`
	Area       float64  `json:"area"`
	Flag       string   `json:"flag"`
	Currencies map[string]struct {
		Name   string `json:"name"`
		Symbol string `json:"symbol"`
	} `json:"currencies"`
	Languages   map[string]string `json:"languages"`
	CapitalInfo struct {
		LatLng []float64 `json:"latlng"`
	} `json:"capitalInfo"`
}

// CapitalWeather is Open-Meteo's current_weather block.
type CapitalWeather struct {
	Temperature float64 `json:"temperature"`
	WindSpeed   float64 `json:"windspeed"`
	WeatherCode int     `json:"weathercode"`
}

// Service queries both upstreams through the resilient fetcher. Country
// facts change rarely and responses are small, so they are not cached.
type Service struct {
	fetcher      *fetch.Fetcher
	restBaseURL  string
	meteoBaseURL string
}

// New creates a Service. Empty base URLs select production.
func New(fetcher *fetch.Fetcher, restBaseURL, meteoBaseURL string) *Service {
	if restBaseURL == "" {
		restBaseURL = DefaultRestBaseURL
	}
	if meteoBaseURL == "" {
		meteoBaseURL = DefaultMeteoBaseURL
	}
	return &Service{fetcher: fetcher, restBaseURL: restBaseURL, meteoBaseURL: meteoBaseURL}
}

// Lookup finds a country by name, taking the first match.
func (s *Service) Lookup(ctx context.Context, name string) (Info, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Info{}, ErrNotFound
	}

	payload, err := s.fetcher.GetJSON(ctx, s.restBaseURL+"/v3.1/name/"+url.PathEscape(name))
	if err != nil {
		var se *fetch.StatusError
		if errors.As(err, &se) && se.Status == 404 {
			return Info{}, ErrNotFound
		}
		return Info{}, err
	}

	var results []Info
	if err := json.Unmarshal(payload, &results); err != nil {
		return Info{}, fmt.Errorf("decode country response: %w", err)
	}
	if len(results) == 0 {
		return Info{}, ErrNotFound
	}
	return results[0], nil
}

// Weather fetches current conditions for the capital's coordinates.
func (s *Service) Weather(ctx context.Context, lat, lon float64) (CapitalWeather, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%f", lat))
	q.Set("longitude", fmt.Sprintf("%f", lon))
	q.Set("current_weather", "true")

	payload, err := s.fetcher.GetJSON(ctx, s.meteoBaseURL+"/v1/forecast?"+q.Encode())
	if err != nil {
		return CapitalWeather{}, err
	}

	var resp struct {
		CurrentWeather CapitalWeather `json:"current_weather"`
	}
	if err := json.Unmarshal(payload, &resp); err != nil {
		return CapitalWeather{}, fmt.Errorf("decode weather response: %w", err)
	}
	return resp.CurrentWeather, nil
}

// Format renders a country summary, optionally with capital weather.
func Format(info Info, weather *CapitalWeather) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%s)\n\n<code>", info.Flag, info.Name.Common, info.Name.Official)
	fmt.Fprintf(&b, "%-12s: %s\n", "Capital", strings.Join(info.Capital, ", "))
	fmt.Fprintf(&b, "%-12s: %s / %s\n", "Region", info.Region, info.Subregion)
	fmt.Fprintf(&b, "%-12s: %d\n", "Population", info.Population)
	fmt.Fprintf(&b, "%-12s: %.0f km²\n", "Area", info.Area)

	if len(info.Currencies) > 0 {
		var codes []string
		for code, c := range info.Currencies {
			codes = append(codes, fmt.Sprintf("%s (%s)", code, c.Name))
		}
		sort.Strings(codes)
		fmt.Fprintf(&b, "%-12s: %s\n", "Currencies", strings.Join(codes, ", "))
	}
	if len(info.Languages) > 0 {
		var langs []string
		for _, l := range info.Languages {
			langs = append(langs, l)
		}
		sort.Strings(langs)
		fmt.Fprintf(&b, "%-12s: %s\n", "Languages", strings.Join(langs, ", "))
	}
	b.WriteString("</code>")

	if weather != nil && len(info.Capital) > 0 {
		fmt.Fprintf(&b, "\n\n🌤️ Weather in %s:\n<code>", info.Capital[0])
		fmt.Fprintf(&b, "%-12s: %.1f°C\n", "Temperature", weather.Temperature)
		fmt.Fprintf(&b, "%-12s: %.1f km/h\n", "Wind", weather.WindSpeed)
		fmt.Fprintf(&b, "%-12s: %s\n", "Conditions", WeatherCodeDescription(weather.WeatherCode))
		b.WriteString("</code>")
	}
	return b.String()
}

// WeatherCodeDescription translates a WMO weather code into text.
func WeatherCodeDescription(code int) string {
	descriptions := map[int]string{
		0: "Clear sky", 1: "Mainly clear", 2: "Partly cloudy", 3: "Overcast",
		45: "Fog", 48: "Depositing rime fog",
		51: "Light drizzle", 53: "Moderate drizzle", 55: "Dense drizzle",
		56: "Light freezing drizzle", 57: "Dense freezing drizzle",
		61: "Slight rain", 63: "Moderate rain", 65: "Heavy rain",
		66: "Light freezing rain", 67: "Heavy freezing rain",
		71: "Slight snow", 73: "Moderate snow", 75: "Heavy snow",
		77: "Snow grains",
		80: "Slight rain showers", 81: "Moderate rain showers", 82: "Violent rain showers",
		85: "Slight snow showers", 86: "Heavy snow showers",
		95: "Thunderstorm", 96: "Thunderstorm with slight hail", 99: "Thunderstorm with heavy hail",
	}
	if d, ok := descriptions[code]; ok {
		return d
	}
	return fmt.Sprintf("Unknown (code %d)", code)
}
