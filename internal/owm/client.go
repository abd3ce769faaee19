// Package owm is a thin client for the OpenWeatherMap HTTP API: geocoding,
// current weather, the 5-day/3-hour forecast and air pollution. Responses
// are returned as raw JSON so callers can cache them opaquely; the provider's
// in-payload "cod" error field is checked here and surfaced as a typed
// upstream error even when the HTTP status is 200.
package owm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/vmg75/weather-bot/internal/fetch"
)

// DefaultBaseURL is the production API host.
const DefaultBaseURL = "https://api.openweathermap.org"

// Client calls the OpenWeatherMap API through the resilient fetcher.
type Client struct {
	apiKey  string
	baseURL string
	fetcher *fetch.Fetcher
	units   string
	lang    string
}

// NewClient creates a Client. baseURL may be empty to use production.
func NewClient(apiKey, baseURL string, fetcher *fetch.Fetcher) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		fetcher: fetcher,
		units:   "metric",
		lang:    "en",
	}
}

// GeocodeDirect searches places by free-text name, up to limit matches.
// The geocoding endpoints return a JSON array and report errors via HTTP
// status only, so there is no cod check here.
func (c *Client) GeocodeDirect(ctx context.Context, query string, limit int) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", fmt.Sprint(limit))
	q.Set("appid", c.apiKey)
	return c.fetcher.GetJSON(ctx, c.baseURL+"/geo/1.0/direct?"+q.Encode())
}

// GeocodeReverse finds the place nearest to the given coordinates.
func (c *Client) GeocodeReverse(ctx context.Context, lat, lon float64) (json.RawMessage, error) {
	q := c.coordQuery(lat, lon)
	q.Set("limit", "1")
	return c.fetcher.GetJSON(ctx, c.baseURL+"/geo/1.0/reverse?"+q.Encode())
}

// CurrentWeather fetches current conditions for the coordinates.
func (c *Client) CurrentWeather(ctx context.Context, lat, lon float64) (json.RawMessage, error) {
	q := c.coordQuery(lat, lon)
	q.Set("units", c.units)
	q.Set("lang", c.lang)
	return c.checked(c.fetcher.GetJSON(ctx, c.baseURL+"/data/2.5/weather?"+q.Encode()))
}

// Forecast fetches the 3-hour-interval forecast. count limits the number of
// slots when positive; zero requests the provider's full horizon.
func (c *Client) Forecast(ctx context.Context, lat, lon float64, count int) (json.RawMessage, error) {
	q := c.coordQuery(lat, lon)
	q.Set("units", c.units)
	q.Set("lang", c.lang)
	if count > 0 {
		q.Set("cnt", fmt.Sprint(count))
	}
	return c.checked(c.fetcher.GetJSON(ctx, c.baseURL+"/data/2.5/forecast?"+q.Encode()))
}

// AirPollution fetches current air-pollution data for the coordinates.
func (c *Client) AirPollution(ctx context.Context, lat, lon float64) (json.RawMessage, error) {
	q := c.coordQuery(lat, lon)
	return c.checked(c.fetcher.GetJSON(ctx, c.baseURL+"/data/2.5/air_pollution?"+q.Encode()))
}

func (c *Client) coordQuery(lat, lon float64) url.Values {
	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%f", lat))
	q.Set("lon", fmt.Sprintf("%f", lon))
	q.Set("appid", c.apiKey)
	return q
}

// checked inspects the payload's cod field. The provider encodes it as a
// number on some endpoints and a string on others; anything other than 200
// is an application-level error regardless of HTTP status.
func (c *Client) checked(payload json.RawMessage, err error) (json.RawMessage, error) {
	if err != nil {
		return nil, err
	}

	var probe struct {
		Cod     json.RawMessage `json:"cod"`
		Message string          `json:"message"`
	}
	if uerr := json.Unmarshal(payload, &probe); uerr != nil {
		// Array-shaped payloads have no cod field.
		return payload, nil
	}
	code := strings.Trim(string(probe.Cod), `"`)
	if code != "" && code != "200" {
		return nil, &fetch.UpstreamError{Code: code, Message: probe.Message}
	}
	return payload, nil
}
