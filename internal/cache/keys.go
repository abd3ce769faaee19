package cache

import (
	"fmt"
	"strings"
)

// Cache keys are a contract: the same subject and parameters must always map
// to the same key, and distinct subjects must never collide. Coordinates are
// rounded to two decimals as part of that contract, so nearby lookups share
// an entry on purpose.

// CityKey keys a name-based geocoding lookup.
func CityKey(name string) string {
	return "city:" + strings.ToLower(name)
}

// CoordsKey keys a coordinate-based lookup.
func CoordsKey(lat, lon float64) string {
	return fmt.Sprintf("coords:%.2f,%.2f", lat, lon)
}

// HourlyKey keys a 3-hour-interval forecast; the slot count is part of the
// key because different counts are materially different payloads.
func HourlyKey(lat, lon float64, count int) string {
	return fmt.Sprintf("hourly:%.2f,%.2f:%d", lat, lon, count)
}

// DailyKey keys a derived daily forecast for the given number of days.
func DailyKey(lat, lon float64, days int) string {
	return fmt.Sprintf("daily:%.2f,%.2f:%d", lat, lon, days)
}

// AirKey keys an air-pollution lookup.
func AirKey(lat, lon float64) string {
	return fmt.Sprintf("air_pollution:%.2f,%.2f", lat, lon)
}

// BaseKey keys a currency-rate table by its base code.
func BaseKey(code string) string {
	return "base:" + strings.ToUpper(code)
}
