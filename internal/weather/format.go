package weather

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/vmg75/weather-bot/internal/owm"
)

// Formatting renders cached payloads as Telegram HTML. Column alignment
// relies on <code> spans, so callers must send with ParseMode HTML.

var windDirections = []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

func windDirection(deg float64) string {
	return windDirections[int((deg+22.5)/45)%8]
}

const staleNotice = "\n⚠️ Upstream is unreachable; showing the last cached data."

func withStale(text string, stale bool) string {
	if stale {
		return text + staleNotice
	}
	return text
}

// FormatCurrent renders a current-conditions report.
func FormatCurrent(r Report) string {
	var cur owm.Current
	if err := json.Unmarshal(r.Payload, &cur); err != nil {
		return "❌ Could not read the weather data."
	}

	location := cur.Name
	if cur.Sys.Country != "" {
		location += ", " + cur.Sys.Country
	}
	desc := "Unknown"
	if len(cur.Weather) > 0 {
		desc = title(cur.Weather[0].Description)
	}

	text := fmt.Sprintf(
		"<code>📍 Place:       %s</code>\n"+
			"<code>🌡️ Temperature: %.1f°C</code>\n"+
			"<code>💧 Humidity:    %.0f%%</code>\n"+
			"<code>🌬️ Wind:        %.1f m/s, %s</code>\n"+
			"<code>☁️ Conditions:  %s</code>",
		location,
		cur.Main.Temp,
		cur.Main.Humidity,
		cur.Wind.Speed,
		windDirection(cur.Wind.Deg),
		desc,
	)
	return withStale(text, r.Stale)
}

// FormatHourly renders the 3-hour-interval forecast table.
func FormatHourly(r Report, count int) string {
	var fc owm.Forecast
	if err := json.Unmarshal(r.Payload, &fc); err != nil {
		return "❌ Could not read the forecast data."
	}
	if count <= 0 || count > len(fc.List) {
		count = len(fc.List)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📍 Place: %s\n", placeName(fc))
	fmt.Fprintf(&b, "📅 %d-hour forecast (3-hour intervals):\n\n", count*3)
	writeTableHeader(&b, "Date/Time")

	for _, item := range fc.List[:count] {
		t := time.Unix(item.Dt, 0).UTC()
		writeTableRow(&b, t.Format("02.01 15:04"), item)
	}
	return withStale(b.String(), r.Stale)
}

// FormatDaily renders the derived daily forecast table.
func FormatDaily(r Report) string {
	var fc owm.Forecast
	if err := json.Unmarshal(r.Payload, &fc); err != nil {
		return "❌ Could not read the forecast data."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📍 Place: %s\n", placeName(fc))
	fmt.Fprintf(&b, "📅 %d-day forecast (daily intervals):\n\n", len(fc.List))
	writeTableHeader(&b, "Date")

	for _, item := range fc.List {
		t := time.Unix(item.Dt, 0).UTC()
		writeTableRow(&b, t.Format("02.01"), item)
	}
	return withStale(b.String(), r.Stale)
}

func placeName(fc owm.Forecast) string {
	name := fc.City.Name
	if name == "" {
		name = "Unknown"
	}
	if fc.City.Country != "" {
		name += ", " + fc.City.Country
	}
	return name
}

func writeTableHeader(b *strings.Builder, dateCol string) {
	fmt.Fprintf(b, "<code>%-11s | %-7s | %-4s | %-9s | %-15s</code>\n",
		dateCol, "Temp", "Hum", "Wind", "Conditions")
	b.WriteString("<code>" + strings.Repeat("-", 56) + "</code>\n")
}

func writeTableRow(b *strings.Builder, date string, item owm.ForecastItem) {
	desc := ""
	if len(item.Weather) > 0 {
		desc = title(item.Weather[0].Description)
	}
	fmt.Fprintf(b, "<code>%-11s | %-7s | %-4s | %-9s | %-15s</code>\n",
		date,
		fmt.Sprintf("%.1f°C", item.Main.Temp),
		fmt.Sprintf("%.0f%%", item.Main.Humidity),
		fmt.Sprintf("%.1f m/s", item.Wind.Speed),
		desc,
	)
}

// title uppercases the first letter, mirroring the provider's lowercase
// condition descriptions.
func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
