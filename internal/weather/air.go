package weather

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vmg75/weather-bot/internal/owm"
)

// The OpenWeather qualitative scale: per-pollutant concentration ranges
// (µg/m³, half-open [min, max)) for each of the five index levels.
type airLevel struct {
	name       string
	index      int
	pollutants map[string][2]float64
}

var airQualityScale = []airLevel{
	{
		name: "Good", index: 1,
		pollutants: map[string][2]float64{
			"SO2": {0, 20}, "NO2": {0, 40}, "PM10": {0, 20},
			"PM2_5": {0, 10}, "O3": {0, 60}, "CO": {0, 4400},
		},
	},
	{
		name: "Fair", index: 2,
		pollutants: map[string][2]float64{
			"SO2": {20, 80}, "NO2": {40, 70}, "PM10": {20, 50},
			"PM2_5": {10, 25}, "O3": {60, 100}, "CO": {4400, 9400},
		},
	},
	{
		name: "Moderate", index: 3,
		pollutants: map[string][2]float64{
			"SO2": {80, 250}, "NO2": {70, 150}, "PM10": {50, 100},
			"PM2_5": {25, 50}, "O3": {100, 140}, "CO": {9400, 12400},
		},
	},
	{
		name: "Poor", index: 4,
		pollutants: map[string][2]float64{
			"SO2": {250, 350}, "NO2": {150, 200}, "PM10": {100, 200},
			"PM2_5": {50, 75}, "O3": {140, 180}, "CO": {12400, 15400},
		},
	},
	{
		name: "Very Poor", index: 5,
		pollutants: map[string][2]float64{
			"SO2": {350, 1e9}, "NO2": {200, 1e9}, "PM10": {200, 1e9},
			"PM2_5": {75, 1e9}, "O3": {180, 1e9}, "CO": {15400, 1e9},
		},
	},
}

var aqiNames = map[int]string{
	1: "Good", 2: "Fair", 3: "Moderate", 4: "Poor", 5: "Very Poor",
}

// PollutantLevel maps one pollutant concentration to its qualitative level.
func PollutantLevel(pollutant string, concentration float64) string {
	pollutant = strings.ToUpper(pollutant)
	if pollutant == "PM2.5" {
		pollutant = "PM2_5"
	}
	for _, level := range airQualityScale {
		if rng, ok := level.pollutants[pollutant]; ok {
			if concentration >= rng[0] && concentration < rng[1] {
				return level.name
			}
		}
	}
	return "Unknown"
}

// FormatAir renders an air-quality analysis: each pollutant's concentration
// with its qualitative level, plus the overall AQI.
func FormatAir(r Report) string {
	var air owm.Air
	if err := json.Unmarshal(r.Payload, &air); err != nil {
		return "❌ Could not read the air-quality data."
	}
	if len(air.List) == 0 {
		return "❌ No air-quality data available."
	}

	// The provider returns samples oldest first; analyze the latest.
	latest := air.List[len(air.List)-1]
	if len(latest.Components) == 0 {
		return "❌ No pollutant components in the data."
	}

	pollutants := []struct{ code, label string }{
		{"so2", "Sulphur dioxide"},
		{"no2", "Nitrogen dioxide"},
		{"pm10", "PM₁₀ (coarse particles)"},
		{"pm2_5", "PM₂.₅ (fine particles)"},
		{"o3", "Ozone"},
		{"co", "Carbon monoxide"},
	}

	var b strings.Builder
	b.WriteString("🌬️ Air quality analysis:\n\n<code>")
	for _, p := range pollutants {
		concentration := latest.Components[p.code]
		fmt.Fprintf(&b, "%-24s: %-8.1f µg/m³ - %s\n",
			p.label, concentration, PollutantLevel(p.code, concentration))
	}
	fmt.Fprintf(&b, "\n📊 Overall air quality index (AQI): %d - %s</code>",
		latest.Main.AQI, aqiName(latest.Main.AQI))
	return withStale(b.String(), r.Stale)
}

func aqiName(aqi int) string {
	if name, ok := aqiNames[aqi]; ok {
		return name
	}
	return "Unknown"
}
