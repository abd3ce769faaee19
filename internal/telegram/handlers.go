package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/vmg75/weather-bot/internal/country"
	"github.com/vmg75/weather-bot/internal/currency"
	"github.com/vmg75/weather-bot/internal/geo"
	"github.com/vmg75/weather-bot/internal/sched"
	"github.com/vmg75/weather-bot/internal/store"
	"github.com/vmg75/weather-bot/internal/weather"
)

// ensureUser makes sure a profile exists; if not, creates it with defaults.
func (r *Router) ensureUser(chatID int64) (store.User, error) {
	u, ok, err := r.repo.Get(chatID)
	if err != nil {
		return store.User{}, err
	}
	if ok {
		return u, nil
	}
	if err := r.repo.Add(chatID, r.defaultCity); err != nil {
		return store.User{}, err
	}
	u, _, err = r.repo.Get(chatID)
	return u, err
}

// --- Core commands ---

func (r *Router) handleStart(ctx context.Context, chatID int64) {
	if _, err := r.ensureUser(chatID); err != nil {
		r.log.Error("ensureUser failed", zap.Error(err))
		r.sendText(chatID, "Profile initialization error. Please try again later.")
		return
	}
	r.sendWithKeyboard(chatID, startText, mainMenuKeyboard())
}

// handleWeather serves one report kind for an explicit query or, with an
// empty argument, for the user's default city.
func (r *Router) handleWeather(ctx context.Context, chatID int64, kind, query string) {
	u, err := r.ensureUser(chatID)
	if err != nil {
		r.log.Error("ensureUser failed", zap.Error(err))
		r.sendText(chatID, "Error reading your settings.")
		return
	}

	if query == "" {
		if u.HasCoordinates() {
			r.sendReport(ctx, chatID, kind, *u.CityLat, *u.CityLon, u.ForecastCount)
			return
		}
		query = u.DefaultCity
	}

	candidates, err := r.resolver.Resolve(ctx, query)
	if err != nil {
		r.sendResolveError(chatID, query, err)
		return
	}
	if len(candidates) == 1 {
		r.sendReport(ctx, chatID, kind, candidates[0].Lat, candidates[0].Lon, u.ForecastCount)
		return
	}

	// Several matches: never auto-pick, ask the user.
	r.setSearch(chatID, citySearch{kind: kind, candidates: candidates})
	r.sendWithKeyboard(chatID, "🔎 Several places match. Which one did you mean?",
		citySelectionKeyboard(candidates))
}

func (r *Router) sendReport(ctx context.Context, chatID int64, kind string, lat, lon float64, forecastCount int) {
	var (
		report weather.Report
		err    error
		text   string
	)

	switch kind {
	case kindHourly:
		report, err = r.weather.Hourly(ctx, lat, lon, forecastCount)
		if err == nil {
			text = weather.FormatHourly(report, forecastCount)
		}
	case kindDaily:
		report, err = r.weather.Daily(ctx, lat, lon)
		if err == nil {
			text = weather.FormatDaily(report)
		}
	case kindAir:
		report, err = r.weather.AirQuality(ctx, lat, lon)
		if err == nil {
			text = weather.FormatAir(report)
		}
	default:
		report, err = r.weather.Current(ctx, lat, lon)
		if err == nil {
			text = weather.FormatCurrent(report)
		}
	}

	if err != nil {
		r.log.Error("report failed", zap.String("kind", kind), zap.Error(err))
		r.sendText(chatID, "❌ Could not get the data: "+err.Error())
		return
	}
	r.sendText(chatID, text)
}

func (r *Router) sendResolveError(chatID int64, query string, err error) {
	if errors.Is(err, geo.ErrNotFound) {
		r.sendText(chatID, fmt.Sprintf("❌ City %q not found.", query))
		return
	}
	r.log.Error("resolve failed", zap.String("query", query), zap.Error(err))
	r.sendText(chatID, "❌ City lookup failed. Please try again later.")
}

// --- Default city ---

func (r *Router) handleSetCity(ctx context.Context, chatID int64, query string) {
	if query == "" {
		r.setPending(chatID, pendingCity)
		r.sendText(chatID, "Which city should be your default? Send its name.")
		return
	}
	if _, err := r.ensureUser(chatID); err != nil {
		r.log.Error("ensureUser failed", zap.Error(err))
		r.sendText(chatID, "Error reading your settings.")
		return
	}

	candidates, err := r.resolver.Resolve(ctx, query)
	if err != nil {
		r.sendResolveError(chatID, query, err)
		return
	}
	if len(candidates) == 1 {
		r.saveCity(chatID, candidates[0])
		return
	}

	r.setSearch(chatID, citySearch{kind: kindSetCity, candidates: candidates})
	r.sendWithKeyboard(chatID, "🔎 Several places match. Which one did you mean?",
		citySelectionKeyboard(candidates))
}

// handleLocation turns a shared location into the default city and shows
// the weather there right away.
func (r *Router) handleLocation(ctx context.Context, chatID int64, lat, lon float64) {
	u, err := r.ensureUser(chatID)
	if err != nil {
		r.log.Error("ensureUser failed", zap.Error(err))
		r.sendText(chatID, "Error reading your settings.")
		return
	}

	c, err := r.resolver.ResolveCoords(ctx, lat, lon)
	if err != nil {
		r.log.Warn("reverse geocoding failed", zap.Error(err))
		r.sendText(chatID, "❌ Could not determine a place for that location.")
		return
	}
	r.saveCity(chatID, c)
	r.sendReport(ctx, chatID, kindCurrent, c.Lat, c.Lon, u.ForecastCount)
}

func (r *Router) saveCity(chatID int64, c geo.Candidate) {
	lat, lon := c.Lat, c.Lon
	if err := r.repo.SetCity(chatID, c.Name, &lat, &lon); err != nil {
		r.log.Error("SetCity failed", zap.Error(err))
		r.sendText(chatID, "Could not save the city.")
		return
	}
	r.sendText(chatID, "✅ Default city set: "+c.DisplayName())
}

// --- Currency ---

func (r *Router) handleCurrency(ctx context.Context, chatID int64) {
	if err := r.currency.UpdateAll(ctx); err != nil {
		r.log.Warn("currency update failed", zap.Error(err))
	}
	r.sendText(chatID, currency.FormatTables(r.currency.Tables()))
}

func (r *Router) handleConvert(ctx context.Context, chatID int64, arg string) {
	fields := strings.Fields(arg)
	if len(fields) != 3 {
		r.sendText(chatID, "Usage: /convert <amount> <from> <to>, e.g. /convert 100 USD EUR")
		return
	}
	amount, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		r.sendText(chatID, "Invalid amount: "+fields[0])
		return
	}

	result, err := r.currency.Convert(ctx, amount, fields[1], fields[2])
	if err != nil {
		if errors.Is(err, currency.ErrUnknownCurrency) {
			r.sendText(chatID, "❌ Unknown currency pair.")
			return
		}
		r.log.Error("convert failed", zap.Error(err))
		r.sendText(chatID, "❌ Conversion failed. Please try again later.")
		return
	}
	r.sendText(chatID, currency.FormatConversion(amount, fields[1], fields[2], result))
}

// --- Country ---

func (r *Router) handleCountry(ctx context.Context, chatID int64, name string) {
	if name == "" {
		r.sendText(chatID, "Usage: /country <name>, e.g. /country Japan")
		return
	}

	info, err := r.country.Lookup(ctx, name)
	if err != nil {
		if errors.Is(err, country.ErrNotFound) {
			r.sendText(chatID, fmt.Sprintf("❌ Country %q not found.", name))
			return
		}
		r.log.Error("country lookup failed", zap.Error(err))
		r.sendText(chatID, "❌ Country lookup failed. Please try again later.")
		return
	}

	// Capital weather is best effort; the country card is useful without it.
	var cw *country.CapitalWeather
	if len(info.CapitalInfo.LatLng) == 2 {
		if w, werr := r.country.Weather(ctx, info.CapitalInfo.LatLng[0], info.CapitalInfo.LatLng[1]); werr == nil {
			cw = &w
		} else {
			r.log.Warn("capital weather failed", zap.Error(werr))
		}
	}
	r.sendText(chatID, country.Format(info, cw))
}

// --- Notifications ---

func (r *Router) handleNotifications(ctx context.Context, chatID int64) {
	u, err := r.ensureUser(chatID)
	if err != nil {
		r.log.Error("ensureUser failed", zap.Error(err))
		r.sendText(chatID, "Error reading your settings.")
		return
	}

	status := "🔕 disabled"
	if u.NotificationsEnabled {
		status = "🔔 enabled"
	}
	text := fmt.Sprintf("Notifications are %s.\nTimes: %s\nCity: %s",
		status, strings.Join(u.NotificationTimes, ", "), u.DefaultCity)
	r.sendWithKeyboard(chatID, text, notificationKeyboard(u.NotificationsEnabled))
}

func (r *Router) handleRegular(ctx context.Context, chatID int64, arg string) {
	fields := strings.Fields(arg)
	if len(fields) != 3 {
		r.sendText(chatID, "Usage: /regular <startHour> <endHour> <everyHours>, e.g. /regular 10 22 2")
		return
	}
	nums := make([]int, 3)
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			r.sendText(chatID, "Invalid number: "+f)
			return
		}
		nums[i] = n
	}
	if _, err := r.ensureUser(chatID); err != nil {
		r.log.Error("ensureUser failed", zap.Error(err))
		r.sendText(chatID, "Error reading your settings.")
		return
	}

	if err := r.sched.AddRegular(chatID, nums[0], nums[1], nums[2]); err != nil {
		r.sendText(chatID, "❌ "+err.Error())
		return
	}
	times, _ := sched.ExpandRegular(nums[0], nums[1], nums[2])
	r.sendText(chatID, "✅ Notifications scheduled at: "+strings.Join(times, ", "))
}

func (r *Router) handleJobs(ctx context.Context, chatID int64) {
	var times []string
	for _, job := range r.sched.ListJobs() {
		if job.SubscriberID == chatID {
			times = append(times, job.Time)
		}
	}
	if len(times) == 0 {
		r.sendText(chatID, "No scheduled triggers. Enable them via /notifications or /regular.")
		return
	}
	r.sendText(chatID, "⏰ Your triggers: "+strings.Join(times, ", "))
}

// --- Free-form dispatcher (for all pending inputs) ---

func (r *Router) handleFreeForm(ctx context.Context, chatID int64, text string) {
	switch r.getPending(chatID) {
	case pendingCity:
		r.clearPending(chatID)
		r.handleSetCity(ctx, chatID, text)

	case pendingTimes:
		r.clearPending(chatID)
		var times []string
		for _, part := range strings.Split(text, ",") {
			times = append(times, strings.TrimSpace(part))
		}
		if err := r.sched.Enable(chatID, times); err != nil {
			r.sendText(chatID, "❌ Invalid times. Example: 08:00, 13:30, 20:00")
			return
		}
		r.sendText(chatID, "✅ Notification times saved: "+strings.Join(times, ", "))

	default:
		if strings.HasPrefix(text, "/") {
			r.sendText(chatID, "Unknown command. See /help.")
			return
		}
		// Bare text outside a flow is treated as a weather query.
		if text != "" {
			r.handleWeather(ctx, chatID, kindCurrent, text)
		}
	}
}

// --- Callback queries (inline buttons) ---

func (r *Router) handleCallback(ctx context.Context, chatID int64, data, cbID string) {
	r.answerCallback(cbID)

	switch {
	case data == "weather_current":
		r.handleWeather(ctx, chatID, kindCurrent, "")
	case data == "weather_daily":
		r.handleWeather(ctx, chatID, kindDaily, "")
	case data == "weather_hourly":
		r.handleWeather(ctx, chatID, kindHourly, "")
	case data == "weather_air":
		r.handleWeather(ctx, chatID, kindAir, "")

	case data == "help":
		r.sendText(chatID, helpText)
	case data == "settings":
		r.sendWithKeyboard(chatID, "What do you want to configure?", settingsKeyboard())
	case data == "back_to_main":
		r.sendWithKeyboard(chatID, "Main menu:", mainMenuKeyboard())

	case data == "change_city":
		r.setPending(chatID, pendingCity)
		r.sendText(chatID, "Send the name of your new default city.")

	case data == "notification_settings":
		r.handleNotifications(ctx, chatID)
	case data == "toggle_notifications":
		r.toggleNotifications(ctx, chatID)
	case data == "change_notification_times":
		r.setPending(chatID, pendingTimes)
		r.sendText(chatID, "Send times separated by commas, e.g.: 08:00, 13:30, 20:00")

	case data == "forecast_settings":
		r.sendWithKeyboard(chatID, "How many 3-hour slots should /hourly show?", forecastCountKeyboard())
	case strings.HasPrefix(data, "forecast_count_"):
		r.setForecastCount(chatID, strings.TrimPrefix(data, "forecast_count_"))

	case strings.HasPrefix(data, "select_city_"):
		r.selectCity(ctx, chatID, strings.TrimPrefix(data, "select_city_"))
	case data == "cancel_city_selection":
		r.takeSearch(chatID)
		r.sendText(chatID, "Selection canceled.")

	default:
		// Unknown callback — ignore silently
	}
}

func (r *Router) toggleNotifications(ctx context.Context, chatID int64) {
	u, err := r.ensureUser(chatID)
	if err != nil {
		r.log.Error("ensureUser failed", zap.Error(err))
		return
	}

	if u.NotificationsEnabled {
		err = r.sched.Disable(chatID)
	} else {
		err = r.sched.Enable(chatID, u.NotificationTimes)
	}
	if err != nil {
		r.log.Error("toggle failed", zap.Error(err))
		r.sendText(chatID, "❌ Could not change notification settings.")
		return
	}
	r.handleNotifications(ctx, chatID)
}

func (r *Router) setForecastCount(chatID int64, arg string) {
	count, err := strconv.Atoi(arg)
	if err != nil || count <= 0 || count > weather.HourlyCount {
		r.sendText(chatID, "❌ Invalid forecast length.")
		return
	}
	if err := r.repo.SetForecastCount(chatID, count); err != nil {
		r.log.Error("SetForecastCount failed", zap.Error(err))
		r.sendText(chatID, "Could not save the setting.")
		return
	}
	r.sendText(chatID, fmt.Sprintf("✅ Hourly forecast length set to %d slots (%d hours).", count, count*3))
}

func (r *Router) selectCity(ctx context.Context, chatID int64, arg string) {
	search, ok := r.takeSearch(chatID)
	if !ok {
		r.sendText(chatID, "❌ This selection has expired. Please repeat the search.")
		return
	}
	idx, err := strconv.Atoi(arg)
	if err != nil || idx < 0 || idx >= len(search.candidates) {
		r.sendText(chatID, "❌ Invalid selection.")
		return
	}
	chosen := search.candidates[idx]

	if search.kind == kindSetCity {
		r.saveCity(chatID, chosen)
		return
	}
	u, _, _ := r.repo.Get(chatID)
	r.sendReport(ctx, chatID, search.kind, chosen.Lat, chosen.Lon, u.ForecastCount)
}
