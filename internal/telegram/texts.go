package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vmg75/weather-bot/internal/geo"
)

// UI texts in English
const (
	startText = "👋 I am a weather bot.\n\n" +
		"I can show current weather, hourly and daily forecasts, air quality, " +
		"exchange rates and country info, and send you the weather on a schedule.\n\n" +
		"Pick an action below or use /help for the command list."

	helpText = "Commands:\n" +
		"/weather [city] — current weather\n" +
		"/hourly [city] — 3-hour-interval forecast\n" +
		"/forecast [city] — daily forecast\n" +
		"/air [city] — air quality\n" +
		"/setcity <city> — set your default city\n" +
		"/currency — exchange-rate tables\n" +
		"/convert <amount> <from> <to> — convert currency\n" +
		"/country <name> — country info with capital weather\n" +
		"/notifications — notification settings\n" +
		"/regular <start> <end> <every> — e.g. /regular 10 22 2 sends at 10:00, 12:00 … 22:00\n" +
		"/jobs — list your scheduled triggers\n\n" +
		"Without a city argument I use your default city. " +
		"You can also share a location to set your city from it."
)

func mainMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🌤️ Current weather", "weather_current"),
			tgbotapi.NewInlineKeyboardButtonData("📅 Daily", "weather_daily"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏰ Hourly", "weather_hourly"),
			tgbotapi.NewInlineKeyboardButtonData("🌬️ Air", "weather_air"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⚙️ Settings", "settings"),
			tgbotapi.NewInlineKeyboardButtonData("❓ Help", "help"),
		),
	)
}

func settingsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🏙️ Change city", "change_city"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔔 Notifications", "notification_settings"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Forecast length", "forecast_settings"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "back_to_main"),
		),
	)
}

func forecastCountKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("8 (24h)", "forecast_count_8"),
			tgbotapi.NewInlineKeyboardButtonData("16 (48h)", "forecast_count_16"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("24 (72h)", "forecast_count_24"),
			tgbotapi.NewInlineKeyboardButtonData("40 (120h)", "forecast_count_40"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "settings"),
		),
	)
}

func notificationKeyboard(enabled bool) tgbotapi.InlineKeyboardMarkup {
	toggle := "🔔 Enable"
	if enabled {
		toggle = "🔕 Disable"
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(toggle, "toggle_notifications"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏰ Change times", "change_notification_times"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "settings"),
		),
	)
}

func citySelectionKeyboard(candidates []geo.Candidate) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(candidates)+1)
	for i, c := range candidates {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(c.DisplayName(), fmt.Sprintf("select_city_%d", i)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "cancel_city_selection"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
