package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/vmg75/weather-bot/internal/notify"
)

// Sink delivers scheduled notifications through the bot API. Sends go
// through a circuit breaker: when Telegram keeps rejecting sends, further
// deliveries fail fast instead of burning each job's whole timeout.
type Sink struct {
	bot *tgbotapi.BotAPI
	cb  *gobreaker.CircuitBreaker
	log *zap.Logger
}

var _ notify.Sink = (*Sink)(nil)

// NewSink creates a breaker-guarded delivery sink.
func NewSink(bot *tgbotapi.BotAPI, log *zap.Logger) *Sink {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "telegram-send",
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &Sink{bot: bot, cb: cb, log: log}
}

// Deliver sends one rendered notification to the subscriber's chat.
func (s *Sink) Deliver(subscriberID int64, text string) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		msg := tgbotapi.NewMessage(subscriberID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		return s.bot.Send(msg)
	})
	return err
}
