package telegram

import (
	"context"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/vmg75/weather-bot/internal/country"
	"github.com/vmg75/weather-bot/internal/currency"
	"github.com/vmg75/weather-bot/internal/geo"
	"github.com/vmg75/weather-bot/internal/scheduler"
	"github.com/vmg75/weather-bot/internal/store"
	"github.com/vmg75/weather-bot/internal/weather"
)

// Pending state keys used in conversational flows.
const (
	pendingCity  = "await_city_text"
	pendingTimes = "await_times_text"
)

// report kinds used by the city-search flow.
const (
	kindCurrent = "current"
	kindHourly  = "hourly"
	kindDaily   = "daily"
	kindAir     = "air"
	kindSetCity = "setcity"
)

// citySearch holds an unresolved disambiguation: the candidates offered to
// the chat and the report kind to produce once one is picked.
type citySearch struct {
	kind       string
	candidates []geo.Candidate
}

// Router wires Telegram updates to handlers and holds minimal in-memory
// conversational state.
type Router struct {
	bot      *tgbotapi.BotAPI
	log      *zap.Logger
	repo     store.Repo
	resolver *geo.Resolver
	weather  *weather.Service
	currency *currency.Service
	country  *country.Service
	sched    *scheduler.Scheduler

	defaultCity string

	mu       sync.RWMutex
	state    map[int64]string     // chatID -> pending free-form input
	searches map[int64]citySearch // chatID -> pending disambiguation
}

// NewRouter creates a new Telegram router.
func NewRouter(
	bot *tgbotapi.BotAPI,
	log *zap.Logger,
	repo store.Repo,
	resolver *geo.Resolver,
	w *weather.Service,
	cur *currency.Service,
	cn *country.Service,
	sch *scheduler.Scheduler,
	defaultCity string,
) *Router {
	return &Router{
		bot:         bot,
		log:         log,
		repo:        repo,
		resolver:    resolver,
		weather:     w,
		currency:    cur,
		country:     cn,
		sched:       sch,
		defaultCity: defaultCity,
		state:       make(map[int64]string),
		searches:    make(map[int64]citySearch),
	}
}

func (r *Router) setPending(chatID int64, s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state[chatID] = s
}

func (r *Router) getPending(chatID int64) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state[chatID]
}

func (r *Router) clearPending(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.state, chatID)
}

func (r *Router) setSearch(chatID int64, s citySearch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searches[chatID] = s
}

func (r *Router) takeSearch(chatID int64) (citySearch, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.searches[chatID]
	delete(r.searches, chatID)
	return s, ok
}

// HandleUpdate routes a single update to the appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		msg := upd.Message
		chatID := msg.Chat.ID

		if msg.Location != nil {
			r.handleLocation(ctx, chatID, msg.Location.Latitude, msg.Location.Longitude)
			return
		}

		text := strings.TrimSpace(msg.Text)
		cmd, arg := splitCommand(text)

		switch cmd {
		case "/start":
			r.handleStart(ctx, chatID)
		case "/help":
			r.sendText(chatID, helpText)
		case "/weather":
			r.handleWeather(ctx, chatID, kindCurrent, arg)
		case "/hourly":
			r.handleWeather(ctx, chatID, kindHourly, arg)
		case "/forecast":
			r.handleWeather(ctx, chatID, kindDaily, arg)
		case "/air":
			r.handleWeather(ctx, chatID, kindAir, arg)
		case "/setcity":
			r.handleSetCity(ctx, chatID, arg)
		case "/currency":
			r.handleCurrency(ctx, chatID)
		case "/convert":
			r.handleConvert(ctx, chatID, arg)
		case "/country":
			r.handleCountry(ctx, chatID, arg)
		case "/notifications":
			r.handleNotifications(ctx, chatID)
		case "/regular":
			r.handleRegular(ctx, chatID, arg)
		case "/jobs":
			r.handleJobs(ctx, chatID)
		default:
			r.handleFreeForm(ctx, chatID, text)
		}
		return
	}

	if upd.CallbackQuery != nil {
		cb := upd.CallbackQuery
		if cb.Message == nil {
			return
		}
		r.handleCallback(ctx, cb.Message.Chat.ID, cb.Data, cb.ID)
	}
}

// splitCommand separates "/cmd arg words" into the command and its argument.
// Commands addressed as /cmd@BotName are normalized.
func splitCommand(text string) (cmd, arg string) {
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	cmd, arg, _ = strings.Cut(text, " ")
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}
	return cmd, strings.TrimSpace(arg)
}

func (r *Router) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := r.bot.Send(msg); err != nil {
		r.log.Warn("send failed", zap.Int64("chatID", chatID), zap.Error(err))
	}
}

func (r *Router) sendWithKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = kb
	if _, err := r.bot.Send(msg); err != nil {
		r.log.Warn("send failed", zap.Int64("chatID", chatID), zap.Error(err))
	}
}

func (r *Router) answerCallback(id string) {
	if _, err := r.bot.Request(tgbotapi.NewCallback(id, "")); err != nil {
		r.log.Debug("answer callback failed", zap.Error(err))
	}
}
