// Package app assembles the bot: configuration, cache stores, upstream
// clients, the scheduler and the Telegram router, then runs the update loop
// until a shutdown signal.
package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/vmg75/weather-bot/internal/cache"
	"github.com/vmg75/weather-bot/internal/config"
	"github.com/vmg75/weather-bot/internal/country"
	"github.com/vmg75/weather-bot/internal/currency"
	"github.com/vmg75/weather-bot/internal/fetch"
	"github.com/vmg75/weather-bot/internal/geo"
	"github.com/vmg75/weather-bot/internal/notify"
	"github.com/vmg75/weather-bot/internal/owm"
	"github.com/vmg75/weather-bot/internal/scheduler"
	"github.com/vmg75/weather-bot/internal/store"
	"github.com/vmg75/weather-bot/internal/telegram"
	"github.com/vmg75/weather-bot/internal/weather"
)

type App struct {
	cfg     config.Config
	log     *zap.Logger
	bot     *tgbotapi.BotAPI
	httpSrv *http.Server
	router  *telegram.Router
	sched   *scheduler.Scheduler
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	return &App{cfg: cfg, log: log, bot: bot, httpSrv: srv}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting weather-bot",
		zap.String("username", a.bot.Self.UserName),
		zap.String("http", a.cfg.HTTPAddr),
		zap.String("cache", a.cfg.CacheDir),
	)

	cacheFile := func(name string) string { return filepath.Join(a.cfg.CacheDir, name) }

	repo := store.NewFileRepo(cacheFile("users.json"), a.log)

	fetcher := fetch.New(&http.Client{Timeout: a.cfg.HTTPTimeout}, a.log)
	owmClient := owm.NewClient(a.cfg.OWAPIKey, "", fetcher)

	// One cache store per data category, each its own JSON file.
	geocoding := fetch.NewCached(cache.NewStore(cacheFile("weather_geocoding.json"), a.log), a.log)
	current := fetch.NewCached(cache.NewStore(cacheFile("current_weather.json"), a.log), a.log)
	forecast := fetch.NewCached(cache.NewStore(cacheFile("weather_forecast.json"), a.log), a.log)
	air := fetch.NewCached(cache.NewStore(cacheFile("air_pollution.json"), a.log), a.log)
	rates := cache.NewStore(cacheFile("currency_rates.json"), a.log)

	resolver := geo.New(owmClient, geocoding)
	weatherSvc := weather.NewService(owmClient, current, forecast, air, a.log)
	currencySvc := currency.New(fetcher, rates, "", a.log)
	countrySvc := country.New(fetcher, "", "")

	sink := telegram.NewSink(a.bot, a.log)
	notifier := notify.New(repo, resolver, weatherSvc, sink, a.log)

	a.sched = scheduler.New(repo, notifier, a.log, a.cfg.PollInterval)
	if err := a.sched.Rebuild(); err != nil {
		a.log.Error("schedule rebuild failed", zap.Error(err))
		return err
	}

	a.router = telegram.NewRouter(a.bot, a.log, repo, resolver, weatherSvc,
		currencySvc, countrySvc, a.sched, a.cfg.DefaultCity)

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.sched.Run(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")

			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := a.httpSrv.Shutdown(shCtx)
			cancel()

			if err != nil {
				a.log.Warn("http server shutdown error", zap.Error(err))
			}
			a.bot.StopReceivingUpdates()
			return nil

		case upd := <-updCh:
			a.router.HandleUpdate(ctx, upd)
		}
	}
}
