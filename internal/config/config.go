package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken     string        `envconfig:"BOT_TOKEN" required:"true"`
	OWAPIKey     string        `envconfig:"OW_API_KEY" required:"true"`
	CacheDir     string        `envconfig:"CACHE_DIR" default:"./cache"`
	LogLevel     string        `envconfig:"LOG_LEVEL" default:"info"`  // debug|info|warn|error
	HTTPAddr     string        `envconfig:"HTTP_ADDR" default:":8080"` // healthz
	HTTPTimeout  time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"1m"`
	DefaultCity  string        `envconfig:"DEFAULT_CITY" default:"Moscow"`
}

// Load reads an optional .env file, then environment variables into Config.
func Load() (Config, error) {
	// A missing .env is fine; deployments set the environment directly.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
