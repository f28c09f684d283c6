package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config describes all runtime settings for the server.
//
// Load once in main, validate, then pass down explicitly.
type Config struct {
	Env string // dev|stage|prod

	Log struct {
		Format string // text|json
		Level  string // debug|info|warn|error
	}

	HTTP struct {
		Addr              string
		ReadHeaderTimeout time.Duration
		ReadTimeout       time.Duration
		WriteTimeout      time.Duration
		IdleTimeout       time.Duration
		ShutdownTimeout   time.Duration
	}

	// empty URL disables win stats
	Postgres struct {
		URL           string
		RunMigrations bool
		MigrationsDir string // empty => embedded migrations
	}

	// empty Addr disables the winners feed
	Redis struct {
		Addr    string
		DB      int
		FeedLen int
	}

	Game struct {
		InitialScore                int
		TrialCost                   int
		RejectDuplicateRegistration bool
		NotifyTimeout               time.Duration
		RecordTimeout               time.Duration
	}
}

// Defaults returns the built-in settings before any file or env overrides.
func Defaults() Config {
	var c Config
	c.Env = "dev"
	c.Log.Format = "text"
	c.Log.Level = "info"

	c.HTTP.Addr = ":8080"
	c.HTTP.ReadHeaderTimeout = 5 * time.Second
	c.HTTP.IdleTimeout = 60 * time.Second
	c.HTTP.ShutdownTimeout = 10 * time.Second

	c.Postgres.RunMigrations = true

	c.Redis.FeedLen = 50

	c.Game.InitialScore = 100
	c.Game.TrialCost = 10
	c.Game.NotifyTimeout = 5 * time.Second
	c.Game.RecordTimeout = 5 * time.Second
	return c
}

// LoadFromEnv starts from Defaults, applies CONFIG_FILE when set, then lets
// environment variables override individual keys.
func LoadFromEnv() (Config, error) {
	c := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := c.applyFile(path); err != nil {
			return Config{}, err
		}
	}

	c.Env = envString("APP_ENV", c.Env)
	c.Log.Format = envString("LOG_FORMAT", c.Log.Format)
	c.Log.Level = envString("LOG_LEVEL", c.Log.Level)

	if port := os.Getenv("PORT"); port != "" {
		c.HTTP.Addr = ":" + port
	}
	c.HTTP.Addr = envString("HTTP_ADDR", c.HTTP.Addr)
	c.HTTP.ReadHeaderTimeout = envDuration("HTTP_READ_HEADER_TIMEOUT", c.HTTP.ReadHeaderTimeout)
	c.HTTP.ReadTimeout = envDuration("HTTP_READ_TIMEOUT", c.HTTP.ReadTimeout)
	c.HTTP.WriteTimeout = envDuration("HTTP_WRITE_TIMEOUT", c.HTTP.WriteTimeout)
	c.HTTP.IdleTimeout = envDuration("HTTP_IDLE_TIMEOUT", c.HTTP.IdleTimeout)
	c.HTTP.ShutdownTimeout = envDuration("HTTP_SHUTDOWN_TIMEOUT", c.HTTP.ShutdownTimeout)

	c.Postgres.URL = envString("DATABASE_URL", c.Postgres.URL)
	c.Postgres.RunMigrations = envBool("RUN_MIGRATIONS", c.Postgres.RunMigrations)
	c.Postgres.MigrationsDir = envString("MIGRATIONS_DIR", c.Postgres.MigrationsDir)

	c.Redis.Addr = envString("REDIS_ADDR", c.Redis.Addr)
	c.Redis.DB = envInt("REDIS_DB", c.Redis.DB)
	c.Redis.FeedLen = envInt("WINNERS_FEED_LEN", c.Redis.FeedLen)

	c.Game.InitialScore = envInt("INITIAL_SCORE", c.Game.InitialScore)
	c.Game.TrialCost = envInt("TRIAL_COST", c.Game.TrialCost)
	c.Game.RejectDuplicateRegistration = envBool("REJECT_DUPLICATE_REGISTRATION", c.Game.RejectDuplicateRegistration)
	c.Game.NotifyTimeout = envDuration("NOTIFY_TIMEOUT", c.Game.NotifyTimeout)
	c.Game.RecordTimeout = envDuration("RECORD_TIMEOUT", c.Game.RecordTimeout)

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("HTTP addr is empty")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("unsupported LOG_FORMAT=%q (want text|json)", c.Log.Format)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported LOG_LEVEL=%q (want debug|info|warn|error)", c.Log.Level)
	}
	if c.Game.TrialCost <= 0 {
		return fmt.Errorf("TRIAL_COST must be positive, got %d", c.Game.TrialCost)
	}
	if c.Game.InitialScore < 0 {
		return fmt.Errorf("INITIAL_SCORE must not be negative, got %d", c.Game.InitialScore)
	}
	if c.Redis.Addr != "" && c.Redis.FeedLen <= 0 {
		return fmt.Errorf("WINNERS_FEED_LEN must be positive, got %d", c.Redis.FeedLen)
	}
	return nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
