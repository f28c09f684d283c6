package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the subset of Config that may come from a YAML file.
// Zero values leave the current setting untouched.
type fileConfig struct {
	Env string `yaml:"env"`
	Log struct {
		Format string `yaml:"format"`
		Level  string `yaml:"level"`
	} `yaml:"log"`
	HTTP struct {
		Addr            string        `yaml:"addr"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"http"`
	Postgres struct {
		URL           string `yaml:"url"`
		RunMigrations *bool  `yaml:"run_migrations"`
		MigrationsDir string `yaml:"migrations_dir"`
	} `yaml:"postgres"`
	Redis struct {
		Addr    string `yaml:"addr"`
		DB      int    `yaml:"db"`
		FeedLen int    `yaml:"feed_len"`
	} `yaml:"redis"`
	Game struct {
		InitialScore                *int          `yaml:"initial_score"`
		TrialCost                   int           `yaml:"trial_cost"`
		RejectDuplicateRegistration bool          `yaml:"reject_duplicate_registration"`
		NotifyTimeout               time.Duration `yaml:"notify_timeout"`
		RecordTimeout               time.Duration `yaml:"record_timeout"`
	} `yaml:"game"`
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	data = []byte(os.ExpandEnv(string(data)))

	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	setString(&c.Env, f.Env)
	setString(&c.Log.Format, f.Log.Format)
	setString(&c.Log.Level, f.Log.Level)
	setString(&c.HTTP.Addr, f.HTTP.Addr)
	if f.HTTP.ShutdownTimeout > 0 {
		c.HTTP.ShutdownTimeout = f.HTTP.ShutdownTimeout
	}

	setString(&c.Postgres.URL, f.Postgres.URL)
	if f.Postgres.RunMigrations != nil {
		c.Postgres.RunMigrations = *f.Postgres.RunMigrations
	}
	setString(&c.Postgres.MigrationsDir, f.Postgres.MigrationsDir)

	setString(&c.Redis.Addr, f.Redis.Addr)
	if f.Redis.DB != 0 {
		c.Redis.DB = f.Redis.DB
	}
	if f.Redis.FeedLen != 0 {
		c.Redis.FeedLen = f.Redis.FeedLen
	}

	if f.Game.InitialScore != nil {
		c.Game.InitialScore = *f.Game.InitialScore
	}
	if f.Game.TrialCost != 0 {
		c.Game.TrialCost = f.Game.TrialCost
	}
	if f.Game.RejectDuplicateRegistration {
		c.Game.RejectDuplicateRegistration = true
	}
	if f.Game.NotifyTimeout > 0 {
		c.Game.NotifyTimeout = f.Game.NotifyTimeout
	}
	if f.Game.RecordTimeout > 0 {
		c.Game.RecordTimeout = f.Game.RecordTimeout
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
