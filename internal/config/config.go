// Package config loads runtime settings from a YAML file, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

type Config struct {
	Store    string         `yaml:"store"` // memory, postgres, mongo
	Postgres PostgresConfig `yaml:"postgres"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Local    LocalConfig    `yaml:"local"`
	Auth     AuthConfig     `yaml:"auth"`
	Rewards  RewardsConfig  `yaml:"rewards"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
	Retries    int    `yaml:"retries"`
}

// LocalConfig is the device-local key-value store holding pending referrers.
type LocalConfig struct {
	SQLitePath string `yaml:"sqlite_path"` // empty: in memory
}

type AuthConfig struct {
	JWTKey string `yaml:"jwt_key"`
	Issuer string `yaml:"issuer"`
}

type RewardsConfig struct {
	ProfileWaitAttempts int    `yaml:"profile_wait_attempts"`
	ProfileWaitInterval string `yaml:"profile_wait_interval"`
	NudgeWindow         string `yaml:"nudge_window"`
	ReconcileEvery      string `yaml:"reconcile_every"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Dev   bool   `yaml:"dev"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreMemory,
		Mongo: MongoConfig{
			Database:   "challengeties",
			Collection: "users",
			Retries:    5,
		},
		Auth: AuthConfig{Issuer: "challengeties"},
		Rewards: RewardsConfig{
			ProfileWaitAttempts: 30,
			ProfileWaitInterval: "200ms",
			NudgeWindow:         "24h",
			ReconcileEvery:      "15m",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path (a missing file yields defaults), then .env, then REWARDS_* variables.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// .env is optional; variables already set win.
	_ = godotenv.Load()

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&c.Store, "REWARDS_STORE")
	setString(&c.Postgres.DSN, "REWARDS_POSTGRES_DSN")
	setString(&c.Mongo.URI, "REWARDS_MONGO_URI")
	setString(&c.Mongo.Database, "REWARDS_MONGO_DB")
	setString(&c.Local.SQLitePath, "REWARDS_SQLITE_PATH")
	setString(&c.Auth.JWTKey, "REWARDS_JWT_KEY")
	setString(&c.Logging.Level, "REWARDS_LOG_LEVEL")
	setString(&c.Rewards.ReconcileEvery, "REWARDS_RECONCILE_EVERY")
	if v := os.Getenv("REWARDS_MONGO_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Mongo.Retries = n
		}
	}
}

// Validate checks that the chosen backend is configured.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.Postgres.DSN == "" {
			return errors.New("config: postgres store requires postgres.dsn")
		}
	case StoreMongo:
		if c.Mongo.URI == "" {
			return errors.New("config: mongo store requires mongo.uri")
		}
	default:
		return fmt.Errorf("config: unknown store %q", c.Store)
	}
	for name, v := range map[string]string{
		"profile_wait_interval": c.Rewards.ProfileWaitInterval,
		"nudge_window":          c.Rewards.NudgeWindow,
		"reconcile_every":       c.Rewards.ReconcileEvery,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("config: rewards.%s: %w", name, err)
		}
	}
	return nil
}

// ProfileWaitInterval returns the parsed wait interval.
func (c *Config) ProfileWaitInterval() time.Duration {
	return parseDuration(c.Rewards.ProfileWaitInterval, 200*time.Millisecond)
}

func (c *Config) NudgeWindow() time.Duration {
	return parseDuration(c.Rewards.NudgeWindow, 24*time.Hour)
}

func (c *Config) ReconcileEvery() time.Duration {
	return parseDuration(c.Rewards.ReconcileEvery, 15*time.Minute)
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
