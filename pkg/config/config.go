// Package config loads process configuration from the environment and an
// optional .env / config.env file via viper. Environment variables win.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config groups the settings of the server and the worker.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Tx        TxConfig
	JWT       JWTConfig
	Redis     RedisConfig
	Outbox    OutboxConfig
	Inventory InventoryConfig
}

// AppConfig holds process-wide settings.
type AppConfig struct {
	Env      string // development, staging, production
	Port     int
	LogLevel string

	// CORSOrigins is the browser origin allowlist; empty allows every
	// origin in development and none elsewhere.
	CORSOrigins []string
}

// IsDevelopment reports whether the process runs in development mode.
func (c AppConfig) IsDevelopment() bool { return c.Env == "development" }

// Addr returns the HTTP listen address.
func (c AppConfig) Addr() string { return fmt.Sprintf(":%d", c.Port) }

// DBConfig holds the PostgreSQL pool settings.
type DBConfig struct {
	URL      string
	MaxConns int32
	MinConns int32
}

// TxConfig tunes transactions and whole-event retries.
type TxConfig struct {
	StatementTimeout time.Duration
	MaxRetries       int
}

// JWTConfig configures bearer-token validation.
type JWTConfig struct {
	Secret string
	Issuer string
}

// RedisConfig is optional; an empty URL disables Redis.
type RedisConfig struct {
	URL string
}

// Enabled reports whether a Redis URL is configured.
func (c RedisConfig) Enabled() bool { return c.URL != "" }

// OutboxConfig tunes the worker relay.
type OutboxConfig struct {
	BatchSize    int
	PollInterval time.Duration
	Channel      string
}

// InventoryConfig holds ledger switches.
type InventoryConfig struct {
	VerifyConservation bool
}

// Load reads configuration from the environment, then optional files in the
// working directory.
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	for _, name := range []string{".env", "config"} {
		v.SetConfigName(name)
		if err := v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read %s: %w", name, err)
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Env:      v.GetString("APP_ENV"),
			Port:     v.GetInt("APP_PORT"),
			LogLevel: v.GetString("LOG_LEVEL"),

			CORSOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		DB: DBConfig{
			URL:      v.GetString("DATABASE_URL"),
			MaxConns: v.GetInt32("DB_MAX_CONNS"),
			MinConns: v.GetInt32("DB_MIN_CONNS"),
		},
		Tx: TxConfig{
			StatementTimeout: v.GetDuration("TX_STATEMENT_TIMEOUT"),
			MaxRetries:       v.GetInt("TX_MAX_RETRIES"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
			Issuer: v.GetString("JWT_ISSUER"),
		},
		Redis: RedisConfig{
			URL: v.GetString("REDIS_URL"),
		},
		Outbox: OutboxConfig{
			BatchSize:    v.GetInt("OUTBOX_BATCH_SIZE"),
			PollInterval: v.GetDuration("OUTBOX_POLL_INTERVAL"),
			Channel:      v.GetString("OUTBOX_CHANNEL"),
		},
		Inventory: InventoryConfig{
			VerifyConservation: v.GetBool("INVENTORY_VERIFY_CONSERVATION"),
		},
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_PORT", 8080)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 25)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("TX_STATEMENT_TIMEOUT", "30s")
	v.SetDefault("TX_MAX_RETRIES", 3)
	v.SetDefault("JWT_ISSUER", "stockledger")
	v.SetDefault("OUTBOX_BATCH_SIZE", 100)
	v.SetDefault("OUTBOX_POLL_INTERVAL", "2s")
	v.SetDefault("OUTBOX_CHANNEL", "stockledger.events")
	v.SetDefault("INVENTORY_VERIFY_CONSERVATION", false)
}

// Validate checks the settings a process cannot start without.
func (c *Config) Validate() error {
	if c.DB.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.JWT.Secret == "" && !c.App.IsDevelopment() {
		return errors.New("JWT_SECRET is required outside development")
	}
	if c.DB.MinConns > c.DB.MaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DB.MinConns, c.DB.MaxConns)
	}
	if c.Tx.MaxRetries < 1 {
		return errors.New("TX_MAX_RETRIES must be at least 1")
	}
	return nil
}
