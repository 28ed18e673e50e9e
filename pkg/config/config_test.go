package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, ":8080", cfg.App.Addr())
	assert.Equal(t, int32(25), cfg.DB.MaxConns)
	assert.Equal(t, 30*time.Second, cfg.Tx.StatementTimeout)
	assert.Equal(t, 3, cfg.Tx.MaxRetries)
	assert.Equal(t, "stockledger.events", cfg.Outbox.Channel)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.Inventory.VerifyConservation)
	assert.Empty(t, cfg.App.CORSOrigins)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APP_ENV", "production")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://ledger@db/ledger")
	t.Setenv("TX_STATEMENT_TIMEOUT", "5s")
	t.Setenv("REDIS_URL", "redis://cache:6379/0")
	t.Setenv("INVENTORY_VERIFY_CONSERVATION", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://back.office, https://ops.example ,")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.App.Env)
	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, "postgres://ledger@db/ledger", cfg.DB.URL)
	assert.Equal(t, 5*time.Second, cfg.Tx.StatementTimeout)
	assert.True(t, cfg.Redis.Enabled())
	assert.True(t, cfg.Inventory.VerifyConservation)
	assert.Equal(t, []string{"https://back.office", "https://ops.example"}, cfg.App.CORSOrigins)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LOG_LEVEL=debug\nOUTBOX_BATCH_SIZE=7\n"), 0o600))

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, 7, cfg.Outbox.BatchSize)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			App: AppConfig{Env: "production"},
			DB:  DBConfig{URL: "postgres://x", MaxConns: 10, MinConns: 2},
			Tx:  TxConfig{MaxRetries: 3},
			JWT: JWTConfig{Secret: "s3cret"},
		}
	}

	require.NoError(t, base().Validate())

	noDB := base()
	noDB.DB.URL = ""
	assert.ErrorContains(t, noDB.Validate(), "DATABASE_URL")

	noSecret := base()
	noSecret.JWT.Secret = ""
	assert.ErrorContains(t, noSecret.Validate(), "JWT_SECRET")

	noSecret.App.Env = "development"
	assert.NoError(t, noSecret.Validate())

	badPool := base()
	badPool.DB.MinConns = 20
	assert.ErrorContains(t, badPool.Validate(), "DB_MIN_CONNS")
}
