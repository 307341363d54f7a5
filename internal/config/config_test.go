package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxforge/platform/internal/config"
)

func TestLoad(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/fxforge")
	t.Setenv("PG_MAX_OPEN_CONNS", "25")

	var cfg config.PostgresConfig
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, "postgres://localhost:5432/fxforge", cfg.ConnectionString)
	assert.Equal(t, int32(25), cfg.MaxOpenConns)
	assert.Equal(t, 5*time.Second, cfg.RetryInterval)
	assert.Equal(t, "migrations", cfg.MigrationsPath)
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	var cfg config.PostgresConfig
	err := config.Load(&cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrParsing)
}

func TestDefaults(t *testing.T) {
	var cfg config.HTTPConfig
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestPaystackRateDefault(t *testing.T) {
	var cfg config.PaystackConfig
	require.NoError(t, config.Load(&cfg))

	assert.InDelta(t, 1600, cfg.USDToNGNRate, 0.01)
	assert.Equal(t, "https://api.paystack.co", cfg.BaseURL)
}

func TestIsProduction(t *testing.T) {
	t.Parallel()

	assert.True(t, config.AppConfig{Env: "production"}.IsProduction())
	assert.True(t, config.AppConfig{Env: "prod"}.IsProduction())
	assert.False(t, config.AppConfig{Env: "development"}.IsProduction())
}
