package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-io/custodia/internal/config"
)

const validKey = "0123456789abcdef0123456789abcdef" // 32 bytes

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CUSTODIA_DATABASE_HOST", "localhost")
	t.Setenv("CUSTODIA_DATABASE_DBNAME", "custodia")
	t.Setenv("CUSTODIA_DATABASE_USER", "app")
	t.Setenv("CUSTODIA_DATABASE_PASSWORD", "secret")
}

func TestLoadAPIConfig(t *testing.T) {
	t.Run("loads from environment with defaults", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("CUSTODIA_CRYPTO_QR_KEY", validKey)

		cfg, err := config.LoadAPIConfig("", t.TempDir())
		require.NoError(t, err)

		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, validKey, cfg.Crypto.QRKey)
		assert.Equal(t, 8760*time.Hour, cfg.Token.TTL)
		assert.Equal(t, 8*time.Hour, cfg.Anomaly.Threshold)
	})

	t.Run("fails without database host", func(t *testing.T) {
		t.Setenv("CUSTODIA_DATABASE_DBNAME", "custodia")
		t.Setenv("CUSTODIA_CRYPTO_QR_KEY", validKey)

		_, err := config.LoadAPIConfig("", t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.host")
	})

	t.Run("fails without encryption key", func(t *testing.T) {
		setBaseEnv(t)

		_, err := config.LoadAPIConfig("", t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "crypto.qr_key")
	})

	t.Run("fails on short encryption key", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("CUSTODIA_CRYPTO_QR_KEY", "too-short")

		_, err := config.LoadAPIConfig("", t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "32 bytes")
	})

	t.Run("fails on long encryption key", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("CUSTODIA_CRYPTO_QR_KEY", validKey+"x")

		_, err := config.LoadAPIConfig("", t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "32 bytes")
	})

	t.Run("overrides defaults from environment", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("CUSTODIA_CRYPTO_QR_KEY", validKey)
		t.Setenv("CUSTODIA_SERVER_PORT", "9090")
		t.Setenv("CUSTODIA_TOKEN_TTL", "720h")
		t.Setenv("CUSTODIA_ANOMALY_THRESHOLD", "12h")

		cfg, err := config.LoadAPIConfig("", t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, 720*time.Hour, cfg.Token.TTL)
		assert.Equal(t, 12*time.Hour, cfg.Anomaly.Threshold)
	})
}

func TestLoadSweeperConfig(t *testing.T) {
	t.Run("loads with defaults", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("CUSTODIA_ANOMALY_OPERATOR_ID", "50")

		cfg, err := config.LoadSweeperConfig("", t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, 8*time.Hour, cfg.Anomaly.Threshold)
		assert.Equal(t, 15*time.Minute, cfg.Anomaly.Interval)
		assert.Equal(t, 10, cfg.Anomaly.WorkerPoolSize)
		assert.Equal(t, int64(50), cfg.Anomaly.OperatorID)
	})

	t.Run("fails without operator id", func(t *testing.T) {
		setBaseEnv(t)

		_, err := config.LoadSweeperConfig("", t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "anomaly.operator_id")
	})
}

func TestDSN(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "app",
		Password: "secret",
		DBName:   "custodia",
		SSLMode:  "require",
	}
	assert.Equal(t,
		"host=db.internal port=5433 user=app password=secret dbname=custodia sslmode=require",
		cfg.DSN())
}
