package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoadEnv_Defaults(t *testing.T) {
	for _, key := range []string{"HTTP_PORT", "DATABASE_PATH", "EXPIRY_ALERT_DAYS", "EXPIRY_CHECK_INTERVAL_MINUTES", "REPORT_CURRENCY", "SLOW_MOVING_WINDOW_DAYS", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := LoadEnv()

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "stock.db", cfg.Database.Path)
	assert.Equal(t, 7, cfg.Inventory.ExpiryAlertDays)
	assert.Equal(t, 60, cfg.Inventory.ExpiryCheckMinutes)
	assert.Equal(t, "INR", cfg.Report.Currency)
	assert.Equal(t, 30, cfg.Report.SlowMovingWindowDays)
	assert.NotEmpty(t, cfg.Server.CORSAllowedOrigins)
}

func TestLoadEnv_Overrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("EXPIRY_ALERT_DAYS", "14")
	t.Setenv("EXPIRY_CHECK_INTERVAL_MINUTES", "0")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("LOGGER_DISABLE_CALLER", "true")

	cfg := LoadEnv()

	assert.Equal(t, 9090, cfg.Server.HTTPPort)
	assert.Equal(t, 14, cfg.Inventory.ExpiryAlertDays)
	assert.Zero(t, cfg.Inventory.ExpiryCheckMinutes)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSAllowedOrigins)
	assert.True(t, cfg.Logger.DisableCaller)
}

func TestLoadEnv_BadIntegerFallsBack(t *testing.T) {
	t.Setenv("HTTP_PORT", "not-a-port")

	cfg := LoadEnv()

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoad_ReadsEnvFile(t *testing.T) {
	// GIVEN: a .env file setting the report currency, unset in the environment
	t.Setenv("REPORT_CURRENCY", "")
	os.Unsetenv("REPORT_CURRENCY")
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("REPORT_CURRENCY=EUR\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("REPORT_CURRENCY") })

	// WHEN: loading with that file
	cfg := Load(path)

	// THEN: the file value is used
	assert.Equal(t, "EUR", cfg.Report.Currency)
}

func TestNewLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger(LoggerConfig{Level: "loud", Encoding: "json"})
	require.NoError(t, err)

	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}
