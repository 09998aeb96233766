package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfig 默认值
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, 5*time.Minute, cfg.Monitor.HealthCheckInterval)
	assert.Equal(t, time.Minute, cfg.Monitor.MetricsInterval)
	assert.Equal(t, 30*time.Second, cfg.Monitor.ProbeTimeout)
	assert.Equal(t, int64(5000), cfg.Monitor.Alerts.ResponseTimeMs)
	assert.Equal(t, 30, cfg.Monitor.RetentionDays)
	assert.True(t, cfg.Monitor.EnableAlerting)
	assert.Equal(t, 5*time.Minute, cfg.Registry.CacheTTL)
}

// TestLoadConfig_EnvOverrides 环境变量覆盖默认值
func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_PATH", "/tmp/test.db")
	t.Setenv("HEALTH_CHECK_INTERVAL_MS", "60000")
	t.Setenv("PROBE_TIMEOUT_MS", "10000")
	t.Setenv("ALERT_RESPONSE_TIME_MS", "2500")
	t.Setenv("RETENTION_DAYS", "7")
	t.Setenv("ENABLE_ALERTING", "false")
	t.Setenv("REGISTRY_CACHE_TTL_MS", "120000")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, time.Minute, cfg.Monitor.HealthCheckInterval)
	assert.Equal(t, 10*time.Second, cfg.Monitor.ProbeTimeout)
	assert.Equal(t, int64(2500), cfg.Monitor.Alerts.ResponseTimeMs)
	assert.Equal(t, 7, cfg.Monitor.RetentionDays)
	assert.False(t, cfg.Monitor.EnableAlerting)
	assert.Equal(t, 2*time.Minute, cfg.Registry.CacheTTL)
}

// TestLoadConfig_InvalidValuesIgnored 非法值保留默认
func TestLoadConfig_InvalidValuesIgnored(t *testing.T) {
	t.Setenv("HEALTH_CHECK_INTERVAL_MS", "not-a-number")
	t.Setenv("HEALTH_CHECK_INTERVAL_MS", "-5")
	t.Setenv("ENABLE_ALERTING", "maybe")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Monitor.HealthCheckInterval)
	assert.True(t, cfg.Monitor.EnableAlerting)
}
