package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultBalanceAPIAddr, cfg.BalanceAPIAddr)
	assert.Equal(t, DefaultHistoryAPIAddr, cfg.HistoryAPIAddr)
	assert.Equal(t, 30*time.Second, cfg.MonitoringInterval)
	assert.Equal(t, float64(DefaultLargeTxThreshold), cfg.LargeTxThreshold)
	assert.Equal(t, float64(DefaultVelocityThreshold), cfg.VelocityThreshold)
	assert.Equal(t, DefaultFrequencyThreshold, cfg.FrequencyThreshold)
	assert.Equal(t, "MEDIUM", cfg.AlertLevel)
}

func TestLoad_Overrides(t *testing.T) {
	setEnv(t, "PORT", "9090")
	setEnv(t, "MONITORING_INTERVAL", "60")
	setEnv(t, "LARGE_TX_THRESHOLD", "2500.50")
	setEnv(t, "FREQUENCY_THRESHOLD", "20")
	setEnv(t, "ALERT_LEVEL", "HIGH")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 60*time.Second, cfg.MonitoringInterval)
	assert.Equal(t, 2500.50, cfg.LargeTxThreshold)
	assert.Equal(t, 20, cfg.FrequencyThreshold)
	assert.Equal(t, "HIGH", cfg.AlertLevel)
}

func TestLoad_InvalidAlertLevel(t *testing.T) {
	setEnv(t, "ALERT_LEVEL", "SEVERE")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ALERT_LEVEL")
}

func TestLoad_BadIntervalFallsBackToDefault(t *testing.T) {
	// Non-numeric and non-positive values are ignored, not fatal
	setEnv(t, "MONITORING_INTERVAL", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultMonitoringInterval, cfg.MonitoringInterval)

	setEnv(t, "MONITORING_INTERVAL", "0")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultMonitoringInterval, cfg.MonitoringInterval)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing balance addr", func(c *Config) { c.BalanceAPIAddr = "" }, "BALANCE_API_ADDR"},
		{"missing history addr", func(c *Config) { c.HistoryAPIAddr = "" }, "HISTORY_API_ADDR"},
		{"zero large tx threshold", func(c *Config) { c.LargeTxThreshold = 0 }, "LARGE_TX_THRESHOLD"},
		{"negative velocity threshold", func(c *Config) { c.VelocityThreshold = -1 }, "VELOCITY_THRESHOLD"},
		{"zero frequency threshold", func(c *Config) { c.FrequencyThreshold = 0 }, "FREQUENCY_THRESHOLD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_AIEnabled(t *testing.T) {
	setEnv(t, "GOOGLE_API_KEY", "")
	setEnv(t, "GEMINI_API_KEY", "")
	cfg := &Config{}
	assert.False(t, cfg.AIEnabled())

	setEnv(t, "GOOGLE_API_KEY", "test-key")
	assert.True(t, cfg.AIEnabled())
}
