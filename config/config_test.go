package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	assert.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 600, cfg.CaptionLatencyBudgetMs)
	assert.Equal(t, 60, cfg.CloudMaxRequestsPerMinute)
	assert.Equal(t, 10000, cfg.CloudMaxRequestsPerDay)
	assert.Equal(t, 10.0, cfg.CloudDailyBudgetUsd)
	assert.Equal(t, 5, cfg.CloudCircuitBreakerThreshold)
	assert.Equal(t, 60, cfg.CloudCircuitBreakerTimeoutSeconds)
	assert.Equal(t, 3600, cfg.CacheTtlSeconds)
	assert.Equal(t, 0.2, cfg.HybridTextWeight)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	os.Setenv("PORT", "9090")
	os.Setenv("CLOUD_MAX_REQUESTS_PER_MINUTE", "30")
	os.Setenv("CLOUD_DAILY_BUDGET_USD", "25.5")
	defer func() {
		os.Unsetenv("PORT")
		os.Unsetenv("CLOUD_MAX_REQUESTS_PER_MINUTE")
		os.Unsetenv("CLOUD_DAILY_BUDGET_USD")
	}()

	cfg, err := Load("", nil)
	assert.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 30, cfg.CloudMaxRequestsPerMinute)
	assert.Equal(t, 25.5, cfg.CloudDailyBudgetUsd)
}
