package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg := loadFromEnv(Development)

	assert.Equal(t, 8080, cfg.ListenPort)
	assert.Equal(t, 3600, cfg.SessionTTLSeconds)
	assert.Equal(t, 3, cfg.VersionConflictRetryMax)
	assert.Equal(t, 5, cfg.AuditRetryAttempts)
	assert.Equal(t, 2000, cfg.AuditBackoffBaseMs)
	assert.Equal(t, 5000, cfg.HeartbeatIntervalMs)
	assert.Equal(t, 100, cfg.RateLimitGeneralPerMinute)
	assert.Equal(t, 10, cfg.RateLimitSwitchPerSecond)
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := loadFromEnv(Development)
	cfg.ListenPort = 0
	require.Error(t, cfg.Validate())
}

func TestValidateRequiresStoresInProduction(t *testing.T) {
	cfg := loadFromEnv(Production)
	cfg.HotStoreAddress = ""
	cfg.DurableStoreDSN = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hot_store_address")
}

func TestGetIntEnvFallsBackOnGarbage(t *testing.T) {
	t.Setenv("TS_TEST_INT", "not-a-number")
	assert.Equal(t, 42, getIntEnv("TS_TEST_INT", 42))
}

func TestGetEnvFallsBackOnEmpty(t *testing.T) {
	t.Setenv("TS_TEST_STR", "")
	assert.Equal(t, "fallback", getEnv("TS_TEST_STR", "fallback"))
}
