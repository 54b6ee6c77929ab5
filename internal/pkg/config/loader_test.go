package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppConfigDefaults(t *testing.T) {
	cfg, err := LoadAppConfig()
	require.NoError(t, err)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, filepath.Join("./data", "settings.db"), cfg.SettingsDB)
	assert.Equal(t, "@every 1m", cfg.SnapshotSchedule)
	assert.Equal(t, 10*time.Second, cfg.DeathDedupWindow)
	assert.Equal(t, 64, cfg.NotifyBuffer)
}

func TestLoadAppConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DOOM_LOOT_DATA_DIR", dir)
	t.Setenv("DOOM_LOOT_LOG_LEVEL", "debug")
	t.Setenv("DOOM_LOOT_DEATH_DEDUP_WINDOW", "3s")
	t.Setenv("DOOM_LOOT_NOTIFY_BUFFER", "8")

	cfg, err := LoadAppConfig()
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, filepath.Join(dir, "settings.db"), cfg.SettingsDB)
	assert.Equal(t, 3*time.Second, cfg.DeathDedupWindow)
	assert.Equal(t, 8, cfg.NotifyBuffer)
}

func TestLoadAppConfigRejectsBadDuration(t *testing.T) {
	t.Setenv("DOOM_LOOT_DEATH_DEDUP_WINDOW", "soon")
	_, err := LoadAppConfig()
	require.Error(t, err)
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("DOOM_LOOT_TEST_KEY", "")
	assert.Equal(t, "fallback", GetEnvOrDefault("DOOM_LOOT_TEST_KEY", "fallback"))
	t.Setenv("DOOM_LOOT_TEST_KEY", "value")
	assert.Equal(t, "value", GetEnvOrDefault("DOOM_LOOT_TEST_KEY", "fallback"))
}
