package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8000", cfg.HTTPAddress)
	require.Equal(t, "https://api.hevyapp.com/v1", cfg.UpstreamBaseURL)
	require.Equal(t, 15*time.Second, cfg.UpstreamPageTimeout)
	require.Equal(t, 500, cfg.SyncMaxPages)
	require.Zero(t, cfg.SyncInterval)
	require.Equal(t, BackendFile, cfg.CacheBackend)
	require.Empty(t, cfg.KafkaBrokers)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HEVY_API_KEY", "abcd1234efgh5678")
	t.Setenv("SYNC_INTERVAL", "10m")
	t.Setenv("SYNC_MAX_PAGES", "20")
	t.Setenv("CACHE_BACKEND", "Postgres")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 10*time.Minute, cfg.SyncInterval)
	require.Equal(t, 20, cfg.SyncMaxPages)
	require.Equal(t, BackendPostgres, cfg.CacheBackend)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "abcd********5678", cfg.MaskedAPIKey())
}

func TestLoadFromConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.yaml")
	require.NoError(t, os.WriteFile(path, []byte("DATA_DIR: /var/lib/workouts\nLOG_LEVEL: debug\n"), 0o644))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/var/lib/workouts", cfg.DataDir)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "redis")
	_, err := Load()
	require.ErrorContains(t, err, "CACHE_BACKEND")

	t.Setenv("CACHE_BACKEND", "file")
	t.Setenv("SYNC_MAX_PAGES", "0")
	_, err = Load()
	require.ErrorContains(t, err, "SYNC_MAX_PAGES")
}

func TestMaskedAPIKeyShortKey(t *testing.T) {
	require.Equal(t, "***", Config{UpstreamAPIKey: "short"}.MaskedAPIKey())
}
