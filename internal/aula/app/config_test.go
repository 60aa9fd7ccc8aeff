package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	require.Equal(t, "http://localhost:8080", cfg.BaseURL)
	require.Empty(t, cfg.WebsocketURL)
	require.Equal(t, StoreSQLite, cfg.Store.Driver)
	require.Equal(t, filepath.Join(dir, "aula", "session.db"), cfg.Store.Path)
	require.Equal(t, 30*time.Second, cfg.RequestTimeout)
	require.Equal(t, 10*time.Second, cfg.RefreshTimeout)
	require.Equal(t, 20, cfg.NotificationLimit)
	require.Equal(t, 600, cfg.RateLimit.Requests)
	require.Equal(t, time.Minute, cfg.RateLimit.Window)
}

func TestLoadConfigFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aula.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_url: https://aula.example.com/api
ws_url: wss://push.example.com/ws
notification_limit: 5
store:
  driver: bolt
  path: `+filepath.Join(dir, "tokens.bolt")+`
rate_limit:
  requests: 10
  window: 1s
`), 0o600))

	t.Setenv("AULA_BASE_URL", "http://localhost:9000")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, "http://localhost:9000", cfg.BaseURL)
	require.Equal(t, "wss://push.example.com/ws", cfg.WebsocketURL)
	require.Equal(t, 5, cfg.NotificationLimit)
	require.Equal(t, StoreBolt, cfg.Store.Driver)
	require.Equal(t, filepath.Join(dir, "tokens.bolt"), cfg.Store.Path)
	require.Equal(t, 10, cfg.RateLimit.Requests)
	require.Equal(t, time.Second, cfg.RateLimit.Window)
	require.Equal(t, 50, cfg.RateLimit.Burst)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("AULA_STORE", "redis")
		_, err := LoadConfig("")
		require.ErrorContains(t, err, "unknown store driver")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
}

func TestMemoryStoreHasNoPath(t *testing.T) {
	t.Setenv("AULA_STORE", StoreMemory)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Empty(t, cfg.Store.Path)
	require.False(t, StoreConfig{Driver: StoreMemory}.Sealed())
}
