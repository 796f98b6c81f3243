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
	require.Equal(t, "http://localhost:8083", cfg.BackendURL)
	require.Equal(t, 5, cfg.ReconnectRetries)
	require.Equal(t, 2*time.Second, cfg.ReconnectBackoff)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend_url: http://from-file\nreconnect_retries: 9\n"), 0o600))
	t.Setenv("CHAT_CONFIG", path)
	t.Setenv("CHAT_BACKEND_URL", "http://from-env")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "http://from-env", cfg.BackendURL)
	require.Equal(t, 9, cfg.ReconnectRetries)
}

func TestNegativeRetriesRejected(t *testing.T) {
	t.Setenv("CHAT_RECONNECT_RETRIES", "-1")
	_, err := Load()
	require.Error(t, err)
}
