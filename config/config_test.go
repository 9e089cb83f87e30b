package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "sqlite", cfg.Store.Backend)
	require.Equal(t, "api", cfg.Media.Backend)
	require.Equal(t, "snapshoot-media", cfg.Media.Bucket)
	require.Equal(t, 5*time.Second, cfg.Connectivity.Interval)
	require.Equal(t, "http://localhost:8080/api", cfg.Connectivity.ProbeURL(cfg.API))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("API_BASE_URL", "https://api.example.test")
	t.Setenv("CONNECTIVITY_URL", "wss://api.example.test/ws")
	t.Setenv("SYNC_RATE_PER_SECOND", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "redis", cfg.Store.Backend)
	require.Equal(t, "https://api.example.test", cfg.API.BaseURL)
	require.Equal(t, "wss://api.example.test/ws", cfg.Connectivity.ProbeURL(cfg.API))
	require.InDelta(t, 2.5, cfg.Sync.RatePerSecond, 0.0001)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshoot.yaml")
	yaml := "store:\n  backend: memory\nstatus:\n  addr: 127.0.0.1:9999\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, "memory", cfg.Store.Backend)
	require.Equal(t, "127.0.0.1:9999", cfg.Status.Addr)
}
