package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"snapshoot-sync/config"
	"snapshoot-sync/internal/kv"
	"snapshoot-sync/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		App:          config.App{Mode: "test"},
		API:          config.API{BaseURL: "http://127.0.0.1:1/api"},
		Store:        config.Store{Backend: "memory", KeyPrefix: "test:"},
		Media:        config.Media{Backend: "api"},
		Connectivity: config.Connectivity{Probe: "none"},
		Status:       config.Status{Addr: "127.0.0.1:0", SyncPerSecond: 10, SyncBurst: 10},
	}
}

func TestNewWiresSkippedPassIntoStatusAndMetrics(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(), logger.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.True(t, a.Monitor.Online())
	require.NoError(t, a.Health(ctx))

	rep := a.Sync.Sync(ctx)
	assert.Equal(t, "not authenticated", rep.Skipped)

	h := a.Server().Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"skipped":"not authenticated"`)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `snapshoot_sync_passes_total{result="skipped"} 1`)
}

func TestOpenStoreAppliesPrefix(t *testing.T) {
	ctx := context.Background()
	store, err := OpenStore(ctx, config.Store{
		Backend:    "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "kv.db"),
		KeyPrefix:  "alice:",
	})
	require.NoError(t, err)
	defer kv.Close(store)

	require.NoError(t, store.Set(ctx, "token", "abc"))
	v, ok, err := store.Get(ctx, "token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", v)
}

func TestOpenStoreRejectsUnknownBackends(t *testing.T) {
	_, err := OpenStore(context.Background(), config.Store{Backend: "etcd"})
	assert.Error(t, err)

	_, err = OpenStore(context.Background(), config.Store{Backend: "postgres"})
	assert.Error(t, err)
}

func TestNewProber(t *testing.T) {
	p, err := newProber(config.Connectivity{Probe: "none"}, config.API{})
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = newProber(config.Connectivity{Probe: "icmp"}, config.API{})
	assert.Error(t, err)

	assert.Equal(t, "wss://api.example.com/ws", toWebSocketURL("https://api.example.com/ws"))
	assert.Equal(t, "ws://localhost:8080/ws", toWebSocketURL("http://localhost:8080/ws"))
}
