package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datapulse/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATAPULSE_PATHS_DATA_DIR", dir)
	t.Setenv("DATAPULSE_PATHS_SCAN_DB", filepath.Join(dir, "scans.db"))

	cfg, err := config.LoadFrom("")
	require.NoError(t, err)
	return cfg
}

func TestNewWiresApplication(t *testing.T) {
	app, err := New(testConfig(t))
	require.NoError(t, err)
	require.NotNil(t, app.Server)
	assert.NotNil(t, app.Server.Handler)
	require.NoError(t, app.scanStore.Close())
}

func TestApplicationServesHealth(t *testing.T) {
	app, err := New(testConfig(t))
	require.NoError(t, err)
	defer app.scanStore.Close()

	srv := httptest.NewServer(app.Server.Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	app, err := New(testConfig(t))
	require.NoError(t, err)
	// Bind an ephemeral port so parallel test runs do not collide.
	app.Server.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}
