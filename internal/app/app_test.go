package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/riskibarqy/cricket-match-service/internal/config"
	"github.com/riskibarqy/cricket-match-service/internal/platform/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() config.Config {
	return config.Config{
		HTTPAddr:           ":0",
		ReadTimeout:        time.Second,
		WriteTimeout:       time.Second,
		CORSAllowedOrigins: []string{"*"},
		InternalJobToken:   "token",
		SnapshotStore:      config.StoreMemory,
		MetricsEnabled:     true,
	}
}

func TestNewHTTPServer_MemoryStore(t *testing.T) {
	srv, err := NewHTTPServer(context.Background(), memoryConfig(), logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	assert.Equal(t, ":0", srv.HTTP.Addr)

	rec := httptest.NewRecorder()
	srv.HTTP.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// No provider and no stored snapshot.
	rec = httptest.NewRecorder()
	srv.HTTP.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/matches/87654", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	srv.HTTP.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "cricket_match_reconcile_total"))
}

func TestNewHTTPServer_MetricsDisabled(t *testing.T) {
	cfg := memoryConfig()
	cfg.MetricsEnabled = false

	srv, err := NewHTTPServer(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.HTTP.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewHTTPServer_RequiresAddr(t *testing.T) {
	cfg := memoryConfig()
	cfg.HTTPAddr = ""

	_, err := NewHTTPServer(context.Background(), cfg, logging.NewNop())
	require.Error(t, err)
}

func TestOpenSnapshotStore_Errors(t *testing.T) {
	_, _, err := openSnapshotStore(context.Background(), config.Config{SnapshotStore: "sqlite"}, nil)
	require.ErrorContains(t, err, "unsupported snapshot store")

	_, _, err = openSnapshotStore(context.Background(), config.Config{SnapshotStore: config.StoreRedis}, nil)
	require.ErrorContains(t, err, "requires a redis client")
}

func TestReconcileConfig(t *testing.T) {
	cfg := memoryConfig()
	cfg.FreshnessLive = 30 * time.Second
	cfg.LiveInferenceWindowTest = 5 * 24 * time.Hour
	cfg.CommitMaxRetries = 3
	cfg.CommitBackoff = 100 * time.Millisecond

	got := reconcileConfig(cfg)
	assert.Equal(t, 30*time.Second, got.Freshness.Live)
	assert.Equal(t, 5*24*time.Hour, got.Classifier.TestLiveInferenceWindow)
	assert.Equal(t, 3, got.MaxCommitRetries)
	assert.Equal(t, 100*time.Millisecond, got.CommitBackoff)
}
