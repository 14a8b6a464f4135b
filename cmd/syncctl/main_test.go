package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/workoutcache/internal/domain"
)

func setupEnv(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	dir := t.TempDir()
	t.Setenv("HEVY_BASE_URL", server.URL)
	t.Setenv("HEVY_API_KEY", "test-key")
	t.Setenv("DATA_DIR", dir)
	t.Setenv("CACHE_BACKEND", "file")
	t.Setenv("KAFKA_BROKERS", "")
	return dir
}

func TestSyncFailureStillReleasesDependencies(t *testing.T) {
	setupEnv(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	})

	a := &app{}
	var stdout, stderr bytes.Buffer
	err := execute(context.Background(), a, []string{"sync", "workouts"}, &stdout, &stderr)

	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	require.Contains(t, stdout.String(), "upstream_unavailable")
	require.NotNil(t, a.logger, "dependencies were built")
	require.Nil(t, a.deps, "dependencies were closed")
}

func TestSyncWritesCollection(t *testing.T) {
	dir := setupEnv(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"page":1,"page_count":1,"routines":[{"id":"r1","created_at":"2024-01-01","title":"Push"}]}`))
	})

	a := &app{}
	var stdout, stderr bytes.Buffer
	require.NoError(t, execute(context.Background(), a, []string{"sync", "routines"}, &stdout, &stderr))
	require.Contains(t, stdout.String(), "added=1")
	require.Nil(t, a.deps)

	data, err := os.ReadFile(filepath.Join(dir, "routines.json"))
	require.NoError(t, err)
	require.Contains(t, string(data), `"r1"`)

	stdout.Reset()
	require.NoError(t, execute(context.Background(), &app{}, []string{"read", "routines"}, &stdout, &stderr))
	require.Contains(t, stdout.String(), `"Push"`)
}

func TestSyncRejectsUnknownCollection(t *testing.T) {
	setupEnv(t, http.NotFound)

	var stdout, stderr bytes.Buffer
	err := execute(context.Background(), &app{}, []string{"sync", "exercises"}, &stdout, &stderr)
	require.ErrorIs(t, err, domain.ErrUnknownCollection)
}
