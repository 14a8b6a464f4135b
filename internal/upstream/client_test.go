package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"example.com/workoutcache/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{BaseURL: server.URL + "/v1/", APIKey: "secret", Timeout: 2 * time.Second})
}

func TestFetchPage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/workouts", r.URL.Path)
		require.Equal(t, "2", r.URL.Query().Get("page"))
		require.Equal(t, "secret", r.Header.Get("api-key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"page":2,"page_count":3,"workouts":[{"id":"a","created_at":"2024-03-02","title":"Legs"},{"id":"b","created_at":"2024-03-01"}]}`))
	})

	page, err := client.FetchPage(context.Background(), "workouts", 2)
	require.NoError(t, err)
	require.Equal(t, 2, page.Number)
	require.Equal(t, 3, page.PageCount)
	require.Len(t, page.Records, 2)
	require.Equal(t, "a", page.Records[0].ID)
	require.JSONEq(t, `{"id":"a","created_at":"2024-03-02","title":"Legs"}`, string(page.Records[0].Raw))
}

func TestFetchPageWithoutListKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"page":1,"page_count":0}`))
	})

	page, err := client.FetchPage(context.Background(), "routine_folders", 1)
	require.NoError(t, err)
	require.Zero(t, page.PageCount)
	require.Empty(t, page.Records)
}

func TestFetchPageMissingPageCountIsSinglePage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "1", r.URL.Query().Get("page"))
		_, _ = w.Write([]byte(`{"workouts":[{"id":"a","created_at":"2024-03-02"},{"id":"b","created_at":"2024-03-01"}]}`))
	})

	page, err := client.FetchPage(context.Background(), "workouts", 1)
	require.NoError(t, err)
	require.Equal(t, 1, page.PageCount)

	fetcher := domain.NewFetcher(client, domain.DefaultFetcherConfig, zaptest.NewLogger(t))
	records, stats, err := fetcher.Fetch(context.Background(), "workouts", domain.FetchPlan{Full: true})
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, 1, stats.Pages)
}

func TestFetchPageStatusErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "try later", http.StatusServiceUnavailable)
	})

	_, err := client.FetchPage(context.Background(), "routines", 1)
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusServiceUnavailable, statusErr.Status)
	require.Equal(t, "try later", statusErr.Body)
}

func TestFetchPageMalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})

	_, err := client.FetchPage(context.Background(), "workouts", 1)
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestFetchPageNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	client := NewClient(Config{BaseURL: server.URL, Timeout: time.Second})

	_, err := client.FetchPage(context.Background(), "workouts", 1)
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestFetchOneUnwrapsEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/routines/r1":
			_, _ = w.Write([]byte(`{"routine":{"id":"r1","created_at":"2024-01-01","title":"Push"}}`))
		case "/v1/workouts/w1":
			_, _ = w.Write([]byte(`{"id":"w1","created_at":"2024-02-01"}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	record, err := client.FetchOne(ctx, "routines", "r1")
	require.NoError(t, err)
	require.Equal(t, "r1", record.ID)
	require.JSONEq(t, `{"id":"r1","created_at":"2024-01-01","title":"Push"}`, string(record.Raw))

	record, err = client.FetchOne(ctx, "workouts", "w1")
	require.NoError(t, err)
	require.Equal(t, "2024-02-01", record.CreatedAt)

	_, err = client.FetchOne(ctx, "workouts", "missing")
	require.ErrorIs(t, err, domain.ErrRecordNotFound)
	require.NotErrorIs(t, err, domain.ErrUpstreamUnavailable)
}
