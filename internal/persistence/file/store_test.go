package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"example.com/workoutcache/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return store
}

func mustRecords(t *testing.T, payload string) []domain.Record {
	t.Helper()
	var records []domain.Record
	require.NoError(t, json.Unmarshal([]byte(payload), &records))
	return records
}

func TestStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	payload := `[
		{"id":"b7","title":"Legs","created_at":"2024-03-02T08:00:00Z","exercises":[{"title":"Squat","sets":[{"reps":5}]}]},
		{"id":12,"name":"Folder","created_at":"2024-03-01T08:00:00Z"}
	]`

	require.NoError(t, store.Save(ctx, domain.CollectionWorkouts, mustRecords(t, payload)))

	loaded, err := store.Load(ctx, domain.CollectionWorkouts)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	require.Equal(t, "12", loaded[1].ID)

	out, err := json.Marshal(loaded)
	require.NoError(t, err)
	require.JSONEq(t, payload, string(out))
}

func TestStoreLoadMissingIsEmpty(t *testing.T) {
	store := newTestStore(t)

	records, err := store.Load(context.Background(), domain.CollectionRoutines)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestStoreLoadCorruptIsEmpty(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.WriteFile(store.Path("workouts"), []byte(`[{"id":"1",`), 0o644))

	records, err := store.Load(context.Background(), domain.CollectionWorkouts)
	require.NoError(t, err)
	require.Empty(t, records)

	require.NoError(t, os.WriteFile(store.Path("workouts"), []byte(`{"workouts":[]}`), 0o644))
	records, err = store.Load(context.Background(), domain.CollectionWorkouts)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestStoreSaveReplacesAtomically(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.CollectionRoutineFolders, mustRecords(t, `[{"id":1,"created_at":"2024-01-01"}]`)))
	require.NoError(t, store.Save(ctx, domain.CollectionRoutineFolders, mustRecords(t, `[{"id":2,"created_at":"2024-01-02"}]`)))

	loaded, err := store.Load(ctx, domain.CollectionRoutineFolders)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, "2", loaded[0].ID)

	leftovers, err := filepath.Glob(filepath.Join(store.dir, "*.tmp"))
	require.NoError(t, err)
	require.Empty(t, leftovers)
}

func TestStoreSaveEmptyWritesArray(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(context.Background(), domain.CollectionRoutines, nil))
	data, err := os.ReadFile(store.Path("routines"))
	require.NoError(t, err)
	require.JSONEq(t, `[]`, string(data))
}

func TestStoreSaveFailureWrapsWriteError(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.RemoveAll(store.dir))

	err := store.Save(context.Background(), domain.CollectionWorkouts, nil)
	require.ErrorIs(t, err, domain.ErrCacheWriteFailure)
}

func TestStoreBlobs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	payload, err := store.LoadBlob(ctx, "personal_records")
	require.NoError(t, err)
	require.Nil(t, payload)

	body := json.RawMessage(`[{"exercise":"Deadlift","weight_kg":200}]`)
	require.NoError(t, store.SaveBlob(ctx, "personal_records", body))

	payload, err = store.LoadBlob(ctx, "personal_records")
	require.NoError(t, err)
	require.Equal(t, string(body), string(payload))
}
