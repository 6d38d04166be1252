package database_test

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"readlater/internal/database"
	"readlater/internal/platform"
)

func newDatabase(t *testing.T) *database.Database {
	t.Helper()

	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "test.sqlite"), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestStorageRevisions(t *testing.T) {
	db := newDatabase(t)
	ctx := context.Background()
	storage := db.Storage(1, platform.AreaSync)

	item, err := storage.Get(ctx, "articles")
	require.NoError(t, err)
	require.False(t, item.Exists())

	require.NoError(t, storage.Set(ctx, "articles", []byte("[]"), 0))
	require.ErrorIs(t, storage.Set(ctx, "articles", []byte("[1]"), 0), platform.ErrConflict)

	item, err = storage.Get(ctx, "articles")
	require.NoError(t, err)
	require.Equal(t, int64(1), item.Revision)
	require.Equal(t, "[]", string(item.Value))

	require.NoError(t, storage.Set(ctx, "articles", []byte("[2]"), 1))
	require.ErrorIs(t, storage.Set(ctx, "articles", []byte("[3]"), 1), platform.ErrConflict)

	item, err = storage.Get(ctx, "articles")
	require.NoError(t, err)
	require.Equal(t, int64(2), item.Revision)
	require.Equal(t, "[2]", string(item.Value))
}

func TestStorageIsScopedByOwnerAndArea(t *testing.T) {
	db := newDatabase(t)
	ctx := context.Background()

	require.NoError(t, db.Storage(1, platform.AreaSync).Set(ctx, "settings", []byte(`{"a":1}`), 0))
	require.NoError(t, db.Storage(1, platform.AreaLocal).Set(ctx, "articleAlarms", []byte(`{}`), 0))
	require.NoError(t, db.Storage(2, platform.AreaSync).Set(ctx, "articles", []byte(`[]`), 0))

	snapshot, err := db.Storage(1, platform.AreaSync).Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string][]byte{"settings": []byte(`{"a":1}`)}, snapshot)

	item, err := db.Storage(2, platform.AreaSync).Get(ctx, "settings")
	require.NoError(t, err)
	require.False(t, item.Exists())

	owners, err := db.Owners(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, owners)
}

func TestStorageWorksWithUpdate(t *testing.T) {
	db := newDatabase(t)
	ctx := context.Background()
	storage := db.Storage(7, platform.AreaSync)

	for range 3 {
		require.NoError(t, platform.Update(ctx, storage, "counter", func(current []byte) ([]byte, error) {
			return append(current, 'x'), nil
		}))
	}

	item, err := storage.Get(ctx, "counter")
	require.NoError(t, err)
	require.Equal(t, "xxx", string(item.Value))
}

func TestAlarms(t *testing.T) {
	db := newDatabase(t)
	ctx := context.Background()
	alarms := db.Alarms(1)
	first := time.UnixMilli(1_700_000_000_000)
	second := first.Add(time.Hour)

	_, ok, err := alarms.Get(ctx, "daily-reminder")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, alarms.Create(ctx, "daily-reminder", first))
	require.NoError(t, alarms.Create(ctx, "daily-reminder", second))

	alarm, ok, err := alarms.Get(ctx, "daily-reminder")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, second.Equal(alarm.ScheduledAt))

	_, ok, err = db.Alarms(2).Get(ctx, "daily-reminder")
	require.NoError(t, err)
	require.False(t, ok)

	cleared, err := alarms.Clear(ctx, "daily-reminder")
	require.NoError(t, err)
	require.True(t, cleared)

	cleared, err = alarms.Clear(ctx, "daily-reminder")
	require.NoError(t, err)
	require.False(t, cleared)
}

func TestPopDueAlarms(t *testing.T) {
	db := newDatabase(t)
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000)

	require.NoError(t, db.Alarms(2).Create(ctx, "article-b", now.Add(-time.Minute)))
	require.NoError(t, db.Alarms(1).Create(ctx, "article-a", now.Add(-time.Hour)))
	require.NoError(t, db.Alarms(1).Create(ctx, "daily-reminder", now))
	require.NoError(t, db.Alarms(1).Create(ctx, "article-later", now.Add(time.Second)))

	due, err := db.PopDueAlarms(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 3)
	require.Equal(t, int64(1), due[0].OwnerID)
	require.Equal(t, "article-a", due[0].Name)
	require.True(t, now.Add(-time.Hour).Equal(due[0].ScheduledAt))
	require.Equal(t, int64(2), due[1].OwnerID)
	require.Equal(t, "daily-reminder", due[2].Name)

	due, err = db.PopDueAlarms(ctx, now)
	require.NoError(t, err)
	require.Empty(t, due)

	_, ok, err := db.Alarms(1).Get(ctx, "article-later")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRestoreAlarms(t *testing.T) {
	db := newDatabase(t)
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000)

	require.NoError(t, db.Alarms(1).Create(ctx, "article-a", now.Add(-time.Minute)))
	require.NoError(t, db.Alarms(1).Create(ctx, "daily-reminder", now))

	due, err := db.PopDueAlarms(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 2)

	rearmed := now.Add(24 * time.Hour)
	require.NoError(t, db.Alarms(1).Create(ctx, "daily-reminder", rearmed))

	require.NoError(t, db.RestoreAlarms(ctx, due))

	a, ok, err := db.Alarms(1).Get(ctx, "article-a")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, now.Add(-time.Minute).Equal(a.ScheduledAt))

	a, ok, err = db.Alarms(1).Get(ctx, "daily-reminder")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, rearmed.Equal(a.ScheduledAt))

	due, err = db.PopDueAlarms(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, "article-a", due[0].Name)
}

func TestAlarmsCreateWrapsError(t *testing.T) {
	db := newDatabase(t)
	require.NoError(t, db.Close())

	err := db.Alarms(1).Create(context.Background(), "article-a", time.Now())
	require.ErrorContains(t, err, "failed to execute query")
}
