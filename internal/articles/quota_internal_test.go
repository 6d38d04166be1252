package articles

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"readlater/internal/domain"
	"readlater/internal/platform/platformtest"
)

var quotaNow = time.Date(2024, time.January, 3, 12, 0, 0, 0, time.UTC)

func quotaRecord(id string, savedAt int64, archived int) record {
	return record{
		ID:           id,
		URL:          "https://example.com/" + id,
		Title:        "Title " + id,
		SavedAt:      savedAt,
		ScheduledFor: savedAt + 1000,
		Archived:     archived,
	}
}

func newQuotaStore(t *testing.T, seed []record, warningBytes int) (*Store, *platformtest.Storage) {
	t.Helper()

	storage := platformtest.NewStorage()
	raw, err := marshalRecords(seed)
	require.NoError(t, err)
	storage.Put(Key, raw)

	store := New(
		storage,
		Limits{MaxBytes: 102400, WarningBytes: warningBytes, MaxTitleLength: 80},
		slog.Default(),
		WithClock(func() time.Time { return quotaNow }),
		WithIDGenerator(func() string { return "new" }),
	)

	return store, storage
}

func storedIDs(t *testing.T, storage *platformtest.Storage) []string {
	t.Helper()

	records, err := unmarshalRecords(storage.Raw(Key))
	require.NoError(t, err)

	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}

func newDraft(status domain.Status) domain.Draft {
	return domain.Draft{
		URL:          "https://example.com/new",
		Title:        "Title new",
		ScheduledFor: quotaNow.Add(time.Hour),
		Status:       status,
	}
}

func TestSaveEvictsOldestArchivedUntilUnderThreshold(t *testing.T) {
	seed := []record{
		quotaRecord("p1", 10, 0),
		quotaRecord("a1", 300, 1),
		quotaRecord("a2", 100, 1),
		quotaRecord("a3", 200, 1),
		quotaRecord("p2", 20, 0),
	}

	newRecord := encodeArticle(domain.Article{
		ID:           "new",
		URL:          "https://example.com/new",
		Title:        "Title new",
		SavedAt:      quotaNow,
		ScheduledFor: quotaNow.Add(time.Hour),
	}, 80)

	// Fits exactly once a2 and a3 are gone.
	threshold := encodedSize([]record{seed[0], seed[1], seed[4], newRecord})

	store, storage := newQuotaStore(t, seed, threshold)

	saved, err := store.Save(context.Background(), newDraft(domain.StatusPending))
	require.NoError(t, err)
	require.Equal(t, "new", saved.ID)

	require.Equal(t, []string{"p1", "a1", "p2", "new"}, storedIDs(t, storage))
	require.LessOrEqual(t, len(storage.Raw(Key)), threshold)
}

func TestSaveStopsAsSoonAsUnderThreshold(t *testing.T) {
	seed := []record{
		quotaRecord("a1", 300, 1),
		quotaRecord("a2", 100, 1),
		quotaRecord("a3", 200, 1),
	}

	full := append(append([]record(nil), seed...), encodeArticle(domain.Article{
		ID:           "new",
		URL:          "https://example.com/new",
		Title:        "Title new",
		SavedAt:      quotaNow,
		ScheduledFor: quotaNow.Add(time.Hour),
	}, 80))

	store, storage := newQuotaStore(t, seed, encodedSize(full)-1)

	_, err := store.Save(context.Background(), newDraft(domain.StatusPending))
	require.NoError(t, err)

	require.Equal(t, []string{"a1", "a3", "new"}, storedIDs(t, storage))
}

func TestSaveNeverEvictsPendingArticles(t *testing.T) {
	seed := []record{
		quotaRecord("p1", 10, 0),
		quotaRecord("a1", 300, 1),
		quotaRecord("p2", 20, 0),
		quotaRecord("a2", 100, 1),
	}

	store, storage := newQuotaStore(t, seed, 10)

	saved, err := store.Save(context.Background(), newDraft(domain.StatusPending))
	require.NoError(t, err)
	require.Equal(t, "new", saved.ID)

	require.Equal(t, []string{"p1", "p2", "new"}, storedIDs(t, storage))
	require.Greater(t, len(storage.Raw(Key)), 10)
}

func TestSaveNeverEvictsTheSavedArticle(t *testing.T) {
	seed := []record{
		quotaRecord("p1", 10, 0),
	}

	store, storage := newQuotaStore(t, seed, 10)

	saved, err := store.Save(context.Background(), newDraft(domain.StatusArchived))
	require.NoError(t, err)
	require.Equal(t, domain.StatusArchived, saved.Status)

	require.Equal(t, []string{"p1", "new"}, storedIDs(t, storage))
}

func TestSaveEvictionBreaksTiesByOriginalOrder(t *testing.T) {
	seed := []record{
		quotaRecord("b1", 100, 1),
		quotaRecord("b2", 100, 1),
	}

	full := append(append([]record(nil), seed...), encodeArticle(domain.Article{
		ID:           "new",
		URL:          "https://example.com/new",
		Title:        "Title new",
		SavedAt:      quotaNow,
		ScheduledFor: quotaNow.Add(time.Hour),
	}, 80))

	store, storage := newQuotaStore(t, seed, encodedSize(full)-1)

	_, err := store.Save(context.Background(), newDraft(domain.StatusPending))
	require.NoError(t, err)

	require.Equal(t, []string{"b2", "new"}, storedIDs(t, storage))
}

func TestSaveUnderThresholdKeepsEverything(t *testing.T) {
	seed := []record{
		quotaRecord("a1", 300, 1),
		quotaRecord("p1", 10, 0),
	}

	store, storage := newQuotaStore(t, seed, DefaultWarningBytes)

	_, err := store.Save(context.Background(), newDraft(domain.StatusPending))
	require.NoError(t, err)

	require.Equal(t, []string{"a1", "p1", "new"}, storedIDs(t, storage))
}
