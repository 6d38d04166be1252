package articles

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"readlater/internal/domain"
)

func TestMarshalRecordsMatchesStoredLayout(t *testing.T) {
	raw, err := marshalRecords([]record{{
		ID:           "1704250800000-abc123def",
		URL:          "https://example.com/?a=1&b=<2>",
		Title:        "Tom & Jerry <3",
		SavedAt:      1704250800000,
		ScheduledFor: 1704279600000,
		Archived:     1,
	}})
	require.NoError(t, err)

	want := `[{"i":"1704250800000-abc123def","u":"https://example.com/?a=1&b=<2>",` +
		`"t":"Tom & Jerry <3","s":1704250800000,"f":1704279600000,"a":1}]`
	require.Equal(t, want, string(raw))
}

func TestMarshalRecordsEmptyIsArray(t *testing.T) {
	raw, err := marshalRecords(nil)
	require.NoError(t, err)
	require.Equal(t, "[]", string(raw))
}

func TestUnmarshalRecordsTreatsUnknownStatusAsPending(t *testing.T) {
	records, err := unmarshalRecords([]byte(`[{"i":"x","u":"https://x","t":"X","s":1,"f":2}]`))
	require.NoError(t, err)
	require.Len(t, records, 1)

	article := decodeArticle(records[0], time.UTC)
	require.Equal(t, domain.StatusPending, article.Status)
	require.Equal(t, int64(2), article.ScheduledFor.UnixMilli())
}

func TestTruncateTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		limit int
		want  string
	}{
		{"Short title is kept", "Hello", 80, "Hello"},
		{"ASCII is cut at limit", strings.Repeat("a", 100), 80, strings.Repeat("a", 80)},
		{"Multibyte counts as one unit", strings.Repeat("記", 90), 80, strings.Repeat("記", 80)},
		{"Surrogate pair is not split", "ab😀", 3, "ab"},
		{"Surrogate pair fits", "ab😀", 4, "ab😀"},
		{"Zero limit disables truncation", "abc", 0, "abc"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.want, truncateTitle(test.title, test.limit))
		})
	}
}
