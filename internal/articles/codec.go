package articles

import (
	"fmt"
	"time"
	"unicode/utf16"

	jsoniter "github.com/json-iterator/go"

	"readlater/internal/domain"
)

// storageJSON writes what JSON.stringify writes: no HTML escaping, sorted map
// keys, struct fields in declaration order.
//
//nolint:gochecknoglobals // Frozen config meant to be immutable.
var storageJSON = jsoniter.Config{
	EscapeHTML:  false,
	SortMapKeys: true,
}.Froze()

type record struct {
	ID           string `json:"i"`
	URL          string `json:"u"`
	Title        string `json:"t"`
	SavedAt      int64  `json:"s"`
	ScheduledFor int64  `json:"f"`
	Archived     int    `json:"a"`
}

func encodeArticle(a domain.Article, maxTitleLength int) record {
	archived := 0
	if a.Status == domain.StatusArchived {
		archived = 1
	}

	return record{
		ID:           a.ID,
		URL:          a.URL,
		Title:        truncateTitle(a.Title, maxTitleLength),
		SavedAt:      a.SavedAt.UnixMilli(),
		ScheduledFor: a.ScheduledFor.UnixMilli(),
		Archived:     archived,
	}
}

func decodeArticle(r record, loc *time.Location) domain.Article {
	status := domain.StatusPending
	if r.Archived == 1 {
		status = domain.StatusArchived
	}

	return domain.Article{
		ID:           r.ID,
		URL:          r.URL,
		Title:        r.Title,
		SavedAt:      time.UnixMilli(r.SavedAt).In(loc),
		ScheduledFor: time.UnixMilli(r.ScheduledFor).In(loc),
		Status:       status,
	}
}

func unmarshalRecords(raw []byte) ([]record, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var records []record
	if err := storageJSON.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("unmarshal articles: %w", err)
	}

	return records, nil
}

func marshalRecords(records []record) ([]byte, error) {
	if records == nil {
		records = []record{}
	}

	raw, err := storageJSON.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("marshal articles: %w", err)
	}

	return raw, nil
}

// truncateTitle keeps at most limit UTF-16 code units, dropping a surrogate
// pair rather than splitting it.
func truncateTitle(title string, limit int) string {
	if limit <= 0 {
		return title
	}

	units := 0
	for i, r := range title {
		width := utf16.RuneLen(r)
		if width < 0 {
			width = 1
		}

		if units+width > limit {
			return title[:i]
		}
		units += width
	}

	return title
}
