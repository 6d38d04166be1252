package articles

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"

	jsoniter "github.com/json-iterator/go"

	"readlater/internal/domain"
)

// trim evicts archived records, oldest savedAt first, until the serialized
// collection fits WarningBytes. Pending records and keepID are never
// evicted, so the result may still be over the limit.
func (s *Store) trim(records []record, keepID string) ([]record, int) {
	size := encodedSize(records)
	if size <= s.limits.WarningBytes {
		return records, 0
	}

	var candidates []record
	for _, r := range records {
		if r.Archived == 1 && r.ID != keepID {
			candidates = append(candidates, r)
		}
	}

	slices.SortStableFunc(candidates, func(a, b record) int {
		return cmp.Compare(a.SavedAt, b.SavedAt)
	})

	evicted := 0
	for _, oldest := range candidates {
		if size <= s.limits.WarningBytes {
			break
		}

		i := slices.IndexFunc(records, func(r record) bool { return r.ID == oldest.ID })
		if i < 0 {
			continue
		}

		records = slices.Delete(records, i, i+1)
		size = encodedSize(records)
		evicted++
	}

	return records, evicted
}

func encodedSize(records []record) int {
	raw, err := marshalRecords(records)
	if err != nil {
		return math.MaxInt
	}
	return len(raw)
}

// Usage measures every key of the store, not just the articles.
func (s *Store) Usage(ctx context.Context) (domain.Usage, error) {
	snapshot, err := s.storage.Snapshot(ctx)
	if err != nil {
		return domain.Usage{}, fmt.Errorf("snapshot storage: %w", err)
	}

	used, err := snapshotSize(snapshot)
	if err != nil {
		return domain.Usage{}, err
	}

	total := s.limits.MaxBytes
	percentage := 0
	if total > 0 {
		percentage = int(math.Round(float64(used) / float64(total) * 100))
	}

	return domain.Usage{
		UsedBytes:  used,
		TotalBytes: total,
		Percentage: percentage,
	}, nil
}

func snapshotSize(snapshot map[string][]byte) (int, error) {
	values := make(map[string]jsoniter.RawMessage, len(snapshot))
	for k, v := range snapshot {
		values[k] = jsoniter.RawMessage(v)
	}

	raw, err := storageJSON.Marshal(values)
	if err != nil {
		return 0, fmt.Errorf("marshal snapshot: %w", err)
	}

	return len(raw), nil
}
