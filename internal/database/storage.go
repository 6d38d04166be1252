package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"readlater/internal/platform"
)

// Storage is one owner's key/value area.
type Storage struct {
	d       *Database
	ownerID int64
	area    string
}

func (d *Database) Storage(ownerID int64, area string) platform.Storage {
	return &Storage{d: d, ownerID: ownerID, area: area}
}

func (s *Storage) Get(ctx context.Context, key string) (platform.Item, error) {
	query := `select value, revision
	from storage_items
	where owner_id = ? and area = ? and key = ?`

	var item platform.Item

	err := s.d.db.QueryRowContext(ctx, query, s.ownerID, s.area, key).Scan(&item.Value, &item.Revision)
	if errors.Is(err, sql.ErrNoRows) {
		return platform.Item{}, nil
	}
	if err != nil {
		return platform.Item{}, fmt.Errorf("failed to scan row: %w", err)
	}

	return item, nil
}

func (s *Storage) Set(ctx context.Context, key string, value []byte, revision int64) error {
	now := time.Now().UnixMilli()

	var (
		result sql.Result
		err    error
	)

	if revision == 0 {
		query := `insert into storage_items (owner_id, area, key, value, revision, updated_at)
		values (?, ?, ?, ?, 1, ?)
		on conflict (owner_id, area, key) do nothing`

		result, err = s.d.db.ExecContext(ctx, query, s.ownerID, s.area, key, value, now)
	} else {
		query := `update storage_items
		set value = ?, revision = revision + 1, updated_at = ?
		where owner_id = ? and area = ? and key = ? and revision = ?`

		result, err = s.d.db.ExecContext(ctx, query, value, now, s.ownerID, s.area, key, revision)
	}

	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return platform.ErrConflict
	}

	return nil
}

func (s *Storage) Snapshot(ctx context.Context) (map[string][]byte, error) {
	query := `select key, value
	from storage_items
	where owner_id = ? and area = ?`

	rows, err := s.d.db.QueryContext(ctx, query, s.ownerID, s.area)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			s.d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"ownerID", s.ownerID,
				"area", s.area,
				"operation", "Snapshot")
		}
	}()

	snapshot := make(map[string][]byte)
	for rows.Next() {
		var (
			key   string
			value []byte
		)
		if err = rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		snapshot[key] = value
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return snapshot, nil
}

// Owners lists every owner that has stored anything or has a pending alarm.
func (d *Database) Owners(ctx context.Context) ([]int64, error) {
	query := `select owner_id from storage_items
	union
	select owner_id from alarms
	order by owner_id`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"operation", "Owners")
		}
	}()

	var owners []int64
	for rows.Next() {
		var ownerID int64
		if err = rows.Scan(&ownerID); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		owners = append(owners, ownerID)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return owners, nil
}
