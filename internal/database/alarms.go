package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"readlater/internal/platform"
)

type Alarms struct {
	d       *Database
	ownerID int64
}

type DueAlarm struct {
	OwnerID     int64
	Name        string
	ScheduledAt time.Time
}

func (d *Database) Alarms(ownerID int64) platform.Alarms {
	return &Alarms{d: d, ownerID: ownerID}
}

func (a *Alarms) Create(ctx context.Context, name string, when time.Time) error {
	query := `insert into alarms (owner_id, name, scheduled_at)
	values (?, ?, ?)
	on conflict (owner_id, name) do update
	set scheduled_at = excluded.scheduled_at`

	if _, err := a.d.db.ExecContext(ctx, query, a.ownerID, name, when.UnixMilli()); err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}

	return nil
}

func (a *Alarms) Get(ctx context.Context, name string) (platform.Alarm, bool, error) {
	query := `select scheduled_at
	from alarms
	where owner_id = ? and name = ?`

	var scheduledAt int64

	err := a.d.db.QueryRowContext(ctx, query, a.ownerID, name).Scan(&scheduledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return platform.Alarm{}, false, nil
	}
	if err != nil {
		return platform.Alarm{}, false, fmt.Errorf("failed to scan row: %w", err)
	}

	return platform.Alarm{Name: name, ScheduledAt: time.UnixMilli(scheduledAt)}, true, nil
}

func (a *Alarms) Clear(ctx context.Context, name string) (bool, error) {
	query := "delete from alarms where owner_id = ? and name = ?"

	result, err := a.d.db.ExecContext(ctx, query, a.ownerID, name)
	if err != nil {
		return false, fmt.Errorf("failed to execute query: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected > 0, nil
}

// PopDueAlarms removes and returns every alarm scheduled at or before now,
// oldest first. Each alarm is returned exactly once.
func (d *Database) PopDueAlarms(ctx context.Context, now time.Time) (due []DueAlarm, err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				err = errors.Join(err, fmt.Errorf("failed to rollback tx: %w", rollbackErr))
			}
		}
	}()

	query := `select owner_id, name, scheduled_at
	from alarms
	where scheduled_at <= ?
	order by scheduled_at, owner_id, name`

	due, err = scanDueAlarms(ctx, tx, query, now.UnixMilli())
	if err != nil {
		return nil, err
	}

	for _, alarm := range due {
		if _, err = tx.ExecContext(ctx,
			"delete from alarms where owner_id = ? and name = ? and scheduled_at = ?",
			alarm.OwnerID, alarm.Name, alarm.ScheduledAt.UnixMilli(),
		); err != nil {
			return nil, fmt.Errorf("failed to execute query: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit tx: %w", err)
	}

	return due, nil
}

// RestoreAlarms puts popped alarms back. An alarm that was re-armed in the
// meantime keeps its newer schedule.
func (d *Database) RestoreAlarms(ctx context.Context, alarms []DueAlarm) (err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				err = errors.Join(err, fmt.Errorf("failed to rollback tx: %w", rollbackErr))
			}
		}
	}()

	query := `insert into alarms (owner_id, name, scheduled_at)
	values (?, ?, ?)
	on conflict (owner_id, name) do nothing`

	for _, alarm := range alarms {
		if _, err = tx.ExecContext(ctx, query,
			alarm.OwnerID, alarm.Name, alarm.ScheduledAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}

	return nil
}

func scanDueAlarms(ctx context.Context, tx *sql.Tx, query string, nowMillis int64) ([]DueAlarm, error) {
	rows, err := tx.QueryContext(ctx, query, nowMillis)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var due []DueAlarm
	for rows.Next() {
		var (
			alarm       DueAlarm
			scheduledAt int64
		)
		if err = rows.Scan(&alarm.OwnerID, &alarm.Name, &scheduledAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		alarm.ScheduledAt = time.UnixMilli(scheduledAt)
		due = append(due, alarm)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return due, nil
}
