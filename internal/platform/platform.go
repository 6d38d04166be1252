// Package platform describes the host services the read-later core depends
// on: a namespaced key/value store with revisions, named one-shot alarms and
// a notification sink.
package platform

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// AreaSync holds the article collection and settings. Its footprint is
	// what the storage quota is measured against.
	AreaSync = "sync"
	// AreaLocal holds transient bookkeeping such as alarm records.
	AreaLocal = "local"
)

const maxUpdateAttempts = 5

var ErrConflict = errors.New("revision conflict")

// Item is a stored value. A missing key is the zero Item.
type Item struct {
	Value    []byte
	Revision int64
}

func (i Item) Exists() bool {
	return i.Revision > 0
}

type Storage interface {
	Get(ctx context.Context, key string) (Item, error)
	// Set writes value only if the key is still at revision. Revision 0
	// means the key must not exist yet. A mismatch returns ErrConflict.
	Set(ctx context.Context, key string, value []byte, revision int64) error
	Snapshot(ctx context.Context) (map[string][]byte, error)
}

type Alarm struct {
	Name        string
	ScheduledAt time.Time
}

type Alarms interface {
	// Create installs a one-shot alarm, replacing any alarm with the same name.
	Create(ctx context.Context, name string, when time.Time) error
	Get(ctx context.Context, name string) (Alarm, bool, error)
	Clear(ctx context.Context, name string) (bool, error)
}

type NotificationKind int

const (
	NotificationArticle NotificationKind = iota
	NotificationSummary
)

func (k NotificationKind) String() string {
	if k == NotificationSummary {
		return "summary"
	}
	return "article"
}

type Notification struct {
	ID        string
	Kind      NotificationKind
	Title     string
	Message   string
	URL       string
	ArticleID string
	Count     int
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Update runs a read-modify-write cycle on key, retrying fn when another
// writer committed in between. A nil result from fn leaves the key untouched.
func Update(
	ctx context.Context,
	storage Storage,
	key string,
	fn func(current []byte) ([]byte, error),
) error {
	for range maxUpdateAttempts {
		item, err := storage.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}

		next, err := fn(item.Value)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}

		err = storage.Set(ctx, key, next, item.Revision)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConflict) {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}

	return fmt.Errorf("update %s: %w after %d attempts", key, ErrConflict, maxUpdateAttempts)
}
