// Package articles owns the persisted read-later collection: lookups,
// dedup-on-save and the quota-driven eviction of archived articles.
package articles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"readlater/internal/domain"
	"readlater/internal/platform"
	"readlater/internal/schedule"
)

const Key = "articles"

const (
	DefaultMaxBytes       = 102400
	DefaultWarningBytes   = 80000
	DefaultMaxTitleLength = 80
)

// Limits bound the serialized size of the collection. WarningBytes is the
// soft limit eviction aims for.
type Limits struct {
	MaxBytes       int
	WarningBytes   int
	MaxTitleLength int
}

func DefaultLimits() Limits {
	return Limits{
		MaxBytes:       DefaultMaxBytes,
		WarningBytes:   DefaultWarningBytes,
		MaxTitleLength: DefaultMaxTitleLength,
	}
}

type Store struct {
	storage platform.Storage
	limits  Limits
	now     func() time.Time
	newID   func() string
	log     *slog.Logger
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

func New(storage platform.Storage, limits Limits, log *slog.Logger, opts ...Option) *Store {
	s := &Store{
		storage: storage,
		limits:  limits,
		now:     time.Now,
		newID:   uuid.NewString,
		log:     log,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Store) GetAll(ctx context.Context) ([]domain.Article, error) {
	item, err := s.storage.Get(ctx, Key)
	if err != nil {
		return nil, fmt.Errorf("get articles: %w", err)
	}

	records, err := unmarshalRecords(item.Value)
	if err != nil {
		return nil, err
	}

	loc := s.now().Location()
	articles := make([]domain.Article, 0, len(records))
	for _, r := range records {
		articles = append(articles, decodeArticle(r, loc))
	}

	return articles, nil
}

// GetToday returns pending articles due by the end of the current local day.
func (s *Store) GetToday(ctx context.Context) ([]domain.Article, error) {
	endOfToday := schedule.EndOfDay(s.now())

	return s.filter(ctx, func(a domain.Article) bool {
		return a.Status == domain.StatusPending && !a.ScheduledFor.After(endOfToday)
	})
}

func (s *Store) GetPending(ctx context.Context) ([]domain.Article, error) {
	return s.filter(ctx, func(a domain.Article) bool {
		return a.Status == domain.StatusPending
	})
}

func (s *Store) GetArchived(ctx context.Context) ([]domain.Article, error) {
	return s.filter(ctx, func(a domain.Article) bool {
		return a.Status == domain.StatusArchived
	})
}

func (s *Store) Get(ctx context.Context, id string) (domain.Article, bool, error) {
	articles, err := s.GetAll(ctx)
	if err != nil {
		return domain.Article{}, false, err
	}

	i := slices.IndexFunc(articles, func(a domain.Article) bool { return a.ID == id })
	if i < 0 {
		return domain.Article{}, false, nil
	}

	return articles[i], true, nil
}

// Save inserts draft or, when an article with the same URL exists, updates
// it in place. Quota enforcement runs before the write is committed and never
// evicts the saved article itself.
func (s *Store) Save(ctx context.Context, draft domain.Draft) (domain.Article, error) {
	draft.URL = strings.TrimSpace(draft.URL)
	if draft.URL == "" {
		return domain.Article{}, errors.New("article URL is empty")
	}

	var saved record
	var evicted int

	err := platform.Update(ctx, s.storage, Key, func(current []byte) ([]byte, error) {
		records, err := unmarshalRecords(current)
		if err != nil {
			return nil, err
		}

		records, saved = s.upsert(records, draft)
		records, evicted = s.trim(records, saved.ID)

		return marshalRecords(records)
	})
	if err != nil {
		return domain.Article{}, fmt.Errorf("save article: %w", err)
	}

	if evicted > 0 {
		s.log.InfoContext(ctx, "Archived articles are evicted to fit the quota",
			"evicted", evicted,
			"warningBytes", s.limits.WarningBytes,
			"articleID", saved.ID)
	}

	return decodeArticle(saved, s.now().Location()), nil
}

func (s *Store) upsert(records []record, draft domain.Draft) ([]record, record) {
	i := slices.IndexFunc(records, func(r record) bool { return r.URL == draft.URL })

	article := domain.Article{
		ID:           draft.ID,
		URL:          draft.URL,
		Title:        draft.Title,
		SavedAt:      draft.SavedAt,
		ScheduledFor: draft.ScheduledFor,
		Status:       draft.Status,
	}

	if i >= 0 {
		if article.ID == "" {
			article.ID = records[i].ID
		}
		if article.SavedAt.IsZero() {
			article.SavedAt = time.UnixMilli(records[i].SavedAt)
		}

		records[i] = encodeArticle(article, s.limits.MaxTitleLength)

		return records, records[i]
	}

	if article.ID == "" {
		article.ID = s.newID()
	}
	if article.SavedAt.IsZero() {
		article.SavedAt = s.now()
	}

	r := encodeArticle(article, s.limits.MaxTitleLength)

	return append(records, r), r
}

func (s *Store) Archive(ctx context.Context, id string) (bool, error) {
	return s.setStatus(ctx, id, domain.StatusArchived)
}

func (s *Store) Unarchive(ctx context.Context, id string) (bool, error) {
	return s.setStatus(ctx, id, domain.StatusPending)
}

func (s *Store) setStatus(ctx context.Context, id string, status domain.Status) (bool, error) {
	archived := 0
	if status == domain.StatusArchived {
		archived = 1
	}

	found := false

	err := platform.Update(ctx, s.storage, Key, func(current []byte) ([]byte, error) {
		records, err := unmarshalRecords(current)
		if err != nil {
			return nil, err
		}

		i := slices.IndexFunc(records, func(r record) bool { return r.ID == id })
		found = i >= 0
		if !found {
			return nil, nil
		}

		records[i].Archived = archived

		return marshalRecords(records)
	})
	if err != nil {
		return false, fmt.Errorf("set article status: %w", err)
	}

	return found, nil
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	n, err := s.DeleteMany(ctx, []string{id})
	return n > 0, err
}

// DeleteMany removes every listed article in a single write and reports how
// many existed.
func (s *Store) DeleteMany(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	removed := 0

	err := platform.Update(ctx, s.storage, Key, func(current []byte) ([]byte, error) {
		records, err := unmarshalRecords(current)
		if err != nil {
			return nil, err
		}

		before := len(records)
		records = slices.DeleteFunc(records, func(r record) bool {
			return slices.Contains(ids, r.ID)
		})

		removed = before - len(records)
		if removed == 0 {
			return nil, nil
		}

		return marshalRecords(records)
	})
	if err != nil {
		return 0, fmt.Errorf("delete articles: %w", err)
	}

	return removed, nil
}

func (s *Store) filter(
	ctx context.Context,
	keep func(domain.Article) bool,
) ([]domain.Article, error) {
	articles, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	return slices.DeleteFunc(articles, func(a domain.Article) bool { return !keep(a) }), nil
}
