// Package service runs the read-later workflow for every owner: saving links,
// rescheduling, listing and the alarm lifecycle.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"readlater/internal/alarm"
	"readlater/internal/articles"
	"readlater/internal/domain"
	"readlater/internal/pagetitle"
	"readlater/internal/platform"
	"readlater/internal/schedule"
	"readlater/internal/settings"
)

// Backend hands out per-owner platform services.
type Backend interface {
	Storage(ownerID int64, area string) platform.Storage
	Alarms(ownerID int64) platform.Alarms
	Owners(ctx context.Context) ([]int64, error)
}

// Messenger delivers a notification to an owner.
type Messenger interface {
	Notify(ctx context.Context, ownerID int64, n platform.Notification) error
}

type TitleResolver interface {
	Resolve(ctx context.Context, rawURL string) (string, error)
}

type Service struct {
	backend   Backend
	messenger Messenger
	titles    TitleResolver
	limits    articles.Limits
	loc       *time.Location
	now       func() time.Time
	newID     func() string
	log       *slog.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

type Option func(*Service)

// WithTitleResolver enables page title lookups for links saved without one.
func WithTitleResolver(titles TitleResolver) Option {
	return func(s *Service) { s.titles = titles }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func New(
	backend Backend,
	messenger Messenger,
	limits articles.Limits,
	loc *time.Location,
	log *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		backend:   backend,
		messenger: messenger,
		limits:    limits,
		loc:       loc,
		now:       time.Now,
		log:       log,
		locks:     make(map[int64]*sync.Mutex),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type SaveRequest struct {
	URL    string
	Title  string
	Preset schedule.Preset
	// Custom is the chosen moment for the Custom preset.
	Custom *time.Time
}

// owner is the set of components working on one owner's storage.
type owner struct {
	id       int64
	articles *articles.Store
	settings *settings.Store
	alarms   *alarm.Scheduler
}

func (s *Service) clock() time.Time {
	return s.now().In(s.loc)
}

func (s *Service) owner(ownerID int64) owner {
	log := s.log.With("ownerID", ownerID)

	opts := []articles.Option{articles.WithClock(s.clock)}
	if s.newID != nil {
		opts = append(opts, articles.WithIDGenerator(s.newID))
	}

	articleStore := articles.New(s.backend.Storage(ownerID, platform.AreaSync), s.limits, log, opts...)
	settingsStore := settings.New(s.backend.Storage(ownerID, platform.AreaSync))

	return owner{
		id:       ownerID,
		articles: articleStore,
		settings: settingsStore,
		alarms: alarm.New(
			s.backend.Storage(ownerID, platform.AreaLocal),
			s.backend.Alarms(ownerID),
			ownerNotifier{messenger: s.messenger, ownerID: ownerID},
			articleStore,
			settingsStore,
			log,
		),
	}
}

// lock serializes writes of one owner.
func (s *Service) lock(ownerID int64) func() {
	s.mu.Lock()
	l, ok := s.locks[ownerID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[ownerID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Install arms the daily reminder for a new owner.
func (s *Service) Install(ctx context.Context, ownerID int64) (time.Time, error) {
	defer s.lock(ownerID)()

	next, err := s.owner(ownerID).alarms.ScheduleDailyReminder(ctx, s.clock())
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule daily reminder: %w", err)
	}

	s.log.InfoContext(ctx, "Daily reminder is installed",
		"ownerID", ownerID,
		"scheduledAt", next)

	return next, nil
}

// Startup makes sure every known owner has a daily reminder.
func (s *Service) Startup(ctx context.Context) error {
	owners, err := s.backend.Owners(ctx)
	if err != nil {
		return fmt.Errorf("list owners: %w", err)
	}

	var (
		errs      []error
		installed int
	)

	for _, ownerID := range owners {
		ok, ensureErr := s.ensureReminder(ctx, ownerID)
		if ensureErr != nil {
			errs = append(errs, fmt.Errorf("ensure reminder for %d: %w", ownerID, ensureErr))
			continue
		}
		if ok {
			installed++
		}
	}

	s.log.InfoContext(ctx, "Startup checks are done",
		"ownersCount", len(owners),
		"installedCount", installed,
		"errorsCount", len(errs))

	return errors.Join(errs...)
}

func (s *Service) ensureReminder(ctx context.Context, ownerID int64) (bool, error) {
	defer s.lock(ownerID)()

	return s.owner(ownerID).alarms.EnsureDailyReminder(ctx, s.clock())
}

// SaveLink stores a link as pending and arms its wake-up alarm. A missing
// title is looked up or derived from the URL.
func (s *Service) SaveLink(ctx context.Context, ownerID int64, req SaveRequest) (domain.Article, error) {
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		return domain.Article{}, errors.New("url is empty")
	}

	title := s.title(ctx, req.URL, req.Title)
	scheduledFor := schedule.Calculate(req.Preset, s.clock(), req.Custom)

	defer s.lock(ownerID)()

	o := s.owner(ownerID)

	article, err := o.articles.Save(ctx, domain.Draft{
		URL:          req.URL,
		Title:        title,
		ScheduledFor: scheduledFor,
		Status:       domain.StatusPending,
	})
	if err != nil {
		return domain.Article{}, err
	}

	if err = o.alarms.ScheduleArticleWake(ctx, article.ID, article.ScheduledFor, title, article.URL); err != nil {
		return article, fmt.Errorf("schedule article wake: %w", err)
	}

	return article, nil
}

func (s *Service) title(ctx context.Context, rawURL, given string) string {
	if title := strings.TrimSpace(given); title != "" {
		return title
	}

	if s.titles != nil {
		title, err := s.titles.Resolve(ctx, rawURL)
		if err != nil {
			s.log.WarnContext(ctx, "Failed to resolve page title so URL is used",
				"error", err,
				"url", rawURL)
		} else if title != "" {
			return title
		}
	}

	return pagetitle.FromURL(rawURL)
}

// Reschedule moves a saved article to a new time. It reports false when the
// article does not exist.
func (s *Service) Reschedule(
	ctx context.Context,
	ownerID int64,
	articleID string,
	preset schedule.Preset,
	custom *time.Time,
) (domain.Article, bool, error) {
	defer s.lock(ownerID)()

	o := s.owner(ownerID)

	current, ok, err := o.articles.Get(ctx, articleID)
	if err != nil || !ok {
		return domain.Article{}, ok, err
	}

	article, err := o.articles.Save(ctx, domain.Draft{
		ID:           current.ID,
		URL:          current.URL,
		Title:        current.Title,
		SavedAt:      current.SavedAt,
		ScheduledFor: schedule.Calculate(preset, s.clock(), custom),
		Status:       domain.StatusPending,
	})
	if err != nil {
		return domain.Article{}, true, err
	}

	if err = o.alarms.ScheduleArticleWake(ctx, article.ID, article.ScheduledFor, article.Title, article.URL); err != nil {
		return article, true, fmt.Errorf("schedule article wake: %w", err)
	}

	return article, true, nil
}

func (s *Service) Article(ctx context.Context, ownerID int64, articleID string) (domain.Article, bool, error) {
	return s.owner(ownerID).articles.Get(ctx, articleID)
}

func (s *Service) Today(ctx context.Context, ownerID int64) ([]domain.Article, error) {
	return s.owner(ownerID).articles.GetToday(ctx)
}

func (s *Service) Pending(ctx context.Context, ownerID int64) ([]domain.Article, error) {
	return s.owner(ownerID).articles.GetPending(ctx)
}

func (s *Service) Archived(ctx context.Context, ownerID int64) ([]domain.Article, error) {
	return s.owner(ownerID).articles.GetArchived(ctx)
}

// TodayCount is the number of articles due today.
func (s *Service) TodayCount(ctx context.Context, ownerID int64) (int, error) {
	today, err := s.Today(ctx, ownerID)
	if err != nil {
		return 0, err
	}

	return len(today), nil
}

func (s *Service) Archive(ctx context.Context, ownerID int64, articleID string) (bool, error) {
	defer s.lock(ownerID)()

	return s.owner(ownerID).articles.Archive(ctx, articleID)
}

func (s *Service) Unarchive(ctx context.Context, ownerID int64, articleID string) (bool, error) {
	defer s.lock(ownerID)()

	return s.owner(ownerID).articles.Unarchive(ctx, articleID)
}

// Delete removes an article and its pending wake-up. Failing to cancel the
// wake-up is logged only.
func (s *Service) Delete(ctx context.Context, ownerID int64, articleID string) (bool, error) {
	defer s.lock(ownerID)()

	o := s.owner(ownerID)

	deleted, err := o.articles.Delete(ctx, articleID)
	if err != nil || !deleted {
		return deleted, err
	}

	s.cancelWake(ctx, o, articleID)

	return true, nil
}

// DeleteArchived removes every archived article and returns how many were
// removed.
func (s *Service) DeleteArchived(ctx context.Context, ownerID int64) (int, error) {
	defer s.lock(ownerID)()

	o := s.owner(ownerID)

	archived, err := o.articles.GetArchived(ctx)
	if err != nil {
		return 0, err
	}

	if len(archived) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(archived))
	for _, a := range archived {
		ids = append(ids, a.ID)
	}

	deleted, err := o.articles.DeleteMany(ctx, ids)
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		s.cancelWake(ctx, o, id)
	}

	return deleted, nil
}

func (s *Service) cancelWake(ctx context.Context, o owner, articleID string) {
	if err := o.alarms.CancelArticleWake(ctx, articleID); err != nil {
		s.log.WarnContext(ctx, "Failed to cancel article wake",
			"error", err,
			"ownerID", o.id,
			"articleID", articleID)
	}
}

func (s *Service) Usage(ctx context.Context, ownerID int64) (domain.Usage, error) {
	return s.owner(ownerID).articles.Usage(ctx)
}

func (s *Service) Settings(ctx context.Context, ownerID int64) (domain.Settings, error) {
	return s.owner(ownerID).settings.Get(ctx)
}

// UpdateSettings merges patch into the owner's settings and re-arms the daily
// reminder so a new notify time takes effect immediately.
func (s *Service) UpdateSettings(
	ctx context.Context,
	ownerID int64,
	patch domain.SettingsPatch,
) (domain.Settings, error) {
	if patch.NotifyTime != nil {
		candidate := domain.Settings{NotifyTime: strings.TrimSpace(*patch.NotifyTime)}
		if _, _, err := candidate.Clock(); err != nil {
			return domain.Settings{}, err
		}
		patch.NotifyTime = &candidate.NotifyTime
	}

	defer s.lock(ownerID)()

	o := s.owner(ownerID)

	updated, err := o.settings.Set(ctx, patch)
	if err != nil {
		return domain.Settings{}, err
	}

	if patch.Empty() {
		return updated, nil
	}

	if _, err = o.alarms.ScheduleDailyReminder(ctx, s.clock()); err != nil {
		return updated, fmt.Errorf("reschedule daily reminder: %w", err)
	}

	return updated, nil
}

// HandleAlarm dispatches a fired alarm of ownerID.
func (s *Service) HandleAlarm(ctx context.Context, ownerID int64, name string) error {
	defer s.lock(ownerID)()

	return s.owner(ownerID).alarms.HandleAlarm(ctx, name, s.clock())
}

type ownerNotifier struct {
	messenger Messenger
	ownerID   int64
}

func (n ownerNotifier) Notify(ctx context.Context, notification platform.Notification) error {
	return n.messenger.Notify(ctx, n.ownerID, notification)
}
