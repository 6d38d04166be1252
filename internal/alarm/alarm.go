// Package alarm bridges saved articles and the daily reminder to platform
// alarms, and turns alarm firings into notifications.
package alarm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"readlater/internal/domain"
	"readlater/internal/platform"
	"readlater/internal/schedule"
)

const (
	DailyReminderName = "daily-reminder"
	RecordsKey        = "articleAlarms"

	// NotifyRetryDelay is how long a rejected article notification waits
	// before the next attempt.
	NotifyRetryDelay = time.Minute

	articlePrefix = "article-"
	rearmTimeout  = 10 * time.Second

	articleMessage  = "Time to read!"
	untitledArticle = "Untitled"
	summaryTitle    = "You have articles to read today"
)

//nolint:gochecknoglobals // Frozen config meant to be immutable.
var recordsJSON = jsoniter.Config{EscapeHTML: false, SortMapKeys: true}.Froze()

type TodayLister interface {
	GetToday(ctx context.Context) ([]domain.Article, error)
}

type SettingsReader interface {
	Get(ctx context.Context) (domain.Settings, error)
}

type Scheduler struct {
	records  platform.Storage
	alarms   platform.Alarms
	notifier platform.Notifier
	articles TodayLister
	settings SettingsReader
	log      *slog.Logger
}

func New(
	records platform.Storage,
	alarms platform.Alarms,
	notifier platform.Notifier,
	articles TodayLister,
	settings SettingsReader,
	log *slog.Logger,
) *Scheduler {
	return &Scheduler{
		records:  records,
		alarms:   alarms,
		notifier: notifier,
		articles: articles,
		settings: settings,
		log:      log,
	}
}

func ArticleKey(articleID string) string {
	return articlePrefix + articleID
}

func IsArticleKey(name string) bool {
	return strings.HasPrefix(name, articlePrefix)
}

// ScheduleArticleWake remembers what to show and arms an alarm at
// scheduledFor. A moment in the past fires on the next dispatch.
func (s *Scheduler) ScheduleArticleWake(
	ctx context.Context,
	articleID string,
	scheduledFor time.Time,
	title string,
	url string,
) error {
	key := ArticleKey(articleID)

	if err := s.updateRecords(ctx, func(records map[string]domain.AlarmRecord) bool {
		records[key] = domain.AlarmRecord{Title: title, URL: url, ArticleID: articleID}
		return true
	}); err != nil {
		return fmt.Errorf("store alarm record: %w", err)
	}

	if err := s.alarms.Create(ctx, key, scheduledFor); err != nil {
		return fmt.Errorf("create alarm: %w", err)
	}

	s.log.InfoContext(ctx, "Article alarm is scheduled",
		"alarm", key,
		"scheduledFor", scheduledFor)

	return nil
}

// CancelArticleWake clears the alarm and its record. Missing pieces are not
// an error.
func (s *Scheduler) CancelArticleWake(ctx context.Context, articleID string) error {
	key := ArticleKey(articleID)

	var errs []error

	if _, err := s.alarms.Clear(ctx, key); err != nil {
		errs = append(errs, fmt.Errorf("clear alarm: %w", err))
	}

	if _, err := s.takeRecord(ctx, key); err != nil {
		errs = append(errs, fmt.Errorf("take alarm record: %w", err))
	}

	return errors.Join(errs...)
}

// OnArticleAlarmFired emits the notification recorded for key and then
// consumes the record. It reports false when the record is already gone.
// A rejected notification keeps the record and re-arms the alarm for a retry.
func (s *Scheduler) OnArticleAlarmFired(ctx context.Context, key string, now time.Time) (bool, error) {
	record, err := s.peekRecord(ctx, key)
	if err != nil {
		return false, fmt.Errorf("peek alarm record: %w", err)
	}

	if record == nil {
		s.log.InfoContext(ctx, "Alarm record is missing, skipping notification",
			"alarm", key)

		return false, nil
	}

	title := strings.TrimSpace(record.Title)
	if title == "" {
		title = untitledArticle
	}

	if err = s.notifier.Notify(ctx, platform.Notification{
		ID:        key,
		Kind:      platform.NotificationArticle,
		Title:     title,
		Message:   articleMessage,
		URL:       record.URL,
		ArticleID: record.ArticleID,
	}); err != nil {
		return true, errors.Join(fmt.Errorf("notify: %w", err), s.retryLater(ctx, key, now))
	}

	if _, err = s.takeRecord(ctx, key); err != nil {
		return true, fmt.Errorf("take alarm record: %w", err)
	}

	return true, nil
}

// retryLater re-arms key even when ctx is already done, so a cancelled
// dispatch does not lose the wake-up.
func (s *Scheduler) retryLater(ctx context.Context, key string, now time.Time) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rearmTimeout)
	defer cancel()

	retryAt := now.Add(NotifyRetryDelay)

	if err := s.alarms.Create(ctx, key, retryAt); err != nil {
		return fmt.Errorf("re-arm alarm: %w", err)
	}

	s.log.WarnContext(ctx, "Notification is rejected, alarm is re-armed",
		"alarm", key,
		"retryAt", retryAt)

	return nil
}

// ScheduleDailyReminder (re)installs the reminder at the next occurrence of
// the configured notify time.
func (s *Scheduler) ScheduleDailyReminder(ctx context.Context, now time.Time) (time.Time, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("get settings: %w", err)
	}

	hour, minute, err := settings.Clock()
	if err != nil {
		s.log.WarnContext(ctx, "Invalid notify time so default is used",
			"error", err,
			"notifyTime", settings.NotifyTime,
			"default", domain.DefaultNotifyTime)

		hour, minute, _ = domain.DefaultSettings().Clock()
	}

	next := schedule.NextDailyAt(now, hour, minute)

	if err = s.alarms.Create(ctx, DailyReminderName, next); err != nil {
		return time.Time{}, fmt.Errorf("create alarm: %w", err)
	}

	return next, nil
}

// EnsureDailyReminder installs the reminder only when it is missing.
func (s *Scheduler) EnsureDailyReminder(ctx context.Context, now time.Time) (bool, error) {
	_, ok, err := s.alarms.Get(ctx, DailyReminderName)
	if err != nil {
		return false, fmt.Errorf("get alarm: %w", err)
	}
	if ok {
		return false, nil
	}

	if _, err = s.ScheduleDailyReminder(ctx, now); err != nil {
		return false, err
	}

	return true, nil
}

// OnDailyReminderFired sends the summary when there is something due and
// always re-arms the next day's reminder.
func (s *Scheduler) OnDailyReminderFired(ctx context.Context, now time.Time) error {
	var errs []error

	if err := s.notifyToday(ctx); err != nil {
		errs = append(errs, err)
	}

	if _, err := s.ScheduleDailyReminder(ctx, now); err != nil {
		errs = append(errs, fmt.Errorf("reschedule daily reminder: %w", err))
	}

	return errors.Join(errs...)
}

func (s *Scheduler) notifyToday(ctx context.Context) error {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("get settings: %w", err)
	}

	if !settings.NotifyEnabled {
		return nil
	}

	today, err := s.articles.GetToday(ctx)
	if err != nil {
		return fmt.Errorf("get today articles: %w", err)
	}

	if len(today) == 0 {
		return nil
	}

	if err = s.notifier.Notify(ctx, platform.Notification{
		ID:      DailyReminderName,
		Kind:    platform.NotificationSummary,
		Title:   summaryTitle,
		Message: waitingMessage(len(today)),
		Count:   len(today),
	}); err != nil {
		return fmt.Errorf("notify: %w", err)
	}

	return nil
}

func waitingMessage(count int) string {
	if count == 1 {
		return "1 article is waiting"
	}
	return fmt.Sprintf("%d articles are waiting", count)
}

// HandleAlarm routes a fired alarm by name. Unknown names are ignored.
func (s *Scheduler) HandleAlarm(ctx context.Context, name string, now time.Time) error {
	switch {
	case IsArticleKey(name):
		_, err := s.OnArticleAlarmFired(ctx, name, now)
		return err
	case name == DailyReminderName:
		return s.OnDailyReminderFired(ctx, now)
	default:
		s.log.WarnContext(ctx, "Unknown alarm is fired",
			"alarm", name)

		return nil
	}
}

func (s *Scheduler) peekRecord(ctx context.Context, key string) (*domain.AlarmRecord, error) {
	item, err := s.records.Get(ctx, RecordsKey)
	if err != nil {
		return nil, fmt.Errorf("get alarm records: %w", err)
	}

	if !item.Exists() {
		return nil, nil
	}

	records, err := decodeRecords(item.Value)
	if err != nil {
		return nil, err
	}

	record, ok := records[key]
	if !ok {
		return nil, nil
	}

	return &record, nil
}

func (s *Scheduler) takeRecord(ctx context.Context, key string) (*domain.AlarmRecord, error) {
	var taken *domain.AlarmRecord

	err := s.updateRecords(ctx, func(records map[string]domain.AlarmRecord) bool {
		record, ok := records[key]
		if !ok {
			taken = nil
			return false
		}

		taken = &record
		delete(records, key)

		return true
	})

	return taken, err
}

func decodeRecords(raw []byte) (map[string]domain.AlarmRecord, error) {
	records := make(map[string]domain.AlarmRecord)

	if len(raw) > 0 {
		if err := recordsJSON.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("unmarshal alarm records: %w", err)
		}
	}
	if records == nil {
		records = make(map[string]domain.AlarmRecord)
	}

	return records, nil
}

// updateRecords applies fn to the alarm record map; fn reports whether it
// changed anything.
func (s *Scheduler) updateRecords(
	ctx context.Context,
	fn func(records map[string]domain.AlarmRecord) bool,
) error {
	return platform.Update(ctx, s.records, RecordsKey, func(current []byte) ([]byte, error) {
		records, err := decodeRecords(current)
		if err != nil {
			return nil, err
		}

		if !fn(records) {
			return nil, nil
		}

		raw, err := recordsJSON.Marshal(records)
		if err != nil {
			return nil, fmt.Errorf("marshal alarm records: %w", err)
		}

		return raw, nil
	})
}
