package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"readlater/internal/database"
)

type fakeAlarms struct {
	mu       sync.Mutex
	due      []database.DueAlarm
	restored []database.DueAlarm
	err      error
	pops     int
}

func (f *fakeAlarms) PopDueAlarms(context.Context, time.Time) ([]database.DueAlarm, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pops++
	due := f.due
	f.due = nil

	return due, f.err
}

func (f *fakeAlarms) RestoreAlarms(ctx context.Context, alarms []database.DueAlarm) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	f.restored = append(f.restored, alarms...)

	return nil
}

type fired struct {
	ownerID int64
	name    string
}

type fakeHandler struct {
	mu        sync.Mutex
	startups  int
	fired     []fired
	failNames map[string]bool
	onFire    func()
}

func (f *fakeHandler) Startup(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.startups++

	return errors.New("one owner failed")
}

func (f *fakeHandler) HandleAlarm(_ context.Context, ownerID int64, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fired = append(f.fired, fired{ownerID: ownerID, name: name})
	if f.onFire != nil {
		f.onFire()
	}
	if f.failNames[name] {
		return errors.New("handler failed")
	}

	return nil
}

func TestFireDueAlarms(t *testing.T) {
	alarms := &fakeAlarms{due: []database.DueAlarm{
		{OwnerID: 1, Name: "article-a"},
		{OwnerID: 2, Name: "daily-reminder"},
		{OwnerID: 1, Name: "article-b"},
	}}
	handler := &fakeHandler{failNames: map[string]bool{"daily-reminder": true}}

	s := New(context.Background(), DefaultPollSpec, time.UTC, alarms, handler, slog.Default())
	s.fireDueAlarms()

	require.Equal(t, []fired{
		{ownerID: 1, name: "article-a"},
		{ownerID: 2, name: "daily-reminder"},
		{ownerID: 1, name: "article-b"},
	}, handler.fired)

	s.fireDueAlarms()
	require.Len(t, handler.fired, 3)
}

func TestFireDueAlarmsSurvivesPopFailure(t *testing.T) {
	alarms := &fakeAlarms{err: errors.New("db is locked")}
	handler := &fakeHandler{}

	s := New(context.Background(), DefaultPollSpec, time.UTC, alarms, handler, slog.Default())
	s.fireDueAlarms()

	require.Empty(t, handler.fired)
}

func TestFireDueAlarmsStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	alarms := &fakeAlarms{due: []database.DueAlarm{{OwnerID: 1, Name: "article-a"}}}
	handler := &fakeHandler{}

	New(ctx, DefaultPollSpec, time.UTC, alarms, handler, slog.Default()).fireDueAlarms()

	require.Zero(t, alarms.pops)
	require.Len(t, alarms.due, 1)
	require.Empty(t, handler.fired)
}

func TestFireDueAlarmsRestoresUnhandledAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alarms := &fakeAlarms{due: []database.DueAlarm{
		{OwnerID: 1, Name: "article-a"},
		{OwnerID: 1, Name: "daily-reminder"},
	}}
	handler := &fakeHandler{onFire: cancel}

	New(ctx, DefaultPollSpec, time.UTC, alarms, handler, slog.Default()).fireDueAlarms()

	require.Equal(t, []fired{{ownerID: 1, name: "article-a"}}, handler.fired)
	require.Equal(t, []database.DueAlarm{{OwnerID: 1, Name: "daily-reminder"}}, alarms.restored)
}

func TestFireDueAlarmsRestoresFailedAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alarms := &fakeAlarms{due: []database.DueAlarm{
		{OwnerID: 1, Name: "article-a"},
		{OwnerID: 2, Name: "article-b"},
	}}
	handler := &fakeHandler{onFire: cancel, failNames: map[string]bool{"article-a": true}}

	New(ctx, DefaultPollSpec, time.UTC, alarms, handler, slog.Default()).fireDueAlarms()

	require.Equal(t, []database.DueAlarm{
		{OwnerID: 1, Name: "article-a"},
		{OwnerID: 2, Name: "article-b"},
	}, alarms.restored)
}

func TestFireDueAlarmsKeepsFailuresWithoutCancel(t *testing.T) {
	alarms := &fakeAlarms{due: []database.DueAlarm{{OwnerID: 1, Name: "article-a"}}}
	handler := &fakeHandler{failNames: map[string]bool{"article-a": true}}

	New(context.Background(), DefaultPollSpec, time.UTC, alarms, handler, slog.Default()).fireDueAlarms()

	require.Empty(t, alarms.restored)
}

func TestStartRunsStartupAndCatchesUp(t *testing.T) {
	alarms := &fakeAlarms{due: []database.DueAlarm{{OwnerID: 1, Name: "article-a"}}}
	handler := &fakeHandler{}

	s := New(context.Background(), "@every 1h", time.UTC, alarms, handler, slog.Default())
	require.NoError(t, s.Start())
	defer s.Stop()

	handler.mu.Lock()
	defer handler.mu.Unlock()

	require.Equal(t, 1, handler.startups)
	require.Equal(t, []fired{{ownerID: 1, name: "article-a"}}, handler.fired)
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := New(context.Background(), "every now and then", time.UTC, &fakeAlarms{}, &fakeHandler{}, slog.Default())
	require.Error(t, s.Start())
}
