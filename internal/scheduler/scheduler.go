// Package scheduler fires due alarms: a cron tick pops them from the
// database and hands each one to its owner's handler.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"readlater/internal/database"
)

const (
	DefaultPollSpec = "@every 15s"

	pollTimeout    = 2 * time.Minute
	startupTimeout = time.Minute
	restoreTimeout = 10 * time.Second
)

type AlarmSource interface {
	PopDueAlarms(ctx context.Context, now time.Time) ([]database.DueAlarm, error)
	RestoreAlarms(ctx context.Context, alarms []database.DueAlarm) error
}

type Handler interface {
	Startup(ctx context.Context) error
	HandleAlarm(ctx context.Context, ownerID int64, name string) error
}

type Scheduler struct {
	ctx     context.Context
	cron    *cron.Cron
	spec    string
	alarms  AlarmSource
	handler Handler
	now     func() time.Time
	log     *slog.Logger
}

func New(
	ctx context.Context,
	spec string,
	loc *time.Location,
	alarms AlarmSource,
	handler Handler,
	log *slog.Logger,
) *Scheduler {
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	return &Scheduler{
		ctx:     ctx,
		cron:    c,
		spec:    spec,
		alarms:  alarms,
		handler: handler,
		now:     time.Now,
		log:     log,
	}
}

// Start runs the startup hook, fires whatever became due while the process
// was down and then starts polling.
func (s *Scheduler) Start() error {
	startupCtx, cancel := context.WithTimeout(s.ctx, startupTimeout)
	defer cancel()

	if err := s.handler.Startup(startupCtx); err != nil {
		s.log.ErrorContext(startupCtx, "Failed to run startup hook",
			"error", err)
	}

	if _, err := s.cron.AddFunc(s.spec, s.fireDueAlarms); err != nil {
		return err
	}

	s.fireDueAlarms()

	s.cron.Start()

	return nil
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) fireDueAlarms() {
	ctx, cancel := context.WithTimeout(s.ctx, pollTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	now := s.now()

	due, err := s.alarms.PopDueAlarms(ctx, now)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to pop due alarms",
			"error", err,
			"now", now)
		return
	}

	var undelivered []database.DueAlarm

	for _, alarm := range due {
		if ctx.Err() != nil {
			undelivered = append(undelivered, alarm)
			continue
		}

		if err = s.handler.HandleAlarm(ctx, alarm.OwnerID, alarm.Name); err != nil {
			s.log.ErrorContext(ctx, "Failed to handle alarm",
				"error", err,
				"ownerID", alarm.OwnerID,
				"alarm", alarm.Name,
				"scheduledAt", alarm.ScheduledAt,
				"lateBy", now.Sub(alarm.ScheduledAt))

			if ctx.Err() != nil {
				undelivered = append(undelivered, alarm)
			}
		}
	}

	s.restore(ctx, undelivered)
}

// restore puts back alarms the tick could not finish, so they fire on a
// later tick or after a restart.
func (s *Scheduler) restore(ctx context.Context, alarms []database.DueAlarm) {
	if len(alarms) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), restoreTimeout)
	defer cancel()

	if err := s.alarms.RestoreAlarms(ctx, alarms); err != nil {
		s.log.ErrorContext(ctx, "Failed to restore undelivered alarms",
			"error", err,
			"count", len(alarms))

		return
	}

	s.log.WarnContext(ctx, "Scheduler context is done, undelivered alarms are restored",
		"count", len(alarms))
}
