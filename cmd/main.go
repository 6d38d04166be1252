package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"readlater/internal/bot"
	"readlater/internal/config"
	"readlater/internal/database"
	"readlater/internal/pagetitle"
	"readlater/internal/ratelimiter"
	"readlater/internal/scheduler"
	"readlater/internal/service"
)

func main() {
	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load config",
			"error", err)

		return
	}

	level, err := cfg.Level()
	if err != nil {
		slog.WarnContext(ctx, "Invalid log level so info is used",
			"error", err,
			"logLevel", cfg.LogLevel)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	loc, err := cfg.Location()
	if err != nil {
		log.ErrorContext(ctx, "Failed to load timezone",
			"error", err,
			"timezone", cfg.Timezone)

		return
	}

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize db",
			"error", err,
			"dbPath", cfg.DBPath)

		return
	}
	defer func() {
		if err = db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	api, err := bot.NewAPI(cfg.Token)
	if err != nil {
		log.ErrorContext(ctx, "Failed to connect to Telegram",
			"error", err)

		return
	}

	rateLimiter := ratelimiter.New(api, log, ratelimiter.WithRates(cfg.PrivateChatRate, cfg.GroupChatRate))
	notifier := bot.NewNotifier(rateLimiter, log)

	svc := service.New(db, notifier, cfg.Limits(), loc, log, serviceOptions(ctx, cfg, log)...)

	botInst := bot.New(api, rateLimiter, svc, cfg.AllowedUsers, loc, log)
	log.InfoContext(ctx, "Bot is initialized",
		"botUserName", api.Self.UserName,
		"allowedUsersCount", len(cfg.AllowedUsers))

	sched := scheduler.New(ctx, cfg.AlarmPollSpec, loc, db, svc, log)

	if err = sched.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"spec", cfg.AlarmPollSpec,
			"timezone", loc.String())

		return
	}
	log.InfoContext(ctx, "Scheduler is started",
		"spec", cfg.AlarmPollSpec,
		"timezone", loc.String())

	go func() {
		botInst.Start(ctx)
	}()
	log.InfoContext(ctx, "Bot is started",
		"updateTimeoutSeconds", bot.BotUpdateTimeout)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	sig := <-c
	log.InfoContext(ctx, "Shutdown signal is received",
		"signal", sig.String())
	cancel()

	log.InfoContext(ctx, "Exiting...",
		"signal", sig.String(),
		"uptimeSeconds", time.Since(start).Seconds())

	sched.Stop()
	log.InfoContext(ctx, "Scheduler is stopped",
		"uptimeSeconds", time.Since(start).Seconds())

	botInst.Stop()
	log.InfoContext(ctx, "Bot is stopped",
		"uptimeSeconds", time.Since(start).Seconds())
}

func serviceOptions(ctx context.Context, cfg config.Config, log *slog.Logger) []service.Option {
	if !cfg.ResolveTitles {
		log.InfoContext(ctx, "Page title lookup is disabled so titles come from URLs",
			"envVar", "RESOLVE_TITLES")

		return nil
	}

	return []service.Option{
		service.WithTitleResolver(pagetitle.NewResolver(cfg.TitleTimeout, log)),
	}
}
