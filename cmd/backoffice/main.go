package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"backoffice/internal/bot"
	"backoffice/internal/cache"
	"backoffice/internal/config"
	"backoffice/internal/dates"
	"backoffice/internal/logging"
	"backoffice/internal/publish"
	"backoffice/internal/repository"
	"backoffice/internal/rules"
	"backoffice/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, os.Stdout)

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("timezone")
	}
	settings, err := cfg.ReminderSettings()
	if err != nil {
		logger.Fatal().Err(err).Msg("reminder settings")
	}

	db, err := repository.NewDB(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("db")
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	subscriberRepo := repository.NewSubscriberRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	bidRepo := repository.NewBidRepository(db)
	eventRepo := repository.NewEventRepository(db)
	reminderRepo := repository.NewReminderRepository(db)
	contentRepo := repository.NewContentRepository(db)

	clock := dates.SystemClock
	reminderSvc := service.NewReminderService(eventRepo, reminderRepo, contentRepo, settings, cache.NewMemory(), cfg.SnapshotTTL, clock, logger)

	var (
		telegramBot *bot.Bot
		notifier    service.Notifier
		platforms   []publish.Platform
	)
	if cfg.TelegramToken != "" {
		api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			logger.Fatal().Err(err).Msg("bot")
		}
		logger.Info().Str("account", api.Self.UserName).Msg("bot authorized")
		telegramBot = bot.New(api, subscriberRepo, taskRepo, reminderSvc, clock, logger)
		notifier = telegramBot
		if cfg.PublishChatID != 0 {
			platforms = append(platforms, publish.NewTelegram(api, cfg.PublishChatID))
		}
	} else {
		logger.Warn().Msg("TELEGRAM_TOKEN not set; running without bot and alerts")
	}

	bidSvc := service.NewBidService(bidRepo, taskRepo, rules.NewEngine(cfg.RuleOptions()), notifier, clock, logger)
	publisher := publish.New(contentRepo, clock, logger, publish.Options{PlatformTimeout: cfg.PlatformTimeout}, platforms...)

	scheduler := service.NewSchedulerService(loc, logger, cfg.JobTimeout)
	jobs := []struct {
		name string
		spec string
		job  service.Job
	}{
		{"bid-rules", cfg.Schedules.Rules, func(ctx context.Context) error {
			_, err := bidSvc.RunRules(ctx)
			return err
		}},
		{"reminder-seed", cfg.Schedules.Seed, func(ctx context.Context) error {
			_, err := reminderSvc.Seed(ctx)
			return err
		}},
		{"publish", cfg.Schedules.Publish, func(ctx context.Context) error {
			rep, err := publisher.Run(ctx)
			if rep.Published > 0 {
				reminderSvc.InvalidateContent()
			}
			if rep.Due > 0 {
				zerolog.Ctx(ctx).Info().
					Int("due", rep.Due).
					Int("published", rep.Published).
					Int("failed", rep.Failed).
					Int("platform_errors", rep.PlatformErrors).
					Msg("publish run")
			}
			return err
		}},
	}
	for _, j := range jobs {
		if _, err := scheduler.Schedule(j.name, j.spec, j.job); err != nil {
			logger.Fatal().Err(err).Msg("schedule")
		}
	}
	// Seed once so status is meaningful before the first tick.
	_ = scheduler.Run("reminder-seed", jobs[1].job)
	scheduler.Start()
	defer scheduler.Stop()

	logger.Info().Str("timezone", loc.String()).Msg("back office started")
	if telegramBot != nil {
		if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("bot stopped with error")
		}
	} else {
		<-ctx.Done()
	}
	logger.Info().Msg("shutdown complete")
}
