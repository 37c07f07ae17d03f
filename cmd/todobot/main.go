package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"todobot/internal/bot"
	"todobot/internal/config"
	"todobot/internal/logger"
	"todobot/internal/repository"
	"todobot/internal/service"
)

func main() {
	// Optional .env file, ignored when absent.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log := logger.New("")
		log.Fatal().Err(err).Msg("config")
	}
	log := logger.New(cfg.LogLevel)

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}
	taskRepo := repository.NewTaskRepository(db)

	api, err := bot.NewAPI(cfg.TelegramToken, log)
	if err != nil {
		log.Fatal().Err(err).Msg("bot")
	}
	notifier := bot.NewNotifier(api)

	registry := service.NewAlarmRegistry(notifier, log)
	reminderSvc := service.NewReminderService(taskRepo, registry, log)
	if _, err := reminderSvc.RestoreAlarms(ctx); err != nil {
		log.Warn().Err(err).Msg("restore alarms")
	}

	sweep, err := service.NewSweepService(taskRepo, notifier, cfg.DailyReminderStart, log)
	if err != nil {
		log.Fatal().Err(err).Msg("sweep")
	}

	scheduler := service.NewSchedulerService(time.Local)
	if _, err := scheduler.ScheduleInterval(cfg.SweepPollInterval, func() {
		tickCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		sweep.Tick(tickCtx)
	}); err != nil {
		log.Fatal().Err(err).Msg("schedule sweep")
	}
	scheduler.Start()

	telegramBot := bot.New(api, reminderSvc, log)

	log.Info().Str("daily_reminder_start", cfg.DailyReminderStart).Msg("to-do list bot started")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("bot stopped with error")
	}

	// Stop scheduling and wait for a running sweep tick, then drop
	// pending alarms without delivering.
	scheduler.Stop()
	registry.StopAll()
	log.Info().Msg("shutdown complete")
}
