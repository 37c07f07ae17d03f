package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	defaultDatabaseURL   = "tasks.db"
	defaultReminderStart = "09:00:00"
	defaultPollInterval  = 60 * time.Second
)

var reminderStartPattern = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}$`)

// Config keeps runtime settings for the bot.
type Config struct {
	TelegramToken      string
	DatabaseURL        string
	DailyReminderStart string
	SweepPollInterval  time.Duration
	LogLevel           string
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	cfg := Config{
		TelegramToken:      strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DailyReminderStart: strings.TrimSpace(os.Getenv("DAILY_REMINDER_START")),
		SweepPollInterval:  parsePollInterval(strings.TrimSpace(os.Getenv("SWEEP_POLL_INTERVAL"))),
		LogLevel:           strings.TrimSpace(os.Getenv("LOG_LEVEL")),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	if cfg.DailyReminderStart == "" {
		cfg.DailyReminderStart = defaultReminderStart
	}
	if cfg.SweepPollInterval == 0 {
		cfg.SweepPollInterval = defaultPollInterval
	}

	if err := ValidateReminderStart(cfg.DailyReminderStart); err != nil {
		return cfg, err
	}
	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	return cfg, nil
}

// ValidateReminderStart checks a wall-clock time in strict HH:MM:SS form.
func ValidateReminderStart(value string) error {
	if !reminderStartPattern.MatchString(value) {
		return fmt.Errorf("invalid DAILY_REMINDER_START %q, expected HH:MM:SS", value)
	}
	if _, err := time.Parse("15:04:05", value); err != nil {
		return fmt.Errorf("invalid DAILY_REMINDER_START %q: %w", value, err)
	}
	return nil
}

func parsePollInterval(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
