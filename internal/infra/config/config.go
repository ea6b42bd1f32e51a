package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	WhatsAppToken   string
	WhatsAppPhoneID string
	VerifyToken     string
	DatabaseURL     string
	ListenAddr      string
	LogLevel        string
	Environment     string

	// Timezone is the fixed operating timezone for all wall-clock
	// computations (lecture days, reschedule forms, schedule summaries).
	Timezone string
	Location *time.Location

	CronSpecLecturerNotify  string // next-day lecturer notification prompts
	CronSpecDailySummary    string // morning student schedule summary
	CronSpecEveningReminder string // evening "schedule ready" alert
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}

	cfg.WhatsAppToken = os.Getenv("WHATSAPP_TOKEN")
	if cfg.WhatsAppToken == "" {
		return nil, fmt.Errorf("WHATSAPP_TOKEN is not set")
	}

	cfg.WhatsAppPhoneID = os.Getenv("WHATSAPP_PHONE_ID")
	if cfg.WhatsAppPhoneID == "" {
		return nil, fmt.Errorf("WHATSAPP_PHONE_ID is not set")
	}

	cfg.VerifyToken = os.Getenv("WHATSAPP_VERIFY_TOKEN")
	if cfg.VerifyToken == "" {
		return nil, fmt.Errorf("WHATSAPP_VERIFY_TOKEN is not set")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.ListenAddr = os.Getenv("LISTEN_ADDR")
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	cfg.Timezone = os.Getenv("OPERATING_TIMEZONE")
	if cfg.Timezone == "" {
		cfg.Timezone = "Africa/Lagos"
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid OPERATING_TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	cfg.CronSpecLecturerNotify = os.Getenv("CRON_SPEC_LECTURER_NOTIFY")
	if cfg.CronSpecLecturerNotify == "" {
		cfg.CronSpecLecturerNotify = "0 19 * * *" // Default: 7 PM daily
	}

	cfg.CronSpecDailySummary = os.Getenv("CRON_SPEC_DAILY_SUMMARY")
	if cfg.CronSpecDailySummary == "" {
		cfg.CronSpecDailySummary = "0 6 * * *" // Default: 6 AM daily
	}

	cfg.CronSpecEveningReminder = os.Getenv("CRON_SPEC_EVENING_REMINDER")
	if cfg.CronSpecEveningReminder == "" {
		cfg.CronSpecEveningReminder = "0 18 * * *" // Default: 6 PM daily
	}

	return cfg, nil
}
