// Package config provides application configuration loading from environment.
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/stokvel-bot/internal/policy"
)

// Defaults applied when a variable is unset.
const (
	DefaultHTTPAddr          = ":8080"
	DefaultTimezone          = "Africa/Johannesburg"
	DefaultReconcileSchedule = "0 15 0 1 * *"
	DefaultSessionTTL        = 12 * time.Hour
	DefaultReviewReminderHr  = 18
)

// Telemetry exporters accepted by OTEL_EXPORTER.
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPGRPC = "otlp-grpc"
	ExporterOTLPHTTP = "otlp-http"
)

// Config holds all configuration for the application.
type Config struct {
	DatabaseURL      string
	TelegramBotToken string
	GeminiAPIKey     string
	LogLevel         string
	LogFormat        string

	AdminUserIDs        []int64
	AdminUsernames      []string
	AdminAccessCode     string
	AdminAccessCodeHash string
	AdminSessionTTL     time.Duration

	RedisURL string
	BlobDir  string
	HTTPAddr string

	ReconcileSchedule string
	Timezone          string

	ReviewReminderEnabled bool
	ReviewReminderHour    int

	OTelExporter string

	Policy policy.Policy
}

// Load reads configuration from environment variables, after loading a .env file if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		TelegramBotToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		LogLevel:            os.Getenv("LOG_LEVEL"),
		LogFormat:           os.Getenv("LOG_FORMAT"),
		AdminAccessCode:     os.Getenv("ADMIN_ACCESS_CODE"),
		AdminAccessCodeHash: os.Getenv("ADMIN_ACCESS_CODE_HASH"),
		AdminSessionTTL:     DefaultSessionTTL,
		RedisURL:            os.Getenv("REDIS_URL"),
		BlobDir:             os.Getenv("BLOB_DIR"),
		HTTPAddr:            envOr("HTTP_ADDR", DefaultHTTPAddr),
		ReconcileSchedule:   envOr("RECONCILE_SCHEDULE", DefaultReconcileSchedule),
		Timezone:            envOr("TIMEZONE", DefaultTimezone),
		ReviewReminderHour:  DefaultReviewReminderHr,
		OTelExporter:        strings.ToLower(envOr("OTEL_EXPORTER", ExporterNone)),
		Policy:              policy.Default(),
	}

	var errs []string

	cfg.AdminUserIDs = parseUserIDs(os.Getenv("ADMIN_USER_IDS"))
	cfg.AdminUsernames = parseUsernames(os.Getenv("ADMIN_USERNAMES"))

	if v := os.Getenv("ADMIN_SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Sprintf("ADMIN_SESSION_TTL must be a positive duration, got %q", v))
		} else {
			cfg.AdminSessionTTL = d
		}
	}

	cfg.ReviewReminderEnabled = os.Getenv("REVIEW_REMINDER_ENABLED") == "true"
	if v := os.Getenv("REVIEW_REMINDER_HOUR"); v != "" {
		h, err := strconv.Atoi(v)
		if err != nil || h < 0 || h > 23 {
			errs = append(errs, fmt.Sprintf("REVIEW_REMINDER_HOUR must be between 0 and 23, got %q", v))
		} else {
			cfg.ReviewReminderHour = h
		}
	}

	errs = append(errs, cfg.loadPolicy()...)

	if err := cfg.validate(errs); err != nil {
		return nil, err
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseUserIDs(raw string) []int64 {
	var ids []int64
	for idStr := range strings.SplitSeq(raw, ",") {
		idStr = strings.TrimSpace(idStr)
		if idStr == "" {
			continue
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func parseUsernames(raw string) []string {
	var names []string
	for username := range strings.SplitSeq(raw, ",") {
		username = strings.TrimPrefix(strings.TrimSpace(username), "@")
		if username == "" {
			continue
		}
		names = append(names, username)
	}
	return names
}

// loadPolicy applies the contribution-rule overrides.
func (c *Config) loadPolicy() []string {
	var errs []string

	decimalVar := func(key string, dst *decimal.Decimal) {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s must be a number, got %q", key, v))
			return
		}
		*dst = d
	}
	intVar := func(key string, dst *int) {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s must be an integer, got %q", key, v))
			return
		}
		*dst = n
	}

	decimalVar("MIN_DEPOSIT", &c.Policy.MinDeposit)
	intVar("GRACE_PERIOD_END_DAY", &c.Policy.GracePeriodEndDay)
	decimalVar("LATE_FINE_AMOUNT", &c.Policy.LateFineAmount)
	decimalVar("INTEREST_ELIGIBILITY_MIN", &c.Policy.InterestEligibilityMin)
	intVar("MAX_SKIPPED_MONTHS", &c.Policy.MaxSkippedMonths)

	return errs
}

// validate checks that all required configuration is present, reporting every problem at once.
func (c *Config) validate(errs []string) error {
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}

	if strings.TrimSpace(c.AdminAccessCode) == "" && strings.TrimSpace(c.AdminAccessCodeHash) == "" {
		errs = append(errs, "ADMIN_ACCESS_CODE or ADMIN_ACCESS_CODE_HASH is required")
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("TIMEZONE %q is not a known location", c.Timezone))
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.ReconcileSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("RECONCILE_SCHEDULE %q is invalid: %v", c.ReconcileSchedule, err))
	}

	switch c.OTelExporter {
	case ExporterNone, ExporterStdout, ExporterOTLPGRPC, ExporterOTLPHTTP:
	default:
		errs = append(errs, fmt.Sprintf("OTEL_EXPORTER must be one of none, stdout, otlp-grpc, otlp-http, got %q", c.OTelExporter))
	}

	if err := c.Policy.Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// Location returns the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Clock returns the wall clock in the configured timezone. Month and year
// boundaries for late fines, reconciliation and reports follow it.
func (c *Config) Clock() policy.SystemClock {
	return policy.SystemClock{Location: c.Location()}
}

// BotEnabled reports whether a Telegram token is configured.
func (c *Config) BotEnabled() bool {
	return c.TelegramBotToken != ""
}

// RestrictsAdmins reports whether admin logins are limited to listed users.
func (c *Config) RestrictsAdmins() bool {
	return len(c.AdminUserIDs) > 0 || len(c.AdminUsernames) > 0
}

// CanBeAdmin checks if a Telegram user may log in as an admin.
// Without ADMIN_USER_IDS or ADMIN_USERNAMES anyone holding the access code may.
func (c *Config) CanBeAdmin(userID int64, username string) bool {
	if !c.RestrictsAdmins() {
		return true
	}
	return c.IsAdminListed(userID, username)
}

// IsAdminListed checks if a Telegram user ID or username is in the admin lists.
func (c *Config) IsAdminListed(userID int64, username string) bool {
	if slices.Contains(c.AdminUserIDs, userID) {
		return true
	}

	// Usernames are case-insensitive.
	if username != "" {
		username = strings.TrimPrefix(username, "@")
		for _, listed := range c.AdminUsernames {
			if strings.EqualFold(listed, username) {
				return true
			}
		}
	}

	return false
}
