package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"equityTriggerBot/internal/adapters/logger" // Import the logger package for LogLevel
)

// Config holds all application configuration.
type Config struct {
	// Bot
	StartEnabled bool // Whether the automation switch starts on

	// Trigger Scheduler
	TickInterval   time.Duration // How often triggers are evaluated
	TriggerTimeout time.Duration // How long a trigger may wait before expiring

	// Auto-Exit
	AutoExitHour          int           // Parsed from AUTO_EXIT_TIME "HH:MM"
	AutoExitMinute        int
	AutoExitCheckInterval time.Duration
	AutoExitCooldown      time.Duration

	// Simulated Venue
	MarketOpen        string // "HH:MM", quotes only move inside this window
	MarketClose       string
	FeedInterval      time.Duration
	FillDelayMin      time.Duration
	FillDelayMax      time.Duration
	MarketSuccessRate float64
	LimitSuccessRate  float64

	// Database
	DBPath string

	// Logging
	LogLevel logger.LogLevel // Use the LogLevel type from the logger adapter
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Bot
	cfg.StartEnabled = getEnvAsBool("BOT_START_ENABLED", true)

	// Trigger Scheduler
	tickSeconds := getEnvAsInt("TICK_INTERVAL_SECONDS", 1)
	if tickSeconds <= 0 {
		errs = append(errs, "TICK_INTERVAL_SECONDS must be positive")
	}
	cfg.TickInterval = time.Duration(tickSeconds) * time.Second

	timeoutMinutes, err := getEnvAsIntRequired("ORDER_TIMEOUT_MINUTES", 5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid ORDER_TIMEOUT_MINUTES: %v", err))
	} else if timeoutMinutes <= 0 {
		errs = append(errs, "ORDER_TIMEOUT_MINUTES must be positive")
	}
	cfg.TriggerTimeout = time.Duration(timeoutMinutes) * time.Minute

	// Auto-Exit
	autoExitTime := getEnv("AUTO_EXIT_TIME", "15:25")
	cfg.AutoExitHour, cfg.AutoExitMinute, err = parseClockTime(autoExitTime)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid AUTO_EXIT_TIME: %v", err))
	}

	checkSeconds := getEnvAsInt("AUTO_EXIT_CHECK_SECONDS", 60)
	if checkSeconds <= 0 {
		errs = append(errs, "AUTO_EXIT_CHECK_SECONDS must be positive")
	}
	cfg.AutoExitCheckInterval = time.Duration(checkSeconds) * time.Second

	cooldownMinutes := getEnvAsInt("AUTO_EXIT_COOLDOWN_MINUTES", 5)
	if cooldownMinutes <= 0 {
		errs = append(errs, "AUTO_EXIT_COOLDOWN_MINUTES must be positive")
	}
	cfg.AutoExitCooldown = time.Duration(cooldownMinutes) * time.Minute

	// Simulated Venue
	cfg.MarketOpen = getEnv("MARKET_OPEN", "09:15")
	if _, _, err = parseClockTime(cfg.MarketOpen); err != nil {
		errs = append(errs, fmt.Sprintf("invalid MARKET_OPEN: %v", err))
	}
	cfg.MarketClose = getEnv("MARKET_CLOSE", "15:30")
	if _, _, err = parseClockTime(cfg.MarketClose); err != nil {
		errs = append(errs, fmt.Sprintf("invalid MARKET_CLOSE: %v", err))
	}

	feedSeconds := getEnvAsInt("FEED_INTERVAL_SECONDS", 1)
	if feedSeconds <= 0 {
		errs = append(errs, "FEED_INTERVAL_SECONDS must be positive")
	}
	cfg.FeedInterval = time.Duration(feedSeconds) * time.Second

	fillMinMs := getEnvAsInt("FILL_DELAY_MIN_MS", 500)
	fillMaxMs := getEnvAsInt("FILL_DELAY_MAX_MS", 2000)
	if fillMinMs <= 0 || fillMaxMs < fillMinMs {
		errs = append(errs, "FILL_DELAY_MIN_MS must be positive and no greater than FILL_DELAY_MAX_MS")
	}
	cfg.FillDelayMin = time.Duration(fillMinMs) * time.Millisecond
	cfg.FillDelayMax = time.Duration(fillMaxMs) * time.Millisecond

	cfg.MarketSuccessRate, err = getEnvAsFloatRequired("MARKET_SUCCESS_RATE", 0.95)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MARKET_SUCCESS_RATE: %v", err))
	} else if cfg.MarketSuccessRate <= 0 || cfg.MarketSuccessRate > 1 {
		errs = append(errs, "MARKET_SUCCESS_RATE must be in (0, 1]")
	}

	cfg.LimitSuccessRate, err = getEnvAsFloatRequired("LIMIT_SUCCESS_RATE", 0.90)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid LIMIT_SUCCESS_RATE: %v", err))
	} else if cfg.LimitSuccessRate <= 0 || cfg.LimitSuccessRate > 1 {
		errs = append(errs, "LIMIT_SUCCESS_RATE must be in (0, 1]")
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/trigger_bot.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// parseClockTime parses an "HH:MM" wall-clock string.
func parseClockTime(value string) (hour, minute int, err error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", value)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid hour in %q: %w", value, err)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid minute in %q: %w", value, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time %q out of range", value)
	}
	return hour, minute, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
