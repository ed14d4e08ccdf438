package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Auth
	APIToken string

	// Sync
	WebhookURL       string
	SyncAPIInterval  time.Duration
	AutoSyncInterval time.Duration

	// Backup
	ImportStagingTTL time.Duration

	// ID card
	LogoURL          string
	LogoFetchTimeout time.Duration

	// Branding
	WorkshopName string
	EventTitle   string
	EventDates   string
	EventVenue   string

	// Rate Limit
	RateLimitGeneral      int
	RateLimitRegistration int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	// WEBHOOK_URL が未設定の場合、同期系の操作はすべて無効になる。
	cfg.APIToken = getEnvString("API_TOKEN", "")
	cfg.WebhookURL = getEnvString("WEBHOOK_URL", "")
	cfg.SyncAPIInterval = getEnvDuration("SYNC_API_INTERVAL", 100*time.Millisecond)
	cfg.AutoSyncInterval = getEnvDuration("AUTO_SYNC_INTERVAL", 10*time.Minute)
	cfg.ImportStagingTTL = getEnvDuration("IMPORT_STAGING_TTL", 10*time.Minute)
	cfg.LogoURL = getEnvString("LOGO_URL", "https://raw.githubusercontent.com/narendra-goswami/BINDS/main/binds-logo.png")
	cfg.LogoFetchTimeout = getEnvDuration("LOGO_FETCH_TIMEOUT", 5*time.Second)
	cfg.WorkshopName = getEnvString("WORKSHOP_NAME", "BINDS – Chapter 2")
	cfg.EventTitle = getEnvString("EVENT_TITLE", "Bridging Nature with Data Science – Chapter 2")
	cfg.EventDates = getEnvString("EVENT_DATES", "29-31 January 2026")
	cfg.EventVenue = getEnvString("EVENT_VENUE", "Azim Premji University, Bhopal")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitRegistration = getEnvInt("RATE_LIMIT_REGISTRATION", 20)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// SyncEnabled は同期先Webhookが設定されているかを返す。
func (c *Config) SyncEnabled() bool {
	return c.WebhookURL != ""
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
