package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Session
	SessionSecret    string
	SessionMaxAge    int
	RefreshInterval  time.Duration
	RefreshThreshold time.Duration
	LocalStorePath   string

	// Auth
	RequireEmailConfirmation bool
	AuthEventBus             string // memory, postgres, redis
	AuthEventChannel         string

	// Redis（AuthEventBus=redis の場合のみ使用）
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitSignIn  int

	// Jobs
	ApplicationDailyLimit int

	// Website check
	WebsiteCheckEnabled bool
	WebsiteCheckTimeout time.Duration

	// Cleanup
	SessionRetentionDays int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

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

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	cfg.DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 5)
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.RefreshInterval = getEnvDuration("SESSION_REFRESH_INTERVAL", time.Minute)
	cfg.RefreshThreshold = getEnvDuration("SESSION_REFRESH_THRESHOLD", 10*time.Minute)
	cfg.LocalStorePath = getEnvString("LOCAL_STORE_PATH", "hagwonmatch-session.db")
	cfg.RequireEmailConfirmation = getEnvBool("AUTH_REQUIRE_EMAIL_CONFIRMATION", false)
	cfg.AuthEventBus = getEnvString("AUTH_EVENT_BUS", "memory")
	cfg.AuthEventChannel = getEnvString("AUTH_EVENT_CHANNEL", "hagwonmatch_auth")
	cfg.RedisAddr = getEnvString("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnvString("REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSignIn = getEnvInt("RATE_LIMIT_SIGN_IN", 10)
	cfg.ApplicationDailyLimit = getEnvInt("APPLICATION_DAILY_LIMIT", 10)
	cfg.WebsiteCheckEnabled = getEnvBool("WEBSITE_CHECK_ENABLED", true)
	cfg.WebsiteCheckTimeout = getEnvDuration("WEBSITE_CHECK_TIMEOUT", 5*time.Second)
	cfg.SessionRetentionDays = getEnvInt("SESSION_RETENTION_DAYS", 7)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	switch cfg.AuthEventBus {
	case "memory", "postgres", "redis":
	default:
		return nil, fmt.Errorf("unsupported AUTH_EVENT_BUS: %q", cfg.AuthEventBus)
	}

	return cfg, nil
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

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
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
