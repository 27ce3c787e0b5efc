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

	// 外部ジョブ管理システム
	UpstreamBaseURL     string
	UpstreamAPIKey      string
	UpstreamTimeout     time.Duration
	UpstreamMaxRespSize int64

	// 認証トークン
	JWTSecret   string
	TokenMaxAge int // 秒

	// キャッシュ
	CacheFreshness     time.Duration
	CacheRetentionDays int

	// Rate Limit（req/min/customer）
	RateLimitGeneral int
	RateLimitMessage int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string

	// Environment: "development" または "production"
	Environment string
}

// IsProduction は本番環境かを返す。
// エラーレスポンスへの詳細メッセージの含有判定に使用する。
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
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

	cfg.UpstreamBaseURL = os.Getenv("UPSTREAM_BASE_URL")
	if cfg.UpstreamBaseURL == "" {
		missing = append(missing, "UPSTREAM_BASE_URL")
	}

	cfg.UpstreamAPIKey = os.Getenv("UPSTREAM_API_KEY")
	if cfg.UpstreamAPIKey == "" {
		missing = append(missing, "UPSTREAM_API_KEY")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.UpstreamTimeout = getEnvDuration("UPSTREAM_TIMEOUT", 10*time.Second)
	cfg.UpstreamMaxRespSize = getEnvInt64("UPSTREAM_MAX_RESP_SIZE", 5242880)
	cfg.TokenMaxAge = getEnvInt("TOKEN_MAX_AGE", 86400)
	cfg.CacheFreshness = getEnvDuration("CACHE_FRESHNESS", 5*time.Minute)
	cfg.CacheRetentionDays = getEnvInt("CACHE_RETENTION_DAYS", 30)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitMessage = getEnvInt("RATE_LIMIT_MESSAGE", 20)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.Environment = getEnvString("ENVIRONMENT", "development")

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

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
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
