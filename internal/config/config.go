package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// キャッシュバックエンドの種類
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// Server
	ServerPort     string
	RequestTimeout time.Duration

	// Logging
	LogLevel string

	// Cache
	CacheBackend       string
	RedisURL           string
	CachePrefix        string
	CacheMaxArticles   int
	CacheRecentPerUser int
	CacheMaxUsers      int
	CacheArticleTTL    time.Duration
	CacheRecentTTL     time.Duration
	CacheSettingsTTL   time.Duration
	CacheUserIDTTL     time.Duration

	// Wiki
	WikiUserAgent       string
	WikiTotalTimeout    time.Duration
	WikiConnectTimeout  time.Duration
	WikiReadTimeout     time.Duration
	WikiMaxConns        int
	WikiMaxConnsPerHost int
	WikiRetries         int
	WikiRetryBaseDelay  time.Duration
	WikiRateLimit       float64
	WikiBreakerEnabled  bool

	// Recommendation
	RecoMaxAttempts int

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral int
	RateLimitSearch  int
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合や値の組み合わせが不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.CacheBackend = strings.ToLower(getEnvString("CACHE_BACKEND", CacheBackendMemory))
	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.CacheBackend == CacheBackendRedis && cfg.RedisURL == "" {
		missing = append(missing, "REDIS_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if cfg.CacheBackend != CacheBackendMemory && cfg.CacheBackend != CacheBackendRedis {
		return nil, fmt.Errorf("CACHE_BACKEND must be %q or %q, got %q", CacheBackendMemory, CacheBackendRedis, cfg.CacheBackend)
	}

	// Optional fields with defaults
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 25)
	cfg.DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", 30*time.Second)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	cfg.CachePrefix = getEnvString("CACHE_PREFIX", "tg_wiki")
	cfg.CacheMaxArticles = getEnvInt("CACHE_MAX_ARTICLES", 200)
	cfg.CacheRecentPerUser = getEnvInt("CACHE_RECENT_PER_USER", 20)
	cfg.CacheMaxUsers = getEnvInt("CACHE_MAX_USERS", 1000)
	cfg.CacheArticleTTL = getEnvDuration("CACHE_ARTICLE_TTL", 24*time.Hour)
	cfg.CacheRecentTTL = getEnvDuration("CACHE_RECENT_TTL", 7*24*time.Hour)
	cfg.CacheSettingsTTL = getEnvDuration("CACHE_SETTINGS_TTL", 24*time.Hour)
	cfg.CacheUserIDTTL = getEnvDuration("CACHE_USER_ID_TTL", 24*time.Hour)

	cfg.WikiUserAgent = getEnvString("WIKI_USER_AGENT", "tgwiki/1.0 (content service)")
	cfg.WikiTotalTimeout = getEnvDuration("WIKI_TOTAL_TIMEOUT", 10*time.Second)
	cfg.WikiConnectTimeout = getEnvDuration("WIKI_CONNECT_TIMEOUT", 5*time.Second)
	cfg.WikiReadTimeout = getEnvDuration("WIKI_READ_TIMEOUT", 10*time.Second)
	cfg.WikiMaxConns = getEnvInt("WIKI_MAX_CONNS", 50)
	cfg.WikiMaxConnsPerHost = getEnvInt("WIKI_MAX_CONNS_PER_HOST", 20)
	cfg.WikiRetries = getEnvInt("WIKI_RETRIES", 2)
	cfg.WikiRetryBaseDelay = getEnvDuration("WIKI_RETRY_BASE_DELAY", 300*time.Millisecond)
	cfg.WikiRateLimit = getEnvFloat("WIKI_RATE_LIMIT", 0)
	cfg.WikiBreakerEnabled = getEnvBool("WIKI_BREAKER_ENABLED", false)

	cfg.RecoMaxAttempts = getEnvInt("RECO_MAX_ATTEMPTS", 50)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSearch = getEnvInt("RATE_LIMIT_SEARCH", 30)

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

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
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
