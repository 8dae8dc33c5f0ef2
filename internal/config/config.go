package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime configuration loaded from environment variables.
type Config struct {
	AppEnv   string
	LogLevel string

	DatabaseURL    string
	DatabaseSchema string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTLS      bool

	HTTPListenAddr   string
	MetricsNamespace string

	WhatsAppStorePath string
	WhatsAppLogLevel  string

	// Timezone used when rendering relative dates and reconciling
	// forwarded-message timestamps.
	Timezone *time.Location

	// Sticker sent as a reaction when a forbidden ready/busy reason
	// comes from one of the listed JIDs. Optional.
	StickerPath    string
	StickerTargets []string

	CommandCacheTTL time.Duration
	DedupTTL        time.Duration
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	databaseURL := getEnv("DATABASE_URL", "")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	tzName := getEnv("BOT_TIMEZONE", "Asia/Jakarta")
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tzName, err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DatabaseURL:       databaseURL,
		DatabaseSchema:    getEnv("DATABASE_SCHEMA", ""),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           redisDB,
		RedisTLS:          getEnvBool("REDIS_TLS", false),
		HTTPListenAddr:    getEnv("HTTP_LISTEN_ADDR", ":8080"),
		MetricsNamespace:  getEnv("METRICS_NAMESPACE", "bot_ojek"),
		WhatsAppStorePath: getEnv("WA_STORE_PATH", "data/whatsapp.db"),
		WhatsAppLogLevel:  getEnv("WA_LOG_LEVEL", "WARN"),
		Timezone:          tz,
		StickerPath:       getEnv("BOT_STICKER_PATH", ""),
		StickerTargets:    getEnvList("BOT_STICKER_TARGETS"),
		CommandCacheTTL:   getEnvDuration("COMMAND_CACHE_TTL", time.Minute),
		DedupTTL:          getEnvDuration("MESSAGE_DEDUP_TTL", 12*time.Hour),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string) []string {
	v := getEnv(key, "")
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
