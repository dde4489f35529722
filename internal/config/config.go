package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	EnvFilePath           string
	HTTPPort              string
	DatabaseURL           string
	JWTSecret             string
	JWTIssuer             string
	TokenTTL              time.Duration
	AdminAllowedIPs       []string
	AdminTOTPSecret       string
	RedisURL              string
	NATSURL               string
	DeliverySubject       string
	StatusFeedURL         string
	StatusRefreshInterval time.Duration
	StatusCacheTTL        time.Duration
	StatsCacheTTL         time.Duration
	CORSAllowedOrigins    []string
	ShopItemPrice         int64
	OTELEndpoint          string
	Environment           string
}

func Load() (*Config, error) {
	envPath := resolveEnvPath()
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		envPath = ".env"
		_ = godotenv.Load()
	}

	cfg := &Config{
		EnvFilePath:           getEnv("ENV_FILE_PATH", envPath),
		HTTPPort:              getEnv("HTTP_PORT", "8080"),
		DatabaseURL:           getEnv("DATABASE_URL", "sqlite:data.db"),
		JWTSecret:             os.Getenv("JWT_SECRET"),
		JWTIssuer:             getEnv("JWT_ISSUER", "legacy-portal"),
		TokenTTL:              getDuration("TOKEN_TTL", 24*time.Hour),
		AdminAllowedIPs:       splitCSV(os.Getenv("ADMIN_ALLOWED_IPS")),
		AdminTOTPSecret:       os.Getenv("ADMIN_TOTP_SECRET"),
		RedisURL:              os.Getenv("REDIS_URL"),
		NATSURL:               os.Getenv("NATS_URL"),
		DeliverySubject:       getEnv("DELIVERY_SUBJECT", "shop.delivery.enqueued"),
		StatusFeedURL:         os.Getenv("STATUS_FEED_URL"),
		StatusRefreshInterval: getDuration("STATUS_REFRESH_INTERVAL", time.Minute),
		StatusCacheTTL:        getDuration("STATUS_CACHE_TTL", 2*time.Minute),
		StatsCacheTTL:         getDuration("STATS_CACHE_TTL", 30*time.Second),
		CORSAllowedOrigins:    splitCSV(os.Getenv("CORS_ALLOWED_ORIGINS")),
		OTELEndpoint:          os.Getenv("OTEL_EXPORTER_ENDPOINT"),
		Environment:           getEnv("APP_ENV", "development"),
	}

	price, err := getInt64("SHOP_ITEM_PRICE", 20)
	if err != nil {
		return nil, err
	}
	cfg.ShopItemPrice = price

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.ShopItemPrice < 0 {
		return nil, errors.New("SHOP_ITEM_PRICE must not be negative")
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt64(key string, def int64) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return v, nil
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if v, err := strconv.Atoi(raw); err == nil {
		return time.Duration(v) * time.Second
	}
	return def
}

func resolveEnvPath() string {
	if path := os.Getenv("ENV_FILE_PATH"); path != "" {
		return path
	}
	candidates := []string{".env", "local-only/.env"}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
