package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv              string
	Port                string
	DatabaseURL         string
	AdminJWTSecret      string
	UpstreamBaseURL     string
	UpstreamFallbackKey string
	CreditThreshold     float64
	AlertDedupWindow    time.Duration
	PoolRefreshInterval time.Duration
	MediaStore          string
	StoragePath         string
	StorageBaseURL      string
	CloudinaryCloud     string
	CloudinaryKey       string
	CloudinarySecret    string
	CloudinaryPreset    string
	HTTPReadTimeout     time.Duration
	HTTPWriteTimeout    time.Duration
	HTTPIdleTimeout     time.Duration
	RateLimitPerSec     float64
	RateLimitBurst      int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:              getEnv("APP_ENV", "development"),
		Port:                getEnv("PORT", "8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		AdminJWTSecret:      os.Getenv("ADMIN_JWT_SECRET"),
		UpstreamBaseURL:     getEnv("UPSTREAM_BASE_URL", "https://api.kie.ai/api/v1"),
		UpstreamFallbackKey: os.Getenv("UPSTREAM_FALLBACK_API_KEY"),
		CreditThreshold:     getEnvFloat("CREDIT_THRESHOLD", 10),
		AlertDedupWindow:    time.Minute * time.Duration(getEnvInt("ALERT_DEDUP_WINDOW_MINUTES", 60)),
		PoolRefreshInterval: time.Second * time.Duration(getEnvInt("POOL_REFRESH_INTERVAL_SECONDS", 300)),
		MediaStore:          getEnv("MEDIA_STORE", "filesystem"),
		StoragePath:         getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:      getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),
		CloudinaryCloud:     os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryKey:       os.Getenv("CLOUDINARY_API_KEY"),
		CloudinarySecret:    os.Getenv("CLOUDINARY_API_SECRET"),
		CloudinaryPreset:    getEnv("CLOUDINARY_UPLOAD_PRESET", "generated"),
		HTTPReadTimeout:     time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:    time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:     time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerSec:     getEnvFloat("RATE_LIMIT_PER_SECOND", 5),
		RateLimitBurst:      getEnvInt("RATE_LIMIT_BURST", 10),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.AdminJWTSecret == "" {
		return nil, fmt.Errorf("ADMIN_JWT_SECRET is required")
	}

	if cfg.CreditThreshold < 0 {
		return nil, fmt.Errorf("CREDIT_THRESHOLD must not be negative")
	}

	switch cfg.MediaStore {
	case "filesystem", "cloudinary", "off":
	default:
		return nil, fmt.Errorf("MEDIA_STORE must be filesystem, cloudinary or off")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
