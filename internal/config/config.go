package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const defaultDSN = "host=localhost user=postgres password=postgres dbname=dhuni port=5432 sslmode=disable"

type Config struct {
	HTTPPort    string        `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseDSN string        `env:"DATABASE_DSN" envDefault:"host=localhost user=postgres password=postgres dbname=dhuni port=5432 sslmode=disable"`
	JWTSecret   string        `env:"JWT_SECRET"`
	TokenTTL    time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	CORSOrigins string        `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:5173"`

	PasswordResetTTL time.Duration `env:"PASSWORD_RESET_TTL" envDefault:"1h"`
	PasswordResetURL string        `env:"PASSWORD_RESET_URL" envDefault:"http://localhost:5173/reset-password"`
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"info"`

	// Redis is optional; without it revocations and locks stay in-process.
	RedisAddress  string `env:"REDIS_ADDRESS"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	StorageProvider      string `env:"STORAGE_PROVIDER" envDefault:"local"`
	LocalStoragePath     string `env:"LOCAL_STORAGE_PATH" envDefault:"./item-images"`
	StorageAccessBaseURL string `env:"STORAGE_ACCESS_BASE_URL" envDefault:"/files"`
	GCSBucket            string `env:"GCS_BUCKET"`
	GCSCredentialsJSON   string `env:"GCS_CREDENTIALS_JSON"`
	MaxUploadBytes       int64  `env:"MAX_UPLOAD_BYTES" envDefault:"5242880"`
	MaxImagesPerItem     int    `env:"MAX_IMAGES_PER_ITEM" envDefault:"5"`

	DefaultPhoneRegion string `env:"DEFAULT_PHONE_REGION" envDefault:"IN"`
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := GetLogger()
	if cfg.DatabaseDSN == defaultDSN {
		logger.Warn("DATABASE_DSN uses the default value, set your own Postgres connection for production")
	}
	if cfg.CORSOrigins == "http://localhost:5173" {
		logger.Warn("CORS_ALLOWED_ORIGINS uses the default value, set your own domain for production")
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}
	switch strings.ToLower(c.StorageProvider) {
	case "local":
	case "gcs":
		if c.GCSBucket == "" {
			return errors.New("GCS_BUCKET is required when STORAGE_PROVIDER=gcs")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_PROVIDER %q", c.StorageProvider)
	}
	if c.PasswordResetTTL <= 0 {
		return errors.New("PASSWORD_RESET_TTL must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	}
	if c.MaxImagesPerItem <= 0 {
		return errors.New("MAX_IMAGES_PER_ITEM must be positive")
	}
	return nil
}

// CORSOriginList splits the comma separated origin list.
func (c *Config) CORSOriginList() []string {
	parts := strings.Split(c.CORSOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
