package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	devJWTSecret = "dev-only-insecure-secret"
)

type Config struct {
	Port              string
	FrontendURL       string
	StoreDriver       string
	DatabaseURL       string
	JWTSecret         string
	AccessTokenTTL    time.Duration
	DataEncryptionKey string
	LoginMaxAttempts  int
	LoginWindow       time.Duration
	Production        bool
}

// Load reads the configuration from the environment. Call godotenv.Load first
// when a .env file should be honoured.
func Load() (*Config, error) {
	cfg := &Config{
		Port:              env("PORT", "8080"),
		FrontendURL:       env("FRONTEND_URL", "http://localhost:3000"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		DataEncryptionKey: os.Getenv("DATA_ENCRYPTION_KEY"),
		Production: os.Getenv("GIN_MODE") == "release" ||
			os.Getenv("ENVIRONMENT") == "production" ||
			os.Getenv("ENV") == "production",
	}

	cfg.StoreDriver = os.Getenv("STORE_DRIVER")
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = StoreMemory
		if cfg.DatabaseURL != "" {
			cfg.StoreDriver = StorePostgres
		}
	}
	if cfg.StoreDriver != StoreMemory && cfg.StoreDriver != StorePostgres {
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.StoreDriver == StorePostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for the postgres store")
	}

	if cfg.JWTSecret == "" {
		if cfg.Production {
			return nil, fmt.Errorf("JWT_SECRET environment variable is required in production")
		}
		log.Println("⚠️ JWT_SECRET not set, using development secret")
		cfg.JWTSecret = devJWTSecret
	}

	if cfg.DataEncryptionKey != "" && len(cfg.DataEncryptionKey) != 32 {
		return nil, fmt.Errorf("DATA_ENCRYPTION_KEY must be exactly 32 characters")
	}

	var err error
	if cfg.AccessTokenTTL, err = durationEnv("ACCESS_TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.LoginWindow, err = durationEnv("LOGIN_WINDOW", 15*time.Minute); err != nil {
		return nil, err
	}

	cfg.LoginMaxAttempts = 5
	if v := os.Getenv("LOGIN_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid LOGIN_MAX_ATTEMPTS %q", v)
		}
		cfg.LoginMaxAttempts = n
	}

	return cfg, nil
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func durationEnv(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", k, err)
	}
	return d, nil
}
