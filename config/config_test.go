package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"PORT", "FRONTEND_URL", "STORE_DRIVER", "DATABASE_URL", "JWT_SECRET",
		"ACCESS_TOKEN_TTL", "DATA_ENCRYPTION_KEY", "LOGIN_MAX_ATTEMPTS", "LOGIN_WINDOW",
		"GIN_MODE", "ENVIRONMENT", "ENV",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.StoreDriver != StoreMemory {
		t.Errorf("StoreDriver = %q", cfg.StoreDriver)
	}
	if cfg.JWTSecret != devJWTSecret {
		t.Errorf("JWTSecret = %q", cfg.JWTSecret)
	}
	if cfg.AccessTokenTTL != 24*time.Hour || cfg.LoginWindow != 15*time.Minute || cfg.LoginMaxAttempts != 5 {
		t.Errorf("unexpected auth defaults: %+v", cfg)
	}
}

func TestLoadPicksPostgresWhenDatabaseURLSet(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/finance")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StoreDriver != StorePostgres {
		t.Errorf("StoreDriver = %q, want postgres", cfg.StoreDriver)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown driver", map[string]string{"STORE_DRIVER": "mongo"}},
		{"postgres without url", map[string]string{"STORE_DRIVER": "postgres"}},
		{"production without secret", map[string]string{"GIN_MODE": "release"}},
		{"short encryption key", map[string]string{"DATA_ENCRYPTION_KEY": "short"}},
		{"bad ttl", map[string]string{"ACCESS_TOKEN_TTL": "soon"}},
		{"bad attempts", map[string]string{"LOGIN_MAX_ATTEMPTS": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
