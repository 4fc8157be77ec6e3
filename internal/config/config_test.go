package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AppName != "Reserve" || cfg.Persistence != PersistenceMemory {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.ShutdownPeriod != 10*time.Second || cfg.IdempotencyTTL != 24*time.Hour {
		t.Fatalf("unexpected durations %s %s", cfg.ShutdownPeriod, cfg.IdempotencyTTL)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %s", cfg.Address())
	}
}

func TestLoadRequiresBackendURL(t *testing.T) {
	t.Setenv("PERSISTENCE", "postgres")
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}

	t.Setenv("PERSISTENCE", "Redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Persistence != PersistenceRedis {
		t.Fatalf("expected redis persistence, got %s", cfg.Persistence)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("PERSISTENCE", "sqlite")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestLoadParsesDurations(t *testing.T) {
	t.Setenv("PERSISTENCE", "memory")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("PORT", ":9000")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ShutdownPeriod != 3*time.Second || cfg.Address() != ":9000" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadParsesAdminActors(t *testing.T) {
	t.Setenv("PERSISTENCE", "memory")
	t.Setenv("ADMIN_ACTORS", "ops,named:root")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.AdminActors) != 2 || cfg.AdminActors[0] != "ops" || cfg.AdminActors[1] != "named:root" {
		t.Fatalf("unexpected admin actors %v", cfg.AdminActors)
	}
}
