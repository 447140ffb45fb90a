package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
  logLevel: debug
redis:
  addr: localhost:6379
  db: 2
  ttl: 30m
room:
  codeLength: 8
  revealDelay: 3s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Redis.Addr != "localhost:6379" || cfg.Redis.DB != 2 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Room.CodeLength != 8 {
		t.Fatalf("expected code length 8, got %d", cfg.Room.CodeLength)
	}
	if cfg.Server.Level() != slog.LevelDebug {
		t.Fatalf("expected debug level, got %v", cfg.Server.Level())
	}
	if got := TTLDuration(cfg.Room.RevealDelay, time.Second); got != 3*time.Second {
		t.Fatalf("expected 3s reveal delay, got %v", got)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, "redis:\n  addr: localhost:6379\npostgres:\n  url: postgres://file\n")
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("ROOM_SEND_BUFFER", "128")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Redis.Addr != "redis:6380" {
		t.Fatalf("expected env redis addr, got %q", cfg.Redis.Addr)
	}
	if cfg.Postgres.URL != "postgres://file" {
		t.Fatalf("expected file postgres url to survive, got %q", cfg.Postgres.URL)
	}
	if cfg.Room.SendBuffer != 128 {
		t.Fatalf("expected send buffer 128, got %d", cfg.Room.SendBuffer)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, "room:\n  codeLength: 2\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for short room codes")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Level() != slog.LevelInfo {
		t.Fatalf("expected info level by default, got %v", cfg.Server.Level())
	}
	if got := TTLDuration("", 10*time.Minute); got != 10*time.Minute {
		t.Fatalf("expected fallback, got %v", got)
	}
	if got := TTLDuration("soon", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for bad duration, got %v", got)
	}
}
