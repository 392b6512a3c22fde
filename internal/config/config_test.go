package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"SURVEY_CONFIG", "DB_PATH", "GRPC_ADDRESS", "HTTP_ADDRESS", "JWT_SECRET", "ROOM_SECRET",
		"LOG_LEVEL", "GRPC_RATE_LIMIT", "GRPC_RATE_BURST", "GRPC_SEND_BUFFER", "ONE_TIME_INTERVAL", "RECURRING_POLL_INTERVAL"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadWithDefaults_Succeeds(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadWithDefaults()
	if err != nil {
		t.Fatalf("LoadWithDefaults: %v", err)
	}
	if cfg.GRPC.Address == "" || cfg.Database.Path == "" || cfg.Auth.JWTSecret == "" || cfg.Auth.RoomSecret == "" {
		t.Fatalf("unexpected empty defaults: %+v", cfg)
	}
	if cfg.Scheduler.OneTimeInterval != time.Minute || cfg.Scheduler.RecurringPollInterval != 60*time.Second {
		t.Fatalf("unexpected scheduler defaults: %+v", cfg.Scheduler)
	}
}

func TestLoad_RequiresSecrets(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_PATH", "test.db")
	t.Setenv("GRPC_ADDRESS", ":1234")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error when JWT_SECRET is not set")
	}
	t.Setenv("JWT_SECRET", "x")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error when ROOM_SECRET is not set")
	}
	t.Setenv("ROOM_SECRET", "y")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load with secrets set: %v", err)
	}
	if cfg.Database.Path != "test.db" || cfg.GRPC.Address != ":1234" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "survey.yaml")
	body := `
database:
  path: from-file.db
grpc:
  address: ":6000"
  rate_limit: 5
auth:
  jwt_secret: file-jwt
  room_secret: file-room
scheduler:
  one_time_interval: 30s
  recurring_poll_interval: 24h
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SURVEY_CONFIG", path)
	t.Setenv("GRPC_ADDRESS", ":7000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path != "from-file.db" || cfg.GRPC.Address != ":7000" || cfg.GRPC.RateLimit != 5 {
		t.Fatalf("file/env precedence wrong: %+v", cfg)
	}
	if cfg.Scheduler.OneTimeInterval != 30*time.Second || cfg.Scheduler.RecurringPollInterval != 24*time.Hour {
		t.Fatalf("durations not parsed: %+v", cfg.Scheduler)
	}
	if cfg.GRPC.RateBurst != 40 {
		t.Fatalf("unset file fields should keep defaults: %+v", cfg.GRPC)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("ONE_TIME_INTERVAL", "soon")
	if _, err := LoadWithDefaults(); err == nil {
		t.Fatalf("expected error for bad duration")
	}
	t.Setenv("ONE_TIME_INTERVAL", "0s")
	if _, err := LoadWithDefaults(); err == nil {
		t.Fatalf("expected error for zero interval")
	}
	t.Setenv("ONE_TIME_INTERVAL", "1m")
	t.Setenv("GRPC_RATE_BURST", "many")
	if _, err := LoadWithDefaults(); err == nil {
		t.Fatalf("expected error for bad integer")
	}
	t.Setenv("GRPC_RATE_BURST", "10")
	t.Setenv("SURVEY_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := LoadWithDefaults(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestString_MasksSecrets(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "super-secret-jwt")
	t.Setenv("ROOM_SECRET", "super-secret-room")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := cfg.String()
	if strings.Contains(s, "super-secret") || !strings.Contains(s, "masked") {
		t.Fatalf("secrets leaked or not masked: %s", s)
	}
}
