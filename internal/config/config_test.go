package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/neuroforge/trainlink/internal/session"
	"github.com/neuroforge/trainlink/internal/testutil/testlog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trainlink.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadClientConfigEmptyPathReturnsDefaults(t *testing.T) {
	testlog.Start(t)
	cfg, err := LoadClientConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := DefaultClientConfig()
	if cfg.Session.Host != def.Session.Host || cfg.HistoryPath != def.HistoryPath {
		t.Fatalf("defaults not returned: %+v", cfg)
	}
}

func TestLoadClientConfigPartialOverride(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, strings.Join([]string{
		`host = "train.example.com"`,
		`port = 9443`,
		`auth_token = "tok"`,
		`request_timeout = "5s"`,
		`history_path = "/tmp/runs.db"`,
	}, "\n"))

	cfg, err := LoadClientConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Session.Host != "train.example.com" || cfg.Session.Port != 9443 {
		t.Fatalf("endpoint not applied: %+v", cfg.Session)
	}
	if cfg.Session.AuthToken != "tok" {
		t.Fatalf("auth token got=%q", cfg.Session.AuthToken)
	}
	if cfg.Session.RequestTimeout != 5*time.Second {
		t.Fatalf("request timeout got=%v", cfg.Session.RequestTimeout)
	}
	// Undefined keys keep their defaults.
	if cfg.Session.PingInterval != session.DefaultConfig().PingInterval {
		t.Fatalf("ping interval should be default, got %v", cfg.Session.PingInterval)
	}
	if cfg.HistoryPath != "/tmp/runs.db" {
		t.Fatalf("history path got=%q", cfg.HistoryPath)
	}
}

func TestLoadClientConfigBadDuration(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `ping_interval = "soon"`)
	if _, err := LoadClientConfig(path); err == nil {
		t.Fatal("expected error for unparseable duration")
	}
}

func TestLoadServerConfig(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, strings.Join([]string{
		`addr = ":9000"`,
		`train_tick = "50ms"`,
		`redis_addr = "localhost:6379"`,
		`cors_origins = ["http://editor.local"]`,
	}, "\n"))

	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9000" || cfg.TrainTick != 50*time.Millisecond {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Fatalf("redis addr got=%q", cfg.RedisAddr)
	}
	if len(cfg.CorsOrigins) != 1 || cfg.CorsOrigins[0] != "http://editor.local" {
		t.Fatalf("cors origins got=%v", cfg.CorsOrigins)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestServerConfigWithEnv(t *testing.T) {
	testlog.Start(t)
	t.Setenv(EnvListenAddr, ":7777")
	t.Setenv(session.EnvAuthToken, "env-token")
	t.Setenv(EnvRedisAddr, "redis:6379")

	cfg := DefaultServerConfig().WithEnv()
	if cfg.Addr != ":7777" || cfg.AuthToken != "env-token" || cfg.RedisAddr != "redis:6379" {
		t.Fatalf("env overlay not applied: %+v", cfg)
	}
}

func TestServerConfigValidate(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultServerConfig()
	cfg.Addr = " "
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty addr")
	}
	cfg = DefaultServerConfig()
	cfg.TrainTick = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero tick")
	}
}
