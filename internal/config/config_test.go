package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.StoreBackend != "sqlite" || cfg.SQLitePath != "data/stride.db" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.AutosaveInterval != 5*time.Minute || cfg.AITimeout != time.Minute {
		t.Fatalf("durations = %v / %v", cfg.AutosaveInterval, cfg.AITimeout)
	}
	if cfg.QuotaBytes != 5<<20 {
		t.Fatalf("quota = %d", cfg.QuotaBytes)
	}
	if cfg.AIEnabled() {
		t.Fatal("AI must be disabled without a key")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STRIDE_ADDR", ":9999")
	t.Setenv("STRIDE_STORE", "redis")
	t.Setenv("STRIDE_REDIS_ADDR", "cache:6380")
	t.Setenv("STRIDE_AUTOSAVE_INTERVAL", "30s")
	t.Setenv("STRIDE_AI_API_KEY", "sk-test")
	t.Setenv("STRIDE_CORS_ORIGINS", "http://a.example, http://b.example")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.StoreBackend != "redis" || cfg.RedisAddr != "cache:6380" {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.AutosaveInterval != 30*time.Second {
		t.Fatalf("autosave = %v", cfg.AutosaveInterval)
	}
	if !cfg.AIEnabled() {
		t.Fatal("AI should be enabled")
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Fatalf("cors = %q", cfg.CORSOrigins)
	}
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stride.yaml")
	body := "addr: \":7000\"\nstore: memory\nlog_level: debug\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STRIDE_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":7000" || cfg.StoreBackend != "memory" {
		t.Fatalf("file not applied: %+v", cfg)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("env should win over file, got %q", cfg.LogLevel)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{StoreBackend: "memory", AutosaveInterval: time.Minute, AITimeout: time.Second, LogFormat: "json"}
	}
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown store", func(c *Config) { c.StoreBackend = "etcd" }},
		{"sqlite without path", func(c *Config) { c.StoreBackend = "sqlite" }},
		{"redis without addr", func(c *Config) { c.StoreBackend = "redis" }},
		{"negative quota", func(c *Config) { c.QuotaBytes = -1 }},
		{"zero autosave", func(c *Config) { c.AutosaveInterval = 0 }},
		{"zero ai timeout", func(c *Config) { c.AITimeout = 0 }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
	}
	ok := base()
	if err := ok.Validate(); err != nil {
		t.Fatalf("base config invalid: %v", err)
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
