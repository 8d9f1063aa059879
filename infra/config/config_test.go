package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Feed.Symbol != "BTCFDUSD" || cfg.Feed.BookDepth != 5 || cfg.Feed.MaxRetries != 5 {
		t.Errorf("unexpected feed defaults %+v", cfg.Feed)
	}
	if cfg.Feed.Backoff != 5*time.Second || cfg.Window.Retention != 70*time.Second || cfg.Window.Reporting != 60*time.Second {
		t.Errorf("unexpected durations %+v %+v", cfg.Feed, cfg.Window)
	}
	if got := cfg.Server.HTTPListenAddr(); got != ":8080" {
		t.Errorf("HTTPListenAddr = %q", got)
	}
	if cfg.Journal.Retain != 0 || cfg.Journal.BatchSize != 512 {
		t.Errorf("unexpected journal defaults %+v", cfg.Journal)
	}
}

func TestLoadLegacyEnvNames(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("TRADING_PAIR", "ETHUSDT")
	t.Setenv("BOOK_DEPTH", "20")
	t.Setenv("WS_CONFIG_RETRY_MAX", "2")
	t.Setenv("FEED_BACKOFF", "250ms")
	t.Setenv("JOURNAL_RETAIN", "1000")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9000 || cfg.Server.HTTPListenAddr() != ":9000" {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Feed.Symbol != "ETHUSDT" || cfg.Feed.BookDepth != 20 || cfg.Feed.MaxRetries != 2 {
		t.Errorf("unexpected feed %+v", cfg.Feed)
	}
	if cfg.Feed.Backoff != 250*time.Millisecond {
		t.Errorf("backoff = %s", cfg.Feed.Backoff)
	}
	if cfg.Journal.Retain != 1000 {
		t.Errorf("retain = %d", cfg.Journal.Retain)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marketstate.yaml")
	body := []byte(`
feed:
  symbol: SOLUSDT
  book_depth: 10
window:
  retention: 90s
  reporting: 30s
kafka:
  enabled: true
  brokers: ["k1:9092", "k2:9092"]
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Feed.Symbol != "SOLUSDT" || cfg.Feed.BookDepth != 10 {
		t.Errorf("unexpected feed %+v", cfg.Feed)
	}
	if cfg.Window.Retention != 90*time.Second || cfg.Window.Reporting != 30*time.Second {
		t.Errorf("unexpected window %+v", cfg.Window)
	}
	if !cfg.Kafka.Enabled || len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("unexpected kafka %+v", cfg.Kafka)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: ServerConfig{Port: 8080},
			Feed:   FeedConfig{Symbol: "BTCUSDT", BookDepth: 5, MaxRetries: 3, Backoff: time.Second, ReadTimeout: time.Minute},
			Window: WindowConfig{Retention: 70 * time.Second, Reporting: 60 * time.Second},
		}
	}
	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"depth", func(c *Config) { c.Feed.BookDepth = 7 }},
		{"retries", func(c *Config) { c.Feed.MaxRetries = 0 }},
		{"symbol", func(c *Config) { c.Feed.Symbol = "" }},
		{"port", func(c *Config) { c.Server.Port = 70000 }},
		{"window order", func(c *Config) { c.Window.Retention = c.Window.Reporting }},
		{"kafka brokers", func(c *Config) { c.Kafka.Enabled = true }},
		{"journal dir", func(c *Config) { c.Journal.Enabled = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			if err := c.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestLoadRejectsInvalidEnv(t *testing.T) {
	t.Setenv("BOOK_DEPTH", "15")
	if _, err := Load(""); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}
