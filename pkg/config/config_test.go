package config

import (
	"os"
	"path/filepath"
	"testing"
)

const validYAML = `
environment: development
log:
  level: debug
  format: console
binance:
  symbols: [BTCUSDT, ETHUSDT]
  timeframes: [1h, 4h]
  request_timeout: 10s
server:
  port: 8080
scheduler:
  enabled: true
  interval: 1m
kafka:
  brokers: [localhost:9092]
redis:
  host: localhost
  port: 6379
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	c, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if c.Environment != "development" {
		t.Fatalf("environment = %s", c.Environment)
	}
	if len(c.Binance.Symbols) != 2 || c.Binance.Symbols[0] != "BTCUSDT" {
		t.Fatalf("symbols = %v", c.Binance.Symbols)
	}
	if !c.Scheduler.Enabled {
		t.Fatalf("scheduler should be enabled")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidateRejectsEmptySymbols(t *testing.T) {
	yaml := `
environment: development
binance:
  symbols: []
`
	if _, err := Load(writeConfig(t, yaml)); err == nil {
		t.Fatalf("expected error for empty symbols")
	}
}

func TestValidateRejectsUnknownTimeframe(t *testing.T) {
	yaml := `
environment: development
binance:
  symbols: [BTCUSDT]
  timeframes: [7m]
`
	if _, err := Load(writeConfig(t, yaml)); err == nil {
		t.Fatalf("expected error for unsupported timeframe")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("SYMBOLS", "SOLUSDT,ADAUSDT")
	t.Setenv("REDIS_HOST", "redis.internal")

	c, err := LoadWithEnv(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(c.Binance.Symbols) != 2 || c.Binance.Symbols[0] != "SOLUSDT" {
		t.Fatalf("env override lost: %v", c.Binance.Symbols)
	}
	if c.Redis.Host != "redis.internal" {
		t.Fatalf("redis host = %s", c.Redis.Host)
	}
}
