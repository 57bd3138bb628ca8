package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "bookshare.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BOOKSHARE_API_URL", "https://books.example.com/api")
	t.Setenv("BOOKSHARE_STORE", "Redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("BOOKSHARE_PAGE_LIMIT", "5")
	t.Setenv("BOOKSHARE_REFRESH_DELAY", "1.5s")
	t.Setenv("BOOKSHARE_REQUEST_TIMEOUT", "30s")
	t.Setenv("BOOKSHARE_REJECT_EXPIRED_TOKENS", "true")

	cfgPath := writeConfig(t, `
apiURL: "http://localhost:3000/api"
logLevel: "debug"
store: "file"
dataDir: "/tmp/bookshare"
pageLimit: 2
`)
	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.APIURL != "https://books.example.com/api" {
		t.Fatalf("apiURL = %q", cfg.APIURL)
	}
	if cfg.Store != "redis" || cfg.RedisAddr != "localhost:6379" {
		t.Fatalf("store = %q redisAddr = %q", cfg.Store, cfg.RedisAddr)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("logLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.PageLimit != 5 {
		t.Fatalf("pageLimit = %d, want 5", cfg.PageLimit)
	}
	if cfg.RefreshDelay() != 1500*time.Millisecond {
		t.Fatalf("refreshDelay = %s, want 1.5s", cfg.RefreshDelay())
	}
	if cfg.RequestTimeout() != 30*time.Second {
		t.Fatalf("requestTimeout = %s, want 30s", cfg.RequestTimeout())
	}
	if !cfg.RejectExpiredTokens {
		t.Fatalf("rejectExpiredTokens = false, want true")
	}
}

func TestLoadKeepsSubSecondRequestTimeout(t *testing.T) {
	t.Setenv("BOOKSHARE_REQUEST_TIMEOUT", "500ms")

	cfg, err := Load(writeConfig(t, `dataDir: "/tmp/bookshare"`))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.RequestTimeout() != 500*time.Millisecond {
		t.Fatalf("requestTimeout = %s, want 500ms", cfg.RequestTimeout())
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BOOKSHARE_DATA_DIR", "/var/lib/bookshare")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Store != "file" || cfg.DataDir != "/var/lib/bookshare" {
		t.Fatalf("unexpected store settings %+v", cfg)
	}
	if cfg.PageLimit != 2 || cfg.RefreshDelay() != 800*time.Millisecond {
		t.Fatalf("unexpected paging defaults %+v", cfg)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for a missing explicit config file")
	}
}

func TestValidateConfigRejectsBadSettings(t *testing.T) {
	base := FileConfig{
		APIURL:                "http://localhost:3000/api",
		Store:                 "file",
		PageLimit:             2,
		RequestTimeoutMillis:  10000,
	}
	if err := validateConfig(base); err != nil {
		t.Fatalf("base config rejected: %v", err)
	}

	cases := map[string]func(*FileConfig){
		"relative api url":   func(c *FileConfig) { c.APIURL = "/api" },
		"unknown store":      func(c *FileConfig) { c.Store = "sqlite" },
		"redis without addr": func(c *FileConfig) { c.Store = "redis" },
		"postgres no dsn":    func(c *FileConfig) { c.Store = "postgres" },
		"short seal key":     func(c *FileConfig) { c.SealKey = base64.StdEncoding.EncodeToString([]byte("short")) },
		"zero page limit":    func(c *FileConfig) { c.PageLimit = 0 },
		"negative refresh":   func(c *FileConfig) { c.RefreshDelayMillis = -1 },
		"zero timeout":       func(c *FileConfig) { c.RequestTimeoutMillis = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			if err := validateConfig(cfg); err == nil {
				t.Fatalf("validateConfig() expected error")
			}
		})
	}
}

func TestKVCarriesSealKey(t *testing.T) {
	key := strings.Repeat("k", 32)
	cfg := FileConfig{Store: "memory", SealKey: base64.StdEncoding.EncodeToString([]byte(key))}
	kvCfg, err := cfg.KV()
	if err != nil {
		t.Fatalf("kv config: %v", err)
	}
	if string(kvCfg.SealKey) != key || kvCfg.Backend != "memory" {
		t.Fatalf("unexpected kv config %+v", kvCfg)
	}
}
