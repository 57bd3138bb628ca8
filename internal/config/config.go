package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"bookshare/pkg/kv"
)

// ConfigPath is read when no --config flag is given. It may be absent.
const ConfigPath = "bookshare.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	APIURL                string `yaml:"apiURL"`
	LogLevel              string `yaml:"logLevel"`
	Store                 string `yaml:"store"`
	DataDir               string `yaml:"dataDir"`
	RedisAddr             string `yaml:"redisAddr"`
	RedisPassword         string `yaml:"redisPassword"`
	RedisPrefix           string `yaml:"redisPrefix"`
	DatabaseURL           string `yaml:"databaseURL"`
	SealKey               string `yaml:"sealKey"`
	PageLimit             int    `yaml:"pageLimit"`
	RefreshDelayMillis    int    `yaml:"refreshDelayMillis"`
	RequestTimeoutMillis  int    `yaml:"requestTimeoutMillis"`
	RejectExpiredTokens   bool   `yaml:"rejectExpiredTokens"`
}

func defaults() FileConfig {
	return FileConfig{
		APIURL:                "http://localhost:3000/api",
		LogLevel:              "warn",
		Store:                 kv.BackendFile,
		PageLimit:             2,
		RefreshDelayMillis:    800,
		RequestTimeoutMillis:  10000,
	}
}

// Load reads config from path (defaults to ConfigPath), applies environment
// overrides and validates the result. A missing default file is not an error.
func Load(path string) (FileConfig, error) {
	cfg := defaults()
	explicit := path != ""
	if !explicit {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	// Override with environment variables
	if v := os.Getenv("BOOKSHARE_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv("BOOKSHARE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("BOOKSHARE_STORE"); v != "" {
		cfg.Store = v
	}
	if v := os.Getenv("BOOKSHARE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("BOOKSHARE_SEAL_KEY"); v != "" {
		cfg.SealKey = v
	}
	if v := os.Getenv("BOOKSHARE_PAGE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PageLimit = n
		}
	}
	if v := os.Getenv("BOOKSHARE_REFRESH_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RefreshDelayMillis = int(d / time.Millisecond)
		}
	}
	if v := os.Getenv("BOOKSHARE_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RequestTimeoutMillis = int(d / time.Millisecond)
		}
	}
	if v := os.Getenv("BOOKSHARE_REJECT_EXPIRED_TOKENS"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.RejectExpiredTokens = enabled
		}
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	if cfg.Store == "" {
		cfg.Store = kv.BackendFile
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = defaultDataDir()
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "bookshare")
	}
	return ".bookshare"
}

func validateConfig(cfg FileConfig) error {
	u, err := url.Parse(cfg.APIURL)
	if cfg.APIURL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("config: apiURL must be an http(s) URL (set in bookshare.yaml or BOOKSHARE_API_URL)")
	}
	switch cfg.Store {
	case kv.BackendFile, kv.BackendMemory:
	case kv.BackendRedis:
		if cfg.RedisAddr == "" {
			return errors.New("config: redisAddr is required for the redis store (set in bookshare.yaml or REDIS_ADDR)")
		}
	case kv.BackendPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("config: databaseURL is required for the postgres store (set in bookshare.yaml or DATABASE_URL)")
		}
	default:
		return fmt.Errorf("config: unknown store %q (want file, memory, redis or postgres)", cfg.Store)
	}
	if strings.TrimSpace(cfg.SealKey) != "" {
		if _, err := cfg.SealKeyBytes(); err != nil {
			return err
		}
	}
	if cfg.PageLimit <= 0 {
		return errors.New("config: pageLimit must be > 0 (set in bookshare.yaml or BOOKSHARE_PAGE_LIMIT)")
	}
	if cfg.RefreshDelayMillis < 0 {
		return errors.New("config: refreshDelayMillis must be >= 0")
	}
	if cfg.RequestTimeoutMillis <= 0 {
		return errors.New("config: requestTimeoutMillis must be > 0 (set in bookshare.yaml or BOOKSHARE_REQUEST_TIMEOUT)")
	}
	return nil
}

// SealKeyBytes decodes the base64 sealing key. It returns nil when no key is set.
func (c FileConfig) SealKeyBytes() ([]byte, error) {
	raw := strings.TrimSpace(c.SealKey)
	if raw == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(key) != 32 {
		return nil, errors.New("config: sealKey must be 32 bytes, base64 encoded (BOOKSHARE_SEAL_KEY)")
	}
	return key, nil
}

// KV returns the key/value store settings.
func (c FileConfig) KV() (kv.Config, error) {
	key, err := c.SealKeyBytes()
	if err != nil {
		return kv.Config{}, err
	}
	return kv.Config{
		Backend:       c.Store,
		Dir:           c.DataDir,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisPrefix:   c.RedisPrefix,
		DatabaseURL:   c.DatabaseURL,
		SealKey:       key,
	}, nil
}

func (c FileConfig) RefreshDelay() time.Duration {
	return time.Duration(c.RefreshDelayMillis) * time.Millisecond
}

func (c FileConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMillis) * time.Millisecond
}
