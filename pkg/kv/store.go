package kv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Store is a durable key -> string store that survives process restarts.
// Delete of a missing key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config selects and configures a backend.
type Config struct {
	Backend       string
	Dir           string
	RedisAddr     string
	RedisPassword string
	RedisPrefix   string
	DatabaseURL   string
	// SealKey, when set, must be 32 bytes; values are encrypted at rest.
	SealKey []byte
}

// Open builds the configured backend.
func Open(cfg Config) (Store, error) {
	var (
		store Store
		err   error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendFile:
		store, err = NewFileStore(cfg.Dir)
	case BackendMemory:
		store = NewMemoryStore()
	case BackendRedis:
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return nil, errors.New("kv: redis addr is required")
		}
		store = NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisPrefix)
	case BackendPostgres:
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, errors.New("kv: database URL is required")
		}
		store, err = NewGormStore(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("kv: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if len(cfg.SealKey) > 0 {
		return NewSealedStore(store, cfg.SealKey)
	}
	return store, nil
}

// Close releases s if its backend holds resources.
func Close(s Store) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
