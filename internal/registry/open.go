package registry

import (
	"context"
	"fmt"
)

// Backend names accepted by OpenKV.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// KVConfig selects and configures a KV backend.
type KVConfig struct {
	Backend    string
	SQLitePath string
	RedisURL   string
}

// OpenKV opens the backend named by cfg.Backend. An empty name selects the
// in-memory cache.
func OpenKV(ctx context.Context, cfg KVConfig) (KV, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryKV(), nil
	case BackendSQLite:
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite backend requires a database path")
		}
		kv, err := NewSQLiteKV(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return kv, nil
	case BackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("redis backend requires a redis URL")
		}
		client, err := NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return NewRedisKV(client), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
