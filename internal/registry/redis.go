package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/endharassment/rdap-bootstrap/internal/bootstrap"
)

// Redis key prefix for cached registry files.
const redisKeyPrefix = "rdap:bootstrap:"

// NewRedisClient connects to the Redis server at url and checks it responds.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// RedisKV stores each document as a hash and lets Redis expire it, so
// several service instances share one download.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV wraps a connected client. Close closes the client.
func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

func redisKey(id bootstrap.RegistryID) string {
	return redisKeyPrefix + string(id)
}

// Get implements KV.
func (k *RedisKV) Get(ctx context.Context, id bootstrap.RegistryID) (*Document, error) {
	fields, err := k.client.HGetAll(ctx, redisKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	body, ok := fields["body"]
	if !ok {
		return nil, ErrNotCached
	}
	doc := &Document{ID: id, Body: []byte(body)}
	doc.Modified, _ = time.Parse(time.RFC3339, fields["modified"])
	doc.Expires, _ = time.Parse(time.RFC3339, fields["expires"])
	return doc, nil
}

// Put implements KV. The hash write and its expiry are sent in one
// transaction.
func (k *RedisKV) Put(ctx context.Context, doc *Document) error {
	key := redisKey(doc.ID)
	_, err := k.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]any{
			"body":     doc.Body,
			"modified": doc.Modified.UTC().Format(time.RFC3339),
			"expires":  doc.Expires.UTC().Format(time.RFC3339),
		})
		pipe.ExpireAt(ctx, key, doc.Expires)
		return nil
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", doc.ID, err)
	}
	return nil
}

// Close closes the Redis connection.
func (k *RedisKV) Close() error {
	return k.client.Close()
}
