package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ContentCache stores extraction results between runs.
type ContentCache interface {
	Get(ctx context.Context, arxivID string) (ExtractedContent, bool, error)
	Set(ctx context.Context, arxivID string, content ExtractedContent) error
}

// NewContentCache returns a redis-backed cache, or a no-op cache when no
// address is configured.
func NewContentCache(cfg CacheConfig) ContentCache {
	if cfg.Addr == "" {
		return noopCache{}
	}
	return NewRedisCache(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}), cfg.TTL)
}

// RedisCache keeps ExtractedContent as JSON under paper-relay:extract:<id>.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func cacheKey(arxivID string) string {
	return "paper-relay:extract:" + arxivID
}

// Get returns the cached content; ok is false on a miss.
func (c *RedisCache) Get(ctx context.Context, arxivID string) (ExtractedContent, bool, error) {
	raw, err := c.client.Get(ctx, cacheKey(arxivID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ExtractedContent{}, false, nil
	}
	if err != nil {
		return ExtractedContent{}, false, fmt.Errorf("redis get %s: %w", arxivID, err)
	}

	var content ExtractedContent
	if err := json.Unmarshal(raw, &content); err != nil {
		return ExtractedContent{}, false, fmt.Errorf("decode cached content %s: %w", arxivID, err)
	}
	return content, true, nil
}

// Set stores content with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, arxivID string, content ExtractedContent) error {
	raw, err := json.Marshal(content)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, cacheKey(arxivID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", arxivID, err)
	}
	return nil
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (ExtractedContent, bool, error) {
	return ExtractedContent{}, false, nil
}

func (noopCache) Set(context.Context, string, ExtractedContent) error { return nil }
