package devops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the subset of a Redis client the cached source uses.
// *redis.Client satisfies it.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

const cacheKeyPrefix = "pipelinehub:pipelines:"

// CachedSource serves project pipelines from a cache, falling back to the
// wrapped source on a miss. Cache failures are logged and never fail a call.
type CachedSource struct {
	source PipelineSource
	cache  Cache
	ttl    time.Duration
}

var _ PipelineSource = (*CachedSource)(nil)

// NewCachedSource wraps source with a cache whose entries live for ttl.
func NewCachedSource(source PipelineSource, cache Cache, ttl time.Duration) *CachedSource {
	return &CachedSource{source: source, cache: cache, ttl: ttl}
}

func (s *CachedSource) GetProjectPipelines(ctx context.Context, projectID string) ([]PipelineInfo, error) {
	key := cacheKeyPrefix + projectID

	data, err := s.cache.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []PipelineInfo
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
		slog.Warn("Discarding undecodable cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		slog.Warn("Pipeline cache read failed", "key", key, "error", err)
	}

	pipelines, err := s.source.GetProjectPipelines(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(pipelines); err == nil {
		if err := s.cache.Set(ctx, key, data, s.ttl).Err(); err != nil {
			slog.Warn("Pipeline cache write failed", "key", key, "error", err)
		}
	}
	return pipelines, nil
}

// ConnectRedis opens a Redis client from a redis:// URL and verifies it.
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("Connected to Redis", "addr", opts.Addr)
	return client, nil
}
