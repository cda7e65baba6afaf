package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient configures a Redis client from a URL and verifies connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, unavailable("ping redis", err)
	}

	return client, nil
}

// OpenWithFallback opens primary. When the backend reports
// ErrStorageUnavailable the failure is logged and an opened in-memory store
// is returned instead, so the session keeps working on transient data.
// Other errors are returned as is.
func OpenWithFallback(ctx context.Context, primary Store, logger *slog.Logger) (Store, error) {
	if primary != nil {
		err := primary.Open(ctx)
		if err == nil {
			return primary, nil
		}
		if !errors.Is(err, ErrStorageUnavailable) {
			return nil, err
		}
		if logger != nil {
			logger.Warn("durable storage unavailable, using in-memory store for this session", "error", err)
		}
		_ = primary.Close()
	}

	mem := NewMemory()
	if err := mem.Open(ctx); err != nil {
		return nil, err
	}
	return mem, nil
}
