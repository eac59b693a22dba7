// Package redis builds the shared go-redis client from service configuration
// and exposes it as a liveness-checkable handle for the health endpoint.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"idem/internal/platform/config"
	"idem/pkg/platform/sentinel"
)

// Client wraps the go-redis client so callers get a Health probe alongside
// the raw commands.
type Client struct {
	*redis.Client
}

// New connects using the configured URL and pool settings, verifying the
// connection with a ping. An empty URL means Redis is not configured and
// yields a nil client with no error.
func New(cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{Client: client}, nil
}

// Health pings the server, wrapping failures in sentinel.ErrUnavailable so
// the health endpoint can classify them.
func (c *Client) Health(ctx context.Context) error {
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: redis: %v", sentinel.ErrUnavailable, err)
	}
	return nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.Client.Close()
}
