// Package storage holds the Redis connection and key layout shared by usage
// accounting and conversation sessions.
package storage

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/s33g/typedchat/internal/config"
)

const (
	connectTimeout = 5 * time.Second
	ioTimeout      = 3 * time.Second
)

// Client is a Redis connection plus the key layout under the configured prefix.
type Client struct {
	rdb  *redis.Client
	keys *Keys
}

// NewClient dials Redis and fails unless it answers a PING within the
// connect timeout. The password, if any, is read from cfg.PasswordEnv.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	var password string
	if cfg.PasswordEnv != "" {
		password = os.Getenv(cfg.PasswordEnv)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     password,
		DB:           cfg.DB,
		DialTimeout:  connectTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis %s unreachable: %w", cfg.Address, err)
	}

	return &Client{rdb: rdb, keys: NewKeys(cfg.KeyPrefix)}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Redis exposes the underlying client for pipelines and typed commands.
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

func (c *Client) Keys() *Keys {
	return c.keys
}
