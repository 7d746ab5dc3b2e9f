// Package cache opens the Redis connection behind the trial balance cache.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPingTimeout = 2 * time.Second

// Options configures the Redis connection.
type Options struct {
	Addr        string
	DB          int
	PingTimeout time.Duration
}

// Open builds a Redis client and pings it. The client is returned even when
// the ping fails: reports fall back to Postgres while Redis is down, so the
// caller decides whether an unreachable server is fatal.
func Open(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: opts.Addr, DB: opts.DB})

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return client, fmt.Errorf("cache: ping %s: %w", opts.Addr, err)
	}
	return client, nil
}
