package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const DefaultTimeout = 5 * time.Second

var ErrNoURL = errors.New("redis url is required")

// Option adjusts parsed client options.
type Option func(*goredis.Options)

// WithTimeout sets dial, read and write timeouts. Values already present in
// the URL query take precedence.
func WithTimeout(d time.Duration) Option {
	return func(o *goredis.Options) {
		if o.DialTimeout == 0 {
			o.DialTimeout = d
		}
		if o.ReadTimeout == 0 {
			o.ReadTimeout = d
		}
		if o.WriteTimeout == 0 {
			o.WriteTimeout = d
		}
	}
}

// WithClientName tags connections so they show up in CLIENT LIST.
func WithClientName(name string) Option {
	return func(o *goredis.Options) {
		if o.ClientName == "" {
			o.ClientName = name
		}
	}
}

// Connect opens a single-node client from a redis:// or rediss:// URL and
// verifies it with a PING before returning.
func Connect(ctx context.Context, redisURL string, opts ...Option) (*goredis.Client, error) {
	if redisURL == "" {
		return nil, ErrNoURL
	}
	o, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	for _, opt := range append(opts, WithTimeout(DefaultTimeout)) {
		opt(o)
	}

	client := goredis.NewClient(o)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Pinger adapts a client for health checks.
func Pinger(client goredis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
