// Package redis holds the Redis-backed session mirror and pending-approval
// marker store.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dialTimeout = 5 * time.Second

// Options configures Open.
type Options struct {
	Addr       string
	Password   string
	DB         int
	PendingTTL time.Duration
}

// Stores shares one client between the session mirror and the pending
// marker store.
type Stores struct {
	client  *redis.Client
	Session *SessionMirror
	Pending *PendingStore
}

// Open dials Redis and fails fast if the server does not answer a PING.
func Open(ctx context.Context, opts Options) (*Stores, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: dialTimeout,
	})

	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w", opts.Addr, err)
	}

	return &Stores{
		client:  client,
		Session: NewSessionMirror(client),
		Pending: NewPendingStore(client, opts.PendingTTL),
	}, nil
}

// Ping is the readiness probe.
func (s *Stores) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Stores) Close() error {
	return s.client.Close()
}
