package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const defaultPingTimeout = 5 * time.Second

// Options describes the single Redis deployment backing carts, summary
// caches and the job queue.
type Options struct {
	Addr     string
	Password string
	DB       int
	// ClientName tags connections in CLIENT LIST, e.g. "b2b-api" or "b2b-worker".
	ClientName  string
	PingTimeout time.Duration
}

func (o Options) redis() *redis.Options {
	return &redis.Options{
		Addr:       o.Addr,
		Password:   o.Password,
		DB:         o.DB,
		ClientName: o.ClientName,
	}
}

// Queue returns the asynq connection settings for the same deployment so the
// API, worker and jobctl never disagree on where tasks live.
func (o Options) Queue() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: o.Addr, Password: o.Password, DB: o.DB}
}

// New creates a Redis client and verifies connectivity.
func New(ctx context.Context, opts Options) (*redis.Client, error) {
	if opts.Addr == "" {
		return nil, errors.New("platform/cache: redis address required")
	}
	client := redis.NewClient(opts.redis())

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("platform/cache: ping %s db %d: %w", opts.Addr, opts.DB, err)
	}
	return client, nil
}
