package queue

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Backend names accepted by Open.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Backend is an opened Queue plus its connection lifecycle.
type Backend struct {
	Queue
	Name string

	db    *sql.DB
	redis *redis.Client
}

// Open builds the named backend. Postgres reuses db; Redis dials redisAddr.
func Open(ctx context.Context, name string, db *sql.DB, redisAddr string, opts Options, metrics *Metrics) (*Backend, error) {
	switch name {
	case BackendPostgres, "":
		if db == nil {
			return nil, fmt.Errorf("queue: postgres backend needs a database")
		}
		return &Backend{Queue: NewPostgresQueue(db, opts, metrics), Name: BackendPostgres, db: db}, nil
	case BackendRedis:
		client, err := ConnectRedis(ctx, redisAddr)
		if err != nil {
			return nil, err
		}
		return &Backend{Queue: NewRedisQueue(client, opts, metrics), Name: BackendRedis, redis: client}, nil
	default:
		return nil, fmt.Errorf("queue: unknown backend %q", name)
	}
}

// Ping checks the backend connection.
func (b *Backend) Ping(ctx context.Context) error {
	if b.redis != nil {
		return b.redis.Ping(ctx).Err()
	}
	return b.db.PingContext(ctx)
}

// Close releases the Redis client. The Postgres pool belongs to the caller.
func (b *Backend) Close() error {
	if b.redis != nil {
		return b.redis.Close()
	}
	return nil
}
