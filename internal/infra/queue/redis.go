package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ConnectRedis accepts either a redis:// URL or a host:port address.
func ConnectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opt, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: addr})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// redisEnvelope is the list element stored per job.
type redisEnvelope struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Payload      json.RawMessage `json:"payload"`
	SingletonKey string          `json:"singletonKey,omitempty"`
	Attempts     int             `json:"attempts"`
}

// RedisQueue keeps each job name in three lists (ready, processing, dead)
// and guards singleton keys with SET NX.
//
// A job moves ready → processing with BLMOVE. Jobs stranded in processing
// after a worker crash are returned to ready by Recover. Failed jobs go
// straight back to ready; RetryDelay only applies to PostgresQueue.
type RedisQueue struct {
	client  *redis.Client
	prefix  string
	opts    Options
	metrics *Metrics
}

func NewRedisQueue(client *redis.Client, opts Options, metrics *Metrics) *RedisQueue {
	return &RedisQueue{client: client, prefix: "relay:queue:", opts: opts.withDefaults(), metrics: metrics}
}

func (q *RedisQueue) readyKey(name string) string      { return q.prefix + name + ":ready" }
func (q *RedisQueue) processingKey(name string) string { return q.prefix + name + ":processing" }
func (q *RedisQueue) deadKey(name string) string       { return q.prefix + name + ":dead" }
func (q *RedisQueue) singletonKey(name, key string) string {
	return q.prefix + name + ":singleton:" + key
}

func (q *RedisQueue) Publish(ctx context.Context, name string, payload any, opts PublishOptions) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("Publish: marshal payload: %w", err)
	}
	env := redisEnvelope{ID: uuid.NewString(), Name: name, Payload: body, SingletonKey: opts.SingletonKey}

	if opts.SingletonKey != "" {
		// TTL は取りこぼし防止の上限。通常は完了時に削除される
		ok, err := q.client.SetNX(ctx, q.singletonKey(name, opts.SingletonKey), env.ID, q.opts.VisibilityTimeout*time.Duration(q.opts.MaxDeliveries+1)).Result()
		if err != nil {
			return "", fmt.Errorf("Publish: singleton: %w", err)
		}
		if !ok {
			q.metrics.inc(name, "collapsed")
			return "", nil
		}
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("Publish: %w", err)
	}
	if err := q.client.LPush(ctx, q.readyKey(name), raw).Err(); err != nil {
		return "", fmt.Errorf("Publish: %w", err)
	}
	q.metrics.inc(name, "published")
	return env.ID, nil
}

// Recover moves every job left in the processing list back to ready.
func (q *RedisQueue) Recover(ctx context.Context, name string) (int, error) {
	n := 0
	for {
		err := q.client.LMove(ctx, q.processingKey(name), q.readyKey(name), "RIGHT", "LEFT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("Recover: %w", err)
		}
		n++
	}
}

func (q *RedisQueue) Work(ctx context.Context, name string, handler Handler) error {
	if n, err := q.Recover(ctx, name); err != nil {
		return err
	} else if n > 0 {
		slog.Warn("recovered jobs from processing list", slog.String("job", name), slog.Int("count", n))
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw, err := q.client.BLMove(ctx, q.readyKey(name), q.processingKey(name), "RIGHT", "LEFT", q.opts.PollInterval).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("queue poll failed", slog.String("job", name), slog.Any("error", err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(q.opts.PollInterval):
			}
			continue
		}
		q.handle(ctx, name, raw, handler)
	}
}

func (q *RedisQueue) handle(ctx context.Context, name, raw string, handler Handler) {
	var env redisEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		slog.Error("dropping undecodable job", slog.String("job", name), slog.Any("error", err))
		_ = q.client.LRem(ctx, q.processingKey(name), 1, raw).Err()
		return
	}
	env.Attempts++

	herr := handler(ctx, Job{ID: env.ID, Name: env.Name, Payload: env.Payload, Attempts: env.Attempts})

	bg := context.WithoutCancel(ctx)
	_, err := q.client.TxPipelined(bg, func(p redis.Pipeliner) error {
		p.LRem(bg, q.processingKey(name), 1, raw)
		switch {
		case herr == nil:
			q.releaseSingleton(bg, p, name, env)
		case env.Attempts >= q.opts.MaxDeliveries:
			next, _ := json.Marshal(env)
			p.LPush(bg, q.deadKey(name), next)
			q.releaseSingleton(bg, p, name, env)
		default:
			next, _ := json.Marshal(env)
			p.LPush(bg, q.readyKey(name), next)
		}
		return nil
	})
	if err != nil {
		slog.Error("queue acknowledge failed", slog.String("job", name), slog.String("job_id", env.ID), slog.Any("error", err))
		return
	}

	switch {
	case herr == nil:
		q.metrics.inc(name, "completed")
	case env.Attempts >= q.opts.MaxDeliveries:
		q.metrics.inc(name, "failed")
	default:
		q.metrics.inc(name, "retried")
	}
}

func (q *RedisQueue) releaseSingleton(ctx context.Context, p redis.Pipeliner, name string, env redisEnvelope) {
	if env.SingletonKey != "" {
		p.Del(ctx, q.singletonKey(name, env.SingletonKey))
	}
}
