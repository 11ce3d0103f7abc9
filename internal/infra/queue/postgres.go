package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// PostgresQueue stores jobs in the relay_jobs table.
//
// Fetch claims a job with FOR UPDATE SKIP LOCKED, so several workers can
// poll the same table. A job left active longer than VisibilityTimeout is
// put back by the next poll.
type PostgresQueue struct {
	db      *sql.DB
	opts    Options
	metrics *Metrics
}

func NewPostgresQueue(db *sql.DB, opts Options, metrics *Metrics) *PostgresQueue {
	return &PostgresQueue{db: db, opts: opts.withDefaults(), metrics: metrics}
}

func (q *PostgresQueue) Publish(ctx context.Context, name string, payload any, opts PublishOptions) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("Publish: marshal payload: %w", err)
	}

	var singleton any
	if opts.SingletonKey != "" {
		singleton = opts.SingletonKey
	}

	const query = `
INSERT INTO relay_jobs (id, name, payload, singleton_key, state, run_after)
VALUES ($1, $2, $3, $4, 'created', now() + $5 * interval '1 millisecond')
ON CONFLICT DO NOTHING
RETURNING id`
	var id string
	err = q.db.QueryRowContext(ctx, query,
		uuid.NewString(), name, string(body), singleton, opts.StartAfter.Milliseconds(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		q.metrics.inc(name, "collapsed")
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("Publish: %w", err)
	}
	q.metrics.inc(name, "published")
	return id, nil
}

// Fetch claims the oldest visible job, or returns nil when there is none.
func (q *PostgresQueue) Fetch(ctx context.Context, name string) (*Job, error) {
	const query = `
UPDATE relay_jobs
SET state = 'active', attempts = attempts + 1, locked_at = now(), updated_at = now()
WHERE id = (
    SELECT id FROM relay_jobs
    WHERE name = $1 AND state = 'created' AND run_after <= now()
    ORDER BY created_at
    FOR UPDATE SKIP LOCKED
    LIMIT 1
)
RETURNING id, name, payload, attempts`
	var job Job
	var payload []byte
	err := q.db.QueryRowContext(ctx, query, name).Scan(&job.ID, &job.Name, &payload, &job.Attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}
	job.Payload = payload
	return &job, nil
}

func (q *PostgresQueue) Complete(ctx context.Context, job Job) error {
	const query = `
UPDATE relay_jobs SET state = 'completed', locked_at = NULL, updated_at = now()
WHERE id = $1`
	if _, err := q.db.ExecContext(ctx, query, job.ID); err != nil {
		return fmt.Errorf("Complete: %w", err)
	}
	q.metrics.inc(job.Name, "completed")
	return nil
}

// Fail makes the job visible again after RetryDelay, or moves it to the
// terminal failed state once it has been delivered MaxDeliveries times.
func (q *PostgresQueue) Fail(ctx context.Context, job Job, cause error) error {
	const query = `
UPDATE relay_jobs
SET state      = CASE WHEN attempts >= $3 THEN 'failed' ELSE 'created' END,
    last_error = $2,
    run_after  = now() + $4 * interval '1 millisecond',
    locked_at  = NULL,
    updated_at = now()
WHERE id = $1`
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	if _, err := q.db.ExecContext(ctx, query, job.ID, reason, q.opts.MaxDeliveries, q.opts.RetryDelay.Milliseconds()); err != nil {
		return fmt.Errorf("Fail: %w", err)
	}
	if job.Attempts >= q.opts.MaxDeliveries {
		q.metrics.inc(job.Name, "failed")
	} else {
		q.metrics.inc(job.Name, "retried")
	}
	return nil
}

// RequeueExpired returns active jobs whose lock is older than the visibility timeout.
func (q *PostgresQueue) RequeueExpired(ctx context.Context, name string) (int64, error) {
	const query = `
UPDATE relay_jobs SET state = 'created', locked_at = NULL, updated_at = now()
WHERE name = $1 AND state = 'active' AND locked_at < now() - $2 * interval '1 millisecond'`
	res, err := q.db.ExecContext(ctx, query, name, q.opts.VisibilityTimeout.Milliseconds())
	if err != nil {
		return 0, fmt.Errorf("RequeueExpired: %w", err)
	}
	return res.RowsAffected()
}

// Work polls for jobs until ctx is cancelled.
func (q *PostgresQueue) Work(ctx context.Context, name string, handler Handler) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		worked, err := q.workOnce(ctx, name, handler)
		if err != nil {
			slog.Error("queue poll failed", slog.String("job", name), slog.Any("error", err))
		}
		if worked {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(q.opts.PollInterval):
		}
	}
}

// workOnce handles at most one job and reports whether it found one.
func (q *PostgresQueue) workOnce(ctx context.Context, name string, handler Handler) (bool, error) {
	if n, err := q.RequeueExpired(ctx, name); err != nil {
		return false, err
	} else if n > 0 {
		slog.Warn("requeued jobs past visibility timeout", slog.String("job", name), slog.Int64("count", n))
	}

	job, err := q.Fetch(ctx, name)
	if err != nil || job == nil {
		return false, err
	}

	if herr := handler(ctx, *job); herr != nil {
		// 失敗記録はワーカー停止中でも残す
		return true, q.Fail(context.WithoutCancel(ctx), *job, herr)
	}
	return true, q.Complete(context.WithoutCancel(ctx), *job)
}
