// Package queue is the boundary to the at-least-once job queue.
//
// Two backends implement Queue: PostgresQueue (the default, a relay_jobs
// table) and RedisQueue. Both collapse duplicate pending jobs that share a
// singleton key and redeliver jobs whose handler failed or never finished.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// JobFetchMediaRequest is the only job the relay runs.
const JobFetchMediaRequest = "fetch-media-request"

// ErrClosed is returned by Work after the queue has been closed.
var ErrClosed = errors.New("queue: closed")

// Job is one delivery of a published payload.
type Job struct {
	ID      string
	Name    string
	Payload json.RawMessage
	// Attempts counts deliveries including this one.
	Attempts int
}

// PublishOptions tunes a single Publish call.
type PublishOptions struct {
	// SingletonKey collapses this job into any created or active job with
	// the same name and key.
	SingletonKey string
	// StartAfter delays the first delivery.
	StartAfter time.Duration
}

// Handler processes one job. A nil error completes the job; anything else
// schedules a redelivery until the delivery cap is reached.
type Handler func(ctx context.Context, job Job) error

// Queue is implemented by PostgresQueue and RedisQueue.
type Queue interface {
	// Publish enqueues payload as JSON. The returned id is empty when the
	// job was collapsed into an existing one.
	Publish(ctx context.Context, name string, payload any, opts PublishOptions) (string, error)
	// Work delivers jobs to handler one at a time until ctx is cancelled.
	Work(ctx context.Context, name string, handler Handler) error
}

// Options are shared by both backends.
type Options struct {
	PollInterval      time.Duration
	VisibilityTimeout time.Duration
	MaxDeliveries     int
	// RetryDelay is the pause before a failed job becomes visible again.
	RetryDelay time.Duration
}

// DefaultOptions mirrors the QUEUE_* defaults.
func DefaultOptions() Options {
	return Options{
		PollInterval:      time.Second,
		VisibilityTimeout: 5 * time.Minute,
		MaxDeliveries:     5,
		RetryDelay:        5 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.VisibilityTimeout <= 0 {
		o.VisibilityTimeout = d.VisibilityTimeout
	}
	if o.MaxDeliveries <= 0 {
		o.MaxDeliveries = d.MaxDeliveries
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
	return o
}

// FetchMediaRequestPayload is the payload of JobFetchMediaRequest.
type FetchMediaRequestPayload struct {
	RequestID string `json:"requestId"`
}
