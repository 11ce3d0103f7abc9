// Package scheduler serializes calls to a rate-limited external API.
//
// A Scheduler runs submitted tasks one at a time, in submission order, and
// guarantees that no task starts less than the configured interval after the
// previous task started. Each external integration owns its own instance.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrStopped is returned for tasks submitted after Stop, or still queued when Stop is called.
var ErrStopped = errors.New("scheduler: stopped")

// DefaultQueueSize bounds the number of tasks waiting to run.
const DefaultQueueSize = 1024

type task struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
	// enqueued is used for the wait-time histogram.
	enqueued time.Time
}

// Scheduler is a single-flight, minimum-interval task runner.
type Scheduler struct {
	name     string
	interval time.Duration
	limiter  *rate.Limiter
	tasks    chan *task
	metrics  *Metrics
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error

	stopOnce sync.Once
	stopped  chan struct{}
	finished chan struct{}

	lastStart time.Time
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithQueueSize overrides DefaultQueueSize.
func WithQueueSize(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.tasks = make(chan *task, n)
		}
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// New creates a Scheduler and starts its run loop. Call Stop to release it.
func New(name string, interval time.Duration, opts ...Option) *Scheduler {
	if interval < 0 {
		interval = 0
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}

	s := &Scheduler{
		name:     name,
		interval: interval,
		limiter:  rate.NewLimiter(limit, 1),
		tasks:    make(chan *task, DefaultQueueSize),
		now:      time.Now,
		sleep:    sleepContext,
		stopped:  make(chan struct{}),
		finished: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.loop()
	return s
}

// Name returns the integration name the scheduler was created for.
func (s *Scheduler) Name() string { return s.name }

// Interval returns the configured minimum gap between task starts.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Schedule queues fn and blocks until it has run, returning fn's error.
//
// A task whose ctx is cancelled before its turn is skipped and Schedule
// returns ctx.Err(). Once fn has started, Schedule waits for it to return.
func (s *Scheduler) Schedule(ctx context.Context, fn func(context.Context) error) error {
	t := &task{ctx: ctx, fn: fn, done: make(chan error, 1), enqueued: s.now()}

	select {
	case <-s.stopped:
		return ErrStopped
	default:
	}

	select {
	case s.tasks <- t:
		s.metrics.queued(s.name, len(s.tasks))
	case <-s.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-t.done:
		return err
	case <-s.finished:
		// Stop と競合してループ終了後にキューへ入った場合
		select {
		case err := <-t.done:
			return err
		default:
			return ErrStopped
		}
	}
}

// Do runs fn through s and returns its result.
func Do[T any](ctx context.Context, s *Scheduler, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := s.Schedule(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Stop rejects new tasks, fails the queued ones with ErrStopped, and waits
// for the running task to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopped) })
	select {
	case <-s.finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) loop() {
	defer close(s.finished)
	for {
		select {
		case <-s.stopped:
			s.drain()
			return
		case t := <-s.tasks:
			s.metrics.queued(s.name, len(s.tasks))
			s.run(t)
		}
	}
}

// drain fails every task still waiting in the queue.
func (s *Scheduler) drain() {
	for {
		select {
		case t := <-s.tasks:
			t.done <- ErrStopped
		default:
			return
		}
	}
}

func (s *Scheduler) run(t *task) {
	if err := t.ctx.Err(); err != nil {
		t.done <- err
		return
	}

	if err := s.waitTurn(t.ctx); err != nil {
		t.done <- err
		return
	}

	start := s.now()
	s.lastStart = start
	s.metrics.observeWait(s.name, start.Sub(t.enqueued))

	t.done <- s.invoke(t)
}

// waitTurn blocks until the interval since the previous start has elapsed.
// The limiter handles steady-state pacing; the lastStart floor covers a
// task that started late because its predecessor ran long.
func (s *Scheduler) waitTurn(ctx context.Context) error {
	if s.interval == 0 {
		return nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	if s.lastStart.IsZero() {
		return nil
	}
	if gap := s.interval - s.now().Sub(s.lastStart); gap > 0 {
		return s.sleep(ctx, gap)
	}
	return nil
}

func (s *Scheduler) invoke(t *task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduled task panicked",
				slog.String("scheduler", s.name),
				slog.Any("panic", r))
			err = fmt.Errorf("scheduler %s: task panicked: %v", s.name, r)
		}
		s.metrics.finished(s.name, err)
	}()
	return t.fn(t.ctx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
