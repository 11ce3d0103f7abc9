// Package eventbus is the in-process publish/subscribe bus that decouples
// media discovery from delivery.
//
// Events travel through a bounded channel and are dispatched by a single Run
// loop, so handlers for one event never overlap with handlers for the next.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"reel-relay/internal/domain/entity"
)

// ErrClosed is returned by Publish and Post once the bus has been closed.
var ErrClosed = errors.New("eventbus: closed")

// DefaultCapacity is the channel size used when New is given a non-positive capacity.
const DefaultCapacity = 256

// Handler reacts to one event. Handlers must not call Publish on the same bus
// (the dispatch loop would wait on itself); Post is safe.
type Handler func(ctx context.Context, evt entity.DomainEvent) error

type subscription struct {
	name    string
	handler Handler
}

type envelope struct {
	ctx context.Context
	evt entity.DomainEvent
	// done is nil for fire-and-forget posts.
	done chan error
}

// Bus is a bounded-channel event bus.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]subscription

	queue     chan envelope
	closed    chan struct{}
	closeOnce sync.Once
	finished  chan struct{}
	runOnce   sync.Once

	metrics *Metrics
}

// Option customizes a Bus.
type Option func(*Bus)

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(b *Bus) { b.metrics = m }
}

// New creates a bus whose queue holds at most capacity pending events.
func New(capacity int, opts ...Option) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	b := &Bus{
		subs:     make(map[string][]subscription),
		queue:    make(chan envelope, capacity),
		closed:   make(chan struct{}),
		finished: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers handler for events called eventName. Handlers run in
// registration order. name identifies the subscriber in logs and metrics.
func (b *Bus) Subscribe(eventName, name string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventName] = append(b.subs[eventName], subscription{name: name, handler: handler})
}

// Publish enqueues evt and waits until every subscriber has handled it.
// The returned error joins all handler errors.
func (b *Bus) Publish(ctx context.Context, evt entity.DomainEvent) error {
	env := envelope{ctx: ctx, evt: evt, done: make(chan error, 1)}
	if err := b.enqueue(ctx, env); err != nil {
		return err
	}

	select {
	case err := <-env.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-b.finished:
		select {
		case err := <-env.done:
			return err
		default:
			return ErrClosed
		}
	}
}

// Post enqueues evt without waiting for handlers. Handler errors are logged.
func (b *Bus) Post(ctx context.Context, evt entity.DomainEvent) error {
	return b.enqueue(ctx, envelope{ctx: context.WithoutCancel(ctx), evt: evt})
}

func (b *Bus) enqueue(ctx context.Context, env envelope) error {
	select {
	case <-b.closed:
		return ErrClosed
	default:
	}

	select {
	case b.queue <- env:
		b.metrics.published(env.evt.Name)
		return nil
	case <-b.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run dispatches events until ctx is cancelled or Close is called. Events
// already queued when Close is called are still delivered.
func (b *Bus) Run(ctx context.Context) error {
	started := false
	b.runOnce.Do(func() { started = true })
	if !started {
		return errors.New("eventbus: Run called twice")
	}
	defer close(b.finished)

	for {
		select {
		case env := <-b.queue:
			b.dispatch(env)
		case <-b.closed:
			b.drain()
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops accepting events. Run returns after draining the queue.
func (b *Bus) Close() {
	b.closeOnce.Do(func() { close(b.closed) })
}

func (b *Bus) drain() {
	for {
		select {
		case env := <-b.queue:
			b.dispatch(env)
		default:
			return
		}
	}
}

func (b *Bus) dispatch(env envelope) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs[env.evt.Name]...)
	b.mu.RUnlock()

	var errs []error
	for _, sub := range subs {
		if err := b.call(env, sub); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sub.name, err))
		}
	}
	err := errors.Join(errs...)

	if env.done != nil {
		env.done <- err
		return
	}
	if err != nil {
		slog.Warn("event handler failed",
			slog.String("event", env.evt.Name),
			slog.Any("error", err))
	}
}

func (b *Bus) call(env envelope, sub subscription) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
		b.metrics.handled(env.evt.Name, sub.name, err)
	}()
	return sub.handler(env.ctx, env.evt)
}
