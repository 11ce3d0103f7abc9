// Package circuitbreaker guards the relay's two upstream APIs with
// sony/gobreaker and exports each breaker's state to Prometheus.
package circuitbreaker

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"

	"reel-relay/internal/resilience/retry"
)

var (
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_circuit_breaker_state",
			Help: "Breaker state: 0 closed, 1 half-open, 2 open",
		},
		[]string{"breaker"},
	)

	breakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_circuit_breaker_transitions_total",
			Help: "Breaker state changes by target state",
		},
		[]string{"breaker", "to"},
	)
)

// Config describes when a breaker trips and how it recovers.
type Config struct {
	Name string

	// MaxRequests may pass while half-open.
	MaxRequests uint32
	// Interval clears the closed-state counts.
	Interval time.Duration
	// Timeout is the open period before probing again.
	Timeout time.Duration

	// The breaker opens once MinRequests calls have been seen and the
	// failure ratio reaches FailureThreshold.
	FailureThreshold float64
	MinRequests      uint32

	// IsSuccessful decides which errors count as failures. nil counts every error.
	IsSuccessful func(err error) bool
}

// DefaultConfig trips at 60% failures over at least 5 calls and stays open
// for a minute.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// GraphAPIConfig guards the Meta Graph API client.
func GraphAPIConfig() Config {
	cfg := DefaultConfig("meta-graph-api")
	cfg.IsSuccessful = ignoreClientErrors
	return cfg
}

// TelegramConfig guards sendMessage. It tolerates a higher failure ratio
// but reopens sooner, since a stuck chat blocks every delivery.
func TelegramConfig() Config {
	cfg := DefaultConfig("telegram-bot-api")
	cfg.MaxRequests = 2
	cfg.Interval = 60 * time.Second
	cfg.Timeout = 30 * time.Second
	cfg.FailureThreshold = 0.7
	cfg.IsSuccessful = ignoreClientErrors
	return cfg
}

// ignoreClientErrors keeps a bad chat id or media id from tripping the
// breaker: only retryable failures (429, 5xx, transport) count.
func ignoreClientErrors(err error) bool {
	return err == nil || !retry.IsRetryable(err)
}

type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string
}

func New(cfg Config) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		IsSuccessful: cfg.IsSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			breakerState.WithLabelValues(name).Set(stateValue(to))
			breakerTransitions.WithLabelValues(name, to.String()).Inc()
			slog.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}

	breakerState.WithLabelValues(cfg.Name).Set(stateValue(gobreaker.StateClosed))
	return &CircuitBreaker{
		breaker: gobreaker.NewCircuitBreaker(settings),
		name:    cfg.Name,
	}
}

// Call runs fn through the breaker. While open it fails fast with
// gobreaker.ErrOpenState.
func Call[T any](cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	out, err := cb.breaker.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return zero, err
	}
	v, _ := out.(T)
	return v, nil
}

func (cb *CircuitBreaker) State() gobreaker.State { return cb.breaker.State() }

func (cb *CircuitBreaker) Name() string { return cb.name }

func (cb *CircuitBreaker) IsOpen() bool { return cb.breaker.State() == gobreaker.StateOpen }

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
