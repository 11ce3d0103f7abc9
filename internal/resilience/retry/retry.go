// Package retry provides bounded exponential backoff for transient failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"syscall"
	"time"
)

// Config holds the configuration for retry logic.
type Config struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// InitialDelay is the delay before the second attempt.
	InitialDelay time.Duration

	// MaxDelay caps every delay.
	MaxDelay time.Duration

	// Multiplier is the factor applied to the delay after each attempt.
	Multiplier float64

	// JitterFraction is the fraction of delay to add as random jitter (0.0 to 1.0)
	JitterFraction float64

	// Retryable overrides IsRetryable when set.
	Retryable func(error) bool

	// Sleep replaces the timer wait; tests use it to record delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultConfig returns a default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   1 * time.Second,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// GraphAPIConfig is the adapter-level retry for Meta Graph API calls:
// 400ms doubling, three attempts, only on 429 and 5xx.
func GraphAPIConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 400 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Retryable:    IsRetryableStatus,
	}
}

// PipelineConfig is the whole-attempt retry of the processing use case.
// Every error is retried and there is no jitter, so the delays are exactly
// base, 2*base, 4*base... up to maxDelay.
func PipelineConfig(maxAttempts int, base, maxDelay time.Duration) Config {
	return Config{
		MaxAttempts:  maxAttempts,
		InitialDelay: base,
		MaxDelay:     maxDelay,
		Multiplier:   2.0,
		Retryable:    func(error) bool { return true },
	}
}

// ExhaustedError is returned when fn kept failing. Permanent is true when
// the loop stopped early because the error was not retryable.
type ExhaustedError struct {
	Attempts  int
	Permanent bool
	Err       error
}

func (e *ExhaustedError) Error() string {
	if e.Permanent {
		return fmt.Sprintf("non-retryable error after %d attempt(s): %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("max retry attempts (%d) exceeded: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// WithBackoff executes fn with retry logic and exponential backoff.
func WithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	return WithAttempts(ctx, cfg, func(int) error { return fn() })
}

// WithAttempts is WithBackoff for callers that need the 1-based attempt number.
//
// It returns nil on success, *ExhaustedError when attempts ran out or a
// non-retryable error was hit, and a wrapped ctx.Err() when ctx ends during
// a backoff wait.
func WithAttempts(ctx context.Context, cfg Config, fn func(attempt int) error) error {
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn(attempt)
		if lastErr == nil {
			if attempt > 1 {
				slog.Info("operation succeeded after retry",
					slog.Int("attempt", attempt))
			}
			return nil
		}

		if !retryable(lastErr) {
			slog.Warn("non-retryable error, aborting",
				slog.Int("attempt", attempt),
				slog.Any("error", lastErr))
			return &ExhaustedError{Attempts: attempt, Permanent: true, Err: lastErr}
		}

		// Don't wait after last attempt
		if attempt == maxAttempts {
			break
		}

		delay := addJitter(Delay(cfg, attempt), cfg.JitterFraction)
		slog.Warn("operation failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.Duration("delay", delay),
			slog.Any("error", lastErr))

		if err := sleep(ctx, delay); err != nil {
			return fmt.Errorf("retry aborted: %w", err)
		}
	}

	return &ExhaustedError{Attempts: maxAttempts, Err: lastErr}
}

// Delay is the un-jittered wait after the given failed attempt:
// InitialDelay * Multiplier^(attempt-1), capped at MaxDelay.
func Delay(cfg Config, attempt int) time.Duration {
	d := float64(cfg.InitialDelay)
	for i := 1; i < attempt; i++ {
		d *= cfg.Multiplier
		if cfg.MaxDelay > 0 && d >= float64(cfg.MaxDelay) {
			return cfg.MaxDelay
		}
	}
	if cfg.MaxDelay > 0 && time.Duration(d) > cfg.MaxDelay {
		return cfg.MaxDelay
	}
	return time.Duration(d)
}

// IsRetryable determines if an error is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are not retryable
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Network errors (timeout)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// Syscall errors
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	return IsRetryableStatus(err)
}

// IsRetryableStatus reports whether err is an HTTPError with status 429 or 5xx.
func IsRetryableStatus(err error) bool {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	return httpErr.StatusCode == http.StatusTooManyRequests ||
		(httpErr.StatusCode >= 500 && httpErr.StatusCode < 600)
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
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

// addJitter adds random jitter to a duration to prevent thundering herd.
func addJitter(duration time.Duration, jitterFraction float64) time.Duration {
	if jitterFraction <= 0 {
		return duration
	}
	if jitterFraction > 1.0 {
		jitterFraction = 1.0
	}
	// #nosec G404 -- Using math/rand is acceptable for jitter calculation.
	jitter := time.Duration(rand.Float64() * float64(duration) * jitterFraction)
	return duration + jitter
}
