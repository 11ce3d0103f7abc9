package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reel-relay/internal/resilience/retry"
)

var errUpstream = errors.New("upstream unavailable")

func failN(cb *CircuitBreaker, n int, err error) {
	for i := 0; i < n; i++ {
		_, _ = Call(cb, func() (struct{}, error) { return struct{}{}, err })
	}
}

func TestNew_StartsClosed(t *testing.T) {
	cb := New(DefaultConfig("start-closed"))

	assert.Equal(t, "start-closed", cb.Name())
	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.False(t, cb.IsOpen())
	assert.Equal(t, 0.0, testutil.ToFloat64(breakerState.WithLabelValues("start-closed")))
}

func TestCall_TypedResult(t *testing.T) {
	cb := New(DefaultConfig("typed"))

	got, err := Call(cb, func() (int64, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)

	got, err = Call(cb, func() (int64, error) { return 7, errUpstream })
	assert.ErrorIs(t, err, errUpstream)
	assert.Zero(t, got, "a failed call returns the zero value")
}

func TestCircuitBreaker_TripsAndFailsFast(t *testing.T) {
	cfg := DefaultConfig("trips")
	cfg.MinRequests = 3
	cfg.FailureThreshold = 0.5
	cb := New(cfg)

	failN(cb, 3, errUpstream)
	require.True(t, cb.IsOpen())
	assert.Equal(t, 2.0, testutil.ToFloat64(breakerState.WithLabelValues("trips")))
	assert.Equal(t, 1.0, testutil.ToFloat64(breakerTransitions.WithLabelValues("trips", "open")))

	called := false
	_, err := Call(cb, func() (string, error) {
		called = true
		return "", nil
	})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.False(t, called, "open breaker must not invoke fn")
}

func TestCircuitBreaker_BelowMinRequestsStaysClosed(t *testing.T) {
	cfg := DefaultConfig("min-requests")
	cfg.MinRequests = 10
	cfg.FailureThreshold = 0.5
	cb := New(cfg)

	failN(cb, 4, errUpstream)

	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	cfg := DefaultConfig("recovers")
	cfg.MinRequests = 1
	cfg.FailureThreshold = 0.5
	cfg.MaxRequests = 1
	cfg.Timeout = 50 * time.Millisecond
	cb := New(cfg)

	failN(cb, 1, errUpstream)
	require.True(t, cb.IsOpen())

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, gobreaker.StateHalfOpen, cb.State())

	_, err := Call(cb, func() (int, error) { return 1, nil })
	require.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.Equal(t, 0.0, testutil.ToFloat64(breakerState.WithLabelValues("recovers")))
}

func TestCircuitBreaker_ClientErrorsDoNotTrip(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		err      error
		wantOpen bool
	}{
		{"graph 400", GraphAPIConfig(), &retry.HTTPError{StatusCode: 400, Message: "bad media id"}, false},
		{"graph 503", GraphAPIConfig(), &retry.HTTPError{StatusCode: 503, Message: "unavailable"}, true},
		{"telegram 403", TelegramConfig(), &retry.HTTPError{StatusCode: 403, Message: "bot was kicked"}, false},
		{"telegram 429", TelegramConfig(), &retry.HTTPError{StatusCode: 429, Message: "too many requests"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := New(tt.cfg)
			failN(cb, 10, tt.err)
			assert.Equal(t, tt.wantOpen, cb.IsOpen())
		})
	}
}

func TestConfigs(t *testing.T) {
	graph := GraphAPIConfig()
	assert.Equal(t, "meta-graph-api", graph.Name)
	assert.Equal(t, 0.6, graph.FailureThreshold)
	assert.Equal(t, 60*time.Second, graph.Timeout)
	assert.NotNil(t, graph.IsSuccessful)

	tg := TelegramConfig()
	assert.Equal(t, "telegram-bot-api", tg.Name)
	assert.Equal(t, uint32(2), tg.MaxRequests)
	assert.Equal(t, 0.7, tg.FailureThreshold)
	assert.Equal(t, 30*time.Second, tg.Timeout)

	def := DefaultConfig("x")
	assert.Nil(t, def.IsSuccessful, "default counts every error")
	assert.Equal(t, uint32(5), def.MinRequests)
}
