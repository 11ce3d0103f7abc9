package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reel-relay/internal/resilience/circuitbreaker"
)

// BreakerHealthResponse reports every outbound circuit breaker.
type BreakerHealthResponse struct {
	Healthy  bool            `json:"healthy"`
	Breakers []BreakerStatus `json:"breakers"`
}

type BreakerStatus struct {
	Name  string `json:"name"`
	State string `json:"state"`
	Open  bool   `json:"open"`
}

// serveMetrics exposes:
//   - GET /metrics: Prometheus scrape endpoint
//   - GET /health/breakers: 200 when every breaker is closed or half-open, 503 otherwise
//
// It blocks until ctx is cancelled and then shuts down within 5 seconds.
func serveMetrics(ctx context.Context, logger *slog.Logger, addr string, breakers []*circuitbreaker.CircuitBreaker) error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health/breakers", breakerHealthHandler(breakers))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics server starting", slog.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", slog.Any("error", err))
			return err
		}
		logger.Info("metrics server stopped")
		return http.ErrServerClosed
	}
}

func breakerHealthHandler(breakers []*circuitbreaker.CircuitBreaker) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := BreakerHealthResponse{Healthy: true, Breakers: make([]BreakerStatus, 0, len(breakers))}
		for _, cb := range breakers {
			open := cb.IsOpen()
			resp.Breakers = append(resp.Breakers, BreakerStatus{
				Name:  cb.Name(),
				State: cb.State().String(),
				Open:  open,
			})
			if open {
				resp.Healthy = false
			}
		}

		code := http.StatusOK
		if !resp.Healthy {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
