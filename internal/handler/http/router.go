package http

import (
	"database/sql"
	"log/slog"
	"net/http"

	"reel-relay/internal/handler/http/admin"
	"reel-relay/internal/handler/http/auth"
	"reel-relay/internal/handler/http/request"
	"reel-relay/internal/handler/http/requestid"
	"reel-relay/internal/handler/http/webhook"
	"reel-relay/internal/resilience/circuitbreaker"
)

// DefaultMaxBodyBytes caps every request body; the webhook applies its own
// limit on top.
const DefaultMaxBodyBytes = 1 << 20

// RouterDeps collects everything the api mounts.
type RouterDeps struct {
	Logger  *slog.Logger
	DB      *sql.DB
	Version string

	JWTSecret     []byte
	SubmitLimiter *RateLimiter
	MaxBodyBytes  int64

	Checks   map[string]Checker
	Breakers []*circuitbreaker.CircuitBreaker

	MetaVerifyToken string
	MetaAppSecret   string
	Webhook         webhook.Processor

	Submitter request.Submitter
	Requests  request.Getter

	Admin      admin.Service
	Reconciler admin.Reconciler
}

// NewRouter wires routes and the middleware chain:
// request id → tracing → metrics → logging → recover → body limit → authz → mux.
func NewRouter(d RouterDeps) http.Handler {
	mux := http.NewServeMux()

	// 認証不要
	mux.Handle("GET /health", &HealthHandler{DB: d.DB, Version: d.Version, Checks: d.Checks, Breakers: d.Breakers})
	mux.Handle("GET /ready", &ReadyHandler{DB: d.DB})
	mux.Handle("GET /live", LiveHandler{})
	mux.Handle("GET /metrics", MetricsHandler())

	webhook.Register(mux, d.MetaVerifyToken, d.MetaAppSecret, d.Webhook)

	var submitLimit func(http.Handler) http.Handler
	if d.SubmitLimiter != nil {
		submitLimit = d.SubmitLimiter.Limit
	}
	request.Register(mux, d.Submitter, d.Requests, submitLimit)
	admin.Register(mux, d.Admin, d.Reconciler)

	maxBody := d.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	var h http.Handler = mux
	h = auth.Authz(d.JWTSecret)(h)
	h = LimitRequestBody(maxBody)(h)
	h = Recover(d.Logger)(h)
	h = Logging(d.Logger)(h)
	h = MetricsMiddleware(h)
	h = Tracing(h)
	h = requestid.Middleware(h)
	return h
}
