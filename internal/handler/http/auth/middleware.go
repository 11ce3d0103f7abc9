package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"reel-relay/internal/handler/http/respond"
	"reel-relay/internal/observability/logging"
)

type ctxKey string

const ctxClaims ctxKey = "claims"

var authDecisions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "relay_auth_decisions_total",
		Help: "Authorization outcomes for protected endpoints",
	},
	[]string{"role", "decision"}, // decision: allowed | unauthenticated | forbidden
)

// Authz requires a valid bearer token on every non-public endpoint and
// checks the token's role against RolePermissions.
func Authz(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsPublicEndpoint(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := fromHeader(r.Header.Get("Authorization"), secret)
			if err != nil {
				authDecisions.WithLabelValues("none", "unauthenticated").Inc()
				respond.SafeError(w, http.StatusUnauthorized, errors.New("unauthorized"))
				return
			}
			if !checkRolePermission(claims.Role, r.Method, r.URL.Path) {
				authDecisions.WithLabelValues(claims.Role, "forbidden").Inc()
				logging.FromContext(r.Context()).Warn("forbidden request",
					slog.String("subject", claims.Subject),
					slog.String("role", claims.Role),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path))
				respond.SafeError(w, http.StatusForbidden, errors.New("forbidden"))
				return
			}

			authDecisions.WithLabelValues(claims.Role, "allowed").Inc()
			ctx := context.WithValue(r.Context(), ctxClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SubjectFromContext returns the authenticated subject, or "".
func SubjectFromContext(ctx context.Context) string {
	if c, ok := ctx.Value(ctxClaims).(*Claims); ok {
		return c.Subject
	}
	return ""
}

func fromHeader(authz string, secret []byte) (*Claims, error) {
	tokenString, ok := strings.CutPrefix(authz, "Bearer ")
	if !ok || tokenString == "" {
		return nil, errors.New("missing bearer token")
	}
	return Parse(tokenString, secret)
}
