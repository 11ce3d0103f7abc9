package requestid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestFromContext(t *testing.T) {
	tests := []struct {
		name     string
		ctx      context.Context
		expected string
	}{
		{"with request ID", WithRequestID(context.Background(), "test-id-123"), "test-id-123"},
		{"without request ID", context.Background(), ""},
		{"with invalid type in context", context.WithValue(context.Background(), RequestIDKey, 12345), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FromContext(tt.ctx))
		})
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"abc-123", true},
		{"7f0c2a7e-3a4b-4d35-9f5e-1d2c3b4a5f60", true},
		{"", false},
		{"has space", false},
		{"line\nbreak", false},
		{"ユニコード", false},
		{strings.Repeat("a", 128), true},
		{strings.Repeat("a", 129), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Valid(tt.id), "id=%q", tt.id)
	}
}

func serve(t *testing.T, header string) (captured string, rec *httptest.ResponseRecorder) {
	t.Helper()
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/v1/requests", nil)
	if header != "" {
		req.Header.Set(RequestIDHeader, header)
	}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return captured, rec
}

func TestMiddleware_PropagatesValidID(t *testing.T) {
	captured, rec := serve(t, "existing-request-id-456")

	assert.Equal(t, "existing-request-id-456", captured)
	assert.Equal(t, "existing-request-id-456", rec.Header().Get(RequestIDHeader))
}

func TestMiddleware_GeneratesNewRequestID(t *testing.T) {
	captured, rec := serve(t, "")

	_, err := uuid.Parse(captured)
	assert.NoError(t, err, "generated ID should be a valid UUID")
	assert.Equal(t, captured, rec.Header().Get(RequestIDHeader))
}

func TestMiddleware_ReplacesInvalidID(t *testing.T) {
	captured, rec := serve(t, "bad id\twith\tcontrol")

	assert.NotEqual(t, "bad id\twith\tcontrol", captured)
	_, err := uuid.Parse(captured)
	assert.NoError(t, err)
	assert.Equal(t, captured, rec.Header().Get(RequestIDHeader))
}

func TestMiddleware_UniquePerRequest(t *testing.T) {
	first, _ := serve(t, "")
	second, _ := serve(t, "")

	assert.NotEqual(t, first, second)
}
