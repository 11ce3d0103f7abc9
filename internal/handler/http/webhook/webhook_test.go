package webhook_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reel-relay/internal/handler/http/webhook"
	webhookUC "reel-relay/internal/usecase/webhook"
)

const (
	appSecret   = "app-secret"
	verifyToken = "verify-me"
)

/* ───────── モック実装 ───────── */

type stubProcessor struct {
	res    webhookUC.Result
	err    error
	bodies [][]byte
}

func (s *stubProcessor) Handle(_ context.Context, body []byte) (webhookUC.Result, error) {
	s.bodies = append(s.bodies, body)
	return s.res, s.err
}

func newMux(svc webhook.Processor) *http.ServeMux {
	mux := http.NewServeMux()
	webhook.Register(mux, verifyToken, appSecret, svc)
	return mux
}

/* ───────── テストケース ───────── */

func TestVerify(t *testing.T) {
	tests := []struct {
		name  string
		query string
		code  int
		body  string
	}{
		{"valid handshake", "hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", http.StatusOK, "12345"},
		{"wrong token", "hub.mode=subscribe&hub.verify_token=nope&hub.challenge=12345", http.StatusForbidden, ""},
		{"wrong mode", "hub.mode=unsubscribe&hub.verify_token=verify-me&hub.challenge=1", http.StatusForbidden, ""},
		{"missing params", "", http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newMux(&stubProcessor{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhooks/meta?"+tt.query, nil))

			assert.Equal(t, tt.code, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestVerify_EmptyConfiguredTokenRejects(t *testing.T) {
	rec := httptest.NewRecorder()
	webhook.VerifyHandler{}.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhooks/meta?hub.mode=subscribe&hub.verify_token=&hub.challenge=1", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func post(t *testing.T, svc webhook.Processor, body, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/meta", strings.NewReader(body))
	if signature != "" {
		req.Header.Set(webhook.SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	newMux(svc).ServeHTTP(rec, req)
	return rec
}

func TestReceive_Success(t *testing.T) {
	body := `{"object":"instagram","entry":[]}`
	svc := &stubProcessor{res: webhookUC.Result{TotalChanges: 2, ProcessedReels: 1, SkippedNonReels: 1, EventsPublished: 1}}

	rec := post(t, svc, body, webhook.Sign(appSecret, []byte(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true,"totalChanges":2,"processedReels":1,"skippedNonReels":1,"failed":0,"eventsPublished":1}`, rec.Body.String())
	require.Len(t, svc.bodies, 1)
	assert.Equal(t, body, string(svc.bodies[0]))
}

func TestReceive_BadSignature(t *testing.T) {
	body := `{"object":"instagram"}`
	tests := map[string]string{
		"missing":      "",
		"wrong secret": webhook.Sign("other", []byte(body)),
		"no prefix":    strings.TrimPrefix(webhook.Sign(appSecret, []byte(body)), "sha256="),
		"not hex":      "sha256=zzzz",
	}
	for name, sig := range tests {
		t.Run(name, func(t *testing.T) {
			svc := &stubProcessor{}
			rec := post(t, svc, body, sig)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Empty(t, svc.bodies)
		})
	}
}

func TestReceive_InvalidPayload(t *testing.T) {
	body := `{not json`
	svc := &stubProcessor{err: webhookUC.ErrInvalidPayload}

	rec := post(t, svc, body, webhook.Sign(appSecret, []byte(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var got map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "invalid_webhook_payload", got["error"])
}

func TestReceive_ProcessingFailure(t *testing.T) {
	body := `{"object":"instagram"}`
	svc := &stubProcessor{err: errors.New("db down")}

	rec := post(t, svc, body, webhook.Sign(appSecret, []byte(body)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"webhook_processing_failed"}`, rec.Body.String())
}

func TestVerifySignature(t *testing.T) {
	body := []byte("payload")

	assert.True(t, webhook.VerifySignature("s", body, webhook.Sign("s", body)))
	assert.False(t, webhook.VerifySignature("", body, webhook.Sign("", body)))
	assert.False(t, webhook.VerifySignature("s", []byte("tampered"), webhook.Sign("s", body)))
}
