package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"reel-relay/internal/handler/http/respond"
	"reel-relay/internal/observability/logging"
	"reel-relay/internal/observability/metrics"
	webhookUC "reel-relay/internal/usecase/webhook"
)

// Processor is satisfied by *webhook.Service.
type Processor interface {
	Handle(ctx context.Context, body []byte) (webhookUC.Result, error)
}

// MaxBodyBytes bounds a notification body.
const MaxBodyBytes = 1 << 20

type receiveResponse struct {
	Received bool `json:"received"`
	webhookUC.Result
}

// ReceiveHandler authenticates and processes a change notification.
type ReceiveHandler struct {
	AppSecret string
	Svc       Processor
}

func (h ReceiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		respond.SafeError(w, http.StatusRequestEntityTooLarge, respond.Public(http.StatusRequestEntityTooLarge, "payload_too_large", err))
		return
	}

	// 署名検証は生のボディに対して行う
	if !VerifySignature(h.AppSecret, body, r.Header.Get(SignatureHeader)) {
		metrics.RecordWebhookSignatureFailure()
		logger.Warn("webhook signature mismatch")
		respond.SafeError(w, http.StatusUnauthorized, respond.Public(http.StatusUnauthorized, "invalid_signature", nil))
		return
	}

	res, err := h.Svc.Handle(r.Context(), body)
	switch {
	case errors.Is(err, webhookUC.ErrInvalidPayload):
		respond.SafeError(w, http.StatusBadRequest, respond.Public(http.StatusBadRequest, "invalid_webhook_payload", err))
		return
	case err != nil:
		respond.SafeError(w, http.StatusInternalServerError, respond.Public(http.StatusInternalServerError, "webhook_processing_failed", err))
		return
	}

	logger.Info("webhook processed",
		slog.Int("total_changes", res.TotalChanges),
		slog.Int("processed_reels", res.ProcessedReels),
		slog.Int("failed", res.Failed))
	respond.JSON(w, http.StatusOK, receiveResponse{Received: true, Result: res})
}
