package webhook

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"

	"reel-relay/internal/handler/http/respond"
	"reel-relay/internal/observability/logging"
)

// VerifyHandler answers Meta's subscription handshake.
type VerifyHandler struct {
	VerifyToken string
}

func (h VerifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode != "subscribe" || h.VerifyToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(h.VerifyToken)) != 1 {
		logging.FromContext(r.Context()).Warn("webhook verification rejected", slog.String("mode", mode))
		respond.SafeError(w, http.StatusForbidden, errors.New("forbidden"))
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}
