package request

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"reel-relay/internal/handler/http/respond"
	"reel-relay/internal/usecase/ingest"
)

// Submitter is satisfied by *ingest.Service.
type Submitter interface {
	Submit(ctx context.Context, rawURL string, meta ingest.Meta) (ingest.Result, error)
}

type SubmitHandler struct{ Svc Submitter }

// ServeHTTP answers 201 for a new request and 200 when the link was
// already known; both carry the request id.
func (h SubmitHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		respond.SafeError(w, http.StatusBadRequest, errors.New("url is required"))
		return
	}

	res, err := h.Svc.Submit(r.Context(), req.URL, ingest.Meta{
		ChatID:      req.ChatID,
		MessageID:   req.MessageID,
		SubmitterID: req.SubmitterID,
	})
	if err != nil {
		code := http.StatusInternalServerError
		switch {
		case errors.Is(err, ingest.ErrInvalidReelURL):
			code = http.StatusBadRequest
		case errors.Is(err, ingest.ErrSubmitterBanned):
			code = http.StatusForbidden
		}
		// 登録済みだがキュー投入に失敗した場合もIDは返さない
		respond.SafeError(w, code, err)
		return
	}

	code := http.StatusCreated
	if res.AlreadyExists {
		code = http.StatusOK
	}
	respond.JSON(w, code, submitResponse{RequestID: res.RequestID, AlreadyExists: res.AlreadyExists})
}
