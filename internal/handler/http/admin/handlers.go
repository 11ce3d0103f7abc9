package admin

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"reel-relay/internal/domain/entity"
	"reel-relay/internal/handler/http/auth"
	"reel-relay/internal/handler/http/respond"
	"reel-relay/internal/observability/logging"
	adminUC "reel-relay/internal/usecase/admin"
)

type handlers struct {
	svc Service
	rec Reconciler
}

func (h handlers) stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, st)
}

func (h handlers) setTargetChat(w http.ResponseWriter, r *http.Request) {
	var req targetChatRequest
	if !decode(w, r, &req) {
		return
	}
	snap, err := h.svc.SetTargetChat(r.Context(), req.ChatID)
	if err != nil {
		writeError(w, err)
		return
	}
	audit(r, "target chat set", slog.String("chat_id", snap.TargetChatID))
	respond.JSON(w, http.StatusOK, toConfigDTO(snap))
}

func (h handlers) reloadConfig(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.ReloadConfig(r.Context())
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, toConfigDTO(snap))
}

func (h handlers) ban(w http.ResponseWriter, r *http.Request) {
	var req banRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.Ban(r.Context(), req.UserID, auth.SubjectFromContext(r.Context()), req.Reason); err != nil {
		writeError(w, err)
		return
	}
	audit(r, "user banned", slog.String("user_id", req.UserID))
	w.WriteHeader(http.StatusNoContent)
}

func (h handlers) unban(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	if err := h.svc.Unban(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}
	audit(r, "user unbanned", slog.String("user_id", userID))
	w.WriteHeader(http.StatusNoContent)
}

func (h handlers) failures(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respond.SafeError(w, http.StatusBadRequest, errors.New("limit must be an integer"))
			return
		}
		limit = n
	}

	list, err := h.svc.RecentFailures(r.Context(), limit)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]failureDTO, 0, len(list))
	for _, f := range list {
		out = append(out, toFailureDTO(f))
	}
	respond.JSON(w, http.StatusOK, out)
}

func (h handlers) markDead(w http.ResponseWriter, r *http.Request) {
	var req markDeadRequest
	// 理由は任意なので空ボディも受け付ける
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	postID := r.PathValue("id")
	if err := h.svc.MarkDead(r.Context(), postID, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	audit(r, "outbound post marked dead", slog.String("post_id", postID))
	w.WriteHeader(http.StatusNoContent)
}

func (h handlers) reconcile(w http.ResponseWriter, r *http.Request) {
	res, err := h.rec.Run(r.Context())
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		respond.SafeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	var verr *entity.ValidationError
	switch {
	case errors.As(err, &verr):
		respond.SafeError(w, http.StatusBadRequest, err)
	case errors.Is(err, adminUC.ErrPostNotFound):
		respond.SafeError(w, http.StatusNotFound, err)
	default:
		respond.SafeError(w, http.StatusInternalServerError, err)
	}
}

func audit(r *http.Request, msg string, attrs ...any) {
	attrs = append(attrs, slog.String("subject", auth.SubjectFromContext(r.Context())))
	logging.FromContext(r.Context()).Info(msg, attrs...)
}
