// Package respond writes JSON responses. Error helpers sanitize anything
// that could carry a bot token, access token or DSN before logging it.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"reel-relay/internal/domain/entity"
)

type errorBody struct {
	Error string `json:"error"`
}

// JSON writes v with the given status. A nil v writes headers only.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// ヘッダー送信済みなのでログのみ
		slog.Default().Error("failed to encode JSON response",
			slog.Int("status_code", code),
			slog.Any("error", err))
	}
}

// PublicError pairs the message a client may see with a cause that is only
// logged.
type PublicError struct {
	Status  int
	Message string
	Err     error
}

// Public builds a PublicError. err may be nil.
func Public(status int, message string, err error) *PublicError {
	return &PublicError{Status: status, Message: message, Err: err}
}

func (e *PublicError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *PublicError) Unwrap() error { return e.Err }

// clientSafeWords mark error texts written for the caller (validation,
// missing ids, bans). Anything else could leak internals.
var clientSafeWords = []string{
	"required",
	"invalid",
	"not found",
	"already exists",
	"must be",
	"cannot be",
	"too long",
	"too short",
	"banned",
	"unauthorized",
	"forbidden",
}

// SafeError writes {"error": msg}.
//
// A *PublicError anywhere in the chain decides both status and message.
// Otherwise 5xx always becomes "internal server error", and a 4xx keeps its
// text only when it is a domain validation/not-found error or reads like one.
func SafeError(w http.ResponseWriter, code int, err error) {
	if err == nil {
		return
	}

	var pub *PublicError
	if errors.As(err, &pub) {
		if pub.Err != nil {
			logFailure("request rejected", pub.Status, pub.Err, slog.String("public_message", pub.Message))
		}
		JSON(w, pub.Status, errorBody{Error: pub.Message})
		return
	}

	if code < http.StatusInternalServerError && clientSafe(err) {
		JSON(w, code, errorBody{Error: err.Error()})
		return
	}

	logFailure("internal server error", code, err)
	msg := "internal server error"
	if code < http.StatusInternalServerError {
		msg = strings.ToLower(http.StatusText(code))
	}
	JSON(w, code, errorBody{Error: msg})
}

func clientSafe(err error) bool {
	if errors.Is(err, entity.ErrInvalidInput) || errors.Is(err, entity.ErrNotFound) {
		return true
	}
	lower := strings.ToLower(err.Error())
	for _, word := range clientSafeWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

func logFailure(msg string, code int, err error, attrs ...any) {
	args := append([]any{
		slog.Int("code", code),
		slog.String("status", http.StatusText(code)),
		slog.String("error", SanitizeError(err)),
	}, attrs...)
	slog.Default().Error(msg, args...)
}
