package entity

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// MediaRequestStatus is the lifecycle state of a MediaRequest.
type MediaRequestStatus string

const (
	MediaRequestNew      MediaRequestStatus = "NEW"
	MediaRequestFetching MediaRequestStatus = "FETCHING"
	MediaRequestReady    MediaRequestStatus = "READY"
	MediaRequestPosted   MediaRequestStatus = "POSTED"
	MediaRequestFailed   MediaRequestStatus = "FAILED"
)

// SourceType records where a MediaRequest came from. It is kept for audit only.
type SourceType string

const (
	SourceTypeLink    SourceType = "LINK"
	SourceTypeWebhook SourceType = "WEBHOOK"
)

// MaxErrorReasonLength caps error summaries stored on requests and failure records.
const MaxErrorReasonLength = 512

// MediaRequest is one attempt to resolve and deliver a single reel.
// Rows are never deleted; POSTED and FAILED are terminal.
type MediaRequest struct {
	ID              string
	IdempotencyKey  string
	Status          MediaRequestStatus
	SourceType      SourceType
	NormalizedURL   string
	OriginalURL     string
	ResolvedMediaID *string
	ErrorReason     *string

	// Reply target for the direct-submission path. All optional.
	ChatID      *string
	MessageID   *int64
	SubmitterID *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsTerminal reports whether the request can no longer change state.
func (s MediaRequestStatus) IsTerminal() bool {
	return s == MediaRequestPosted || s == MediaRequestFailed
}

// Valid reports whether s is one of the enumerated states.
func (s MediaRequestStatus) Valid() bool {
	switch s {
	case MediaRequestNew, MediaRequestFetching, MediaRequestReady, MediaRequestPosted, MediaRequestFailed:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is allowed.
//
// Re-entering FETCHING from FETCHING or READY is allowed because a retried
// attempt starts over; FAILED is reachable from every non-terminal state.
func (s MediaRequestStatus) CanTransition(next MediaRequestStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch next {
	case MediaRequestFetching:
		return true
	case MediaRequestReady:
		return s == MediaRequestFetching
	case MediaRequestPosted:
		return s == MediaRequestReady
	case MediaRequestFailed:
		return true
	}
	return false
}

// TransitionError is returned when a status change violates the state machine.
type TransitionError struct {
	From MediaRequestStatus
	To   MediaRequestStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid media request transition %s -> %s", e.From, e.To)
}

// TruncateReason shortens an error summary to MaxErrorReasonLength bytes
// without splitting a UTF-8 sequence.
func TruncateReason(reason string) string {
	if len(reason) <= MaxErrorReasonLength {
		return reason
	}
	cut := MaxErrorReasonLength
	for cut > 0 && !utf8.RuneStart(reason[cut]) {
		cut--
	}
	return reason[:cut]
}
