package notifier

import (
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"reel-relay/internal/resilience/retry"
)

// APIError is a non-OK Bot API response.
type APIError struct {
	StatusCode  int
	Description string
	// RetryAfter is set for 429 responses.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("telegram api %d: %s (retry after %v)", e.StatusCode, e.Description, e.RetryAfter)
	}
	return fmt.Sprintf("telegram api %d: %s", e.StatusCode, e.Description)
}

// Unwrap exposes the status to retry.IsRetryable and the circuit breaker.
func (e *APIError) Unwrap() error {
	return &retry.HTTPError{StatusCode: e.StatusCode, Message: e.Description}
}

// IsRateLimited reports whether err is a 429 from the Bot API.
func IsRateLimited(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return apiErr, true
	}
	return nil, false
}

// truncateText cuts text to at most maxRunes runes, ending with suffix when cut.
func truncateText(text string, maxRunes int, suffix string) string {
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	keep := maxRunes - utf8.RuneCountInString(suffix)
	if keep < 0 {
		keep = 0
	}
	runes := []rune(text)
	return string(runes[:keep]) + suffix
}
