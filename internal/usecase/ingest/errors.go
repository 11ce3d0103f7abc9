// Package ingest turns a submitted reel link into a deduplicated media
// request and enqueues its fetch job.
package ingest

import "errors"

var (
	// ErrInvalidReelURL is returned for input that is not an Instagram reel link.
	ErrInvalidReelURL = errors.New("invalid reel URL")

	// ErrSubmitterBanned is returned when the submitting user is on the ban list.
	ErrSubmitterBanned = errors.New("submitter is banned")
)
