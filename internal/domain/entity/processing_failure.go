package entity

import (
	"encoding/json"
	"time"
)

// ProcessingFailure is an append-only diagnostic record written when a job
// exhausts its attempts. Operators read it; the pipeline never does.
type ProcessingFailure struct {
	ID          string
	JobName     string
	Payload     json.RawMessage
	ErrorReason string
	RetryCount  int
	CreatedAt   time.Time
}
