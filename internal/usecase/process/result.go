// Package process drives a media request from NEW to POSTED: resolve the
// reel, classify it, store it, reply to the submitter, retrying whole
// attempts with exponential backoff and recording terminal failures.
package process

import (
	"errors"
	"fmt"
)

// ErrIneligibleMedia is the error of an attempt that resolved media which is not a reel.
var ErrIneligibleMedia = errors.New("non_reel_media_detected")

// AttemptResult is the typed outcome of one processing attempt.
type AttemptResult int

const (
	AttemptError AttemptResult = iota
	// AttemptDelivered means the request reached POSTED in this attempt.
	AttemptDelivered
	// AttemptNoOp means the request was already terminal.
	AttemptNoOp
	// AttemptIneligible means the media was resolved but is not a reel.
	AttemptIneligible
)

func (r AttemptResult) String() string {
	switch r {
	case AttemptDelivered:
		return "delivered"
	case AttemptNoOp:
		return "noop"
	case AttemptIneligible:
		return "ineligible"
	default:
		return "error"
	}
}

// FailureClass tells the retry loop whether another attempt may help.
type FailureClass int

const (
	FailureRetryable FailureClass = iota
	FailurePermanent
)

// Classifier maps an attempt error to a FailureClass.
type Classifier func(error) FailureClass

// RetryEverything is the default classifier: every failure is retried up to
// the attempt cap, ineligible media included.
func RetryEverything(error) FailureClass { return FailureRetryable }

// IneligibleIsPermanent stops retrying as soon as the media is known not to be a reel.
func IneligibleIsPermanent(err error) FailureClass {
	if errors.Is(err, ErrIneligibleMedia) {
		return FailurePermanent
	}
	return FailureRetryable
}

// Classifier names accepted by ClassifierByName.
const (
	ClassifierRetryEverything     = "retry-everything"
	ClassifierIneligiblePermanent = "ineligible-permanent"
)

// ClassifierByName resolves a configured classifier; "" means RetryEverything.
func ClassifierByName(name string) (Classifier, error) {
	switch name {
	case "", ClassifierRetryEverything:
		return RetryEverything, nil
	case ClassifierIneligiblePermanent:
		return IneligibleIsPermanent, nil
	default:
		return nil, fmt.Errorf("unknown failure classifier %q", name)
	}
}
