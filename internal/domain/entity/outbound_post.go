package entity

import "time"

// OutboundPostStatus is the lifecycle state of an OutboundPost.
type OutboundPostStatus string

const (
	OutboundPostPending OutboundPostStatus = "PENDING"
	OutboundPostSent    OutboundPostStatus = "SENT"
	OutboundPostFailed  OutboundPostStatus = "FAILED"
	// OutboundPostDead is only set by operators; the delivery subscriber never reaches it.
	OutboundPostDead OutboundPostStatus = "DEAD"
)

// OutboundPost is one delivery of a resolved reel to a target chat.
// IdempotencyKey is derived from (media id, target chat id) so the same
// reel is delivered at most once per chat.
type OutboundPost struct {
	ID                 string
	IdempotencyKey     string
	MediaRequestID     *string
	MediaRowID         *string
	TargetChatID       string
	Status             OutboundPostStatus
	RetryCount         int
	DeliveredMessageID *string
	ErrorReason        *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
