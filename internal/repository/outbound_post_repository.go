package repository

import (
	"context"

	"reel-relay/internal/domain/entity"
)

type OutboundPostRepository interface {
	// CreatePending inserts post in PENDING state. On a duplicate idempotency
	// key the existing row is returned unchanged.
	CreatePending(ctx context.Context, post *entity.OutboundPost) (*entity.OutboundPost, error)
	MarkSent(ctx context.Context, id string, messageID string) error
	// MarkFailed records a failed delivery and increments retry_count.
	MarkFailed(ctx context.Context, id string, reason string) error
	MarkDead(ctx context.Context, id string, reason string) error
	CountPending(ctx context.Context) (int64, error)
}
