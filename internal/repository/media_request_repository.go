package repository

import (
	"context"
	"time"

	"reel-relay/internal/domain/entity"
)

// MediaRequestRepository persists media requests. The idempotency key is
// unique at the storage layer; callers never rely on a prior read for it.
type MediaRequestRepository interface {
	Get(ctx context.Context, id string) (*entity.MediaRequest, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*entity.MediaRequest, error)
	// CreateIfAbsent inserts req unless a row with the same idempotency key
	// exists. It returns the stored row and whether this call created it.
	CreateIfAbsent(ctx context.Context, req *entity.MediaRequest) (*entity.MediaRequest, bool, error)
	// MarkFetching moves a non-terminal request to FETCHING and clears the error reason.
	MarkFetching(ctx context.Context, id string) error
	MarkReady(ctx context.Context, id string, resolvedMediaID *string) error
	MarkPosted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, reason string) error
	ListStale(ctx context.Context, statuses []entity.MediaRequestStatus, updatedBefore time.Time, limit int) ([]*entity.MediaRequest, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int64, error)
	CountFailedSince(ctx context.Context, since time.Time) (int64, error)
}
