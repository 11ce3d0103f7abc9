package repository

import (
	"context"

	"reel-relay/internal/domain/entity"
)

type ProcessingFailureRepository interface {
	Record(ctx context.Context, failure *entity.ProcessingFailure) error
	ListRecent(ctx context.Context, limit int) ([]*entity.ProcessingFailure, error)
}
