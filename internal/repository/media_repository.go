package repository

import (
	"context"

	"reel-relay/internal/domain/entity"
)

type MediaRepository interface {
	// UpsertByMediaID stores m keyed by its Graph media id and returns the stored row.
	UpsertByMediaID(ctx context.Context, m *entity.Media) (*entity.Media, error)
	GetByMediaID(ctx context.Context, mediaID string) (*entity.Media, error)
}
