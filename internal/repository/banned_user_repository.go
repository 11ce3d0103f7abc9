package repository

import (
	"context"

	"reel-relay/internal/domain/entity"
)

type BannedUserRepository interface {
	Ban(ctx context.Context, user *entity.BannedUser) error
	Unban(ctx context.Context, userID string) error
	IsBanned(ctx context.Context, userID string) (bool, error)
}
