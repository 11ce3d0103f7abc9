package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"reel-relay/internal/domain/entity"
	"reel-relay/internal/repository"
)

type BannedUserRepo struct{ db *sql.DB }

func NewBannedUserRepo(db *sql.DB) repository.BannedUserRepository {
	return &BannedUserRepo{db: db}
}

func (repo *BannedUserRepo) Ban(ctx context.Context, u *entity.BannedUser) error {
	const query = `
INSERT INTO banned_users (user_id, reason, banned_by)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE SET reason = EXCLUDED.reason, banned_by = EXCLUDED.banned_by`
	if _, err := repo.db.ExecContext(ctx, query, u.UserID, u.Reason, u.BannedBy); err != nil {
		return fmt.Errorf("Ban: %w", err)
	}
	return nil
}

func (repo *BannedUserRepo) Unban(ctx context.Context, userID string) error {
	const query = `DELETE FROM banned_users WHERE user_id = $1`
	if _, err := repo.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("Unban: %w", err)
	}
	return nil
}

func (repo *BannedUserRepo) IsBanned(ctx context.Context, userID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM banned_users WHERE user_id = $1)`
	var banned bool
	if err := repo.db.QueryRowContext(ctx, query, userID).Scan(&banned); err != nil {
		return false, fmt.Errorf("IsBanned: %w", err)
	}
	return banned, nil
}
