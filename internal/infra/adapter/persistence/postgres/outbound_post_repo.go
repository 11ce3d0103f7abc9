package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"reel-relay/internal/domain/entity"
	"reel-relay/internal/repository"
)

type OutboundPostRepo struct{ db *sql.DB }

func NewOutboundPostRepo(db *sql.DB) repository.OutboundPostRepository {
	return &OutboundPostRepo{db: db}
}

const outboundPostColumns = `id, idempotency_key, media_request_id, media_row_id, target_chat_id, status,
retry_count, delivered_message_id, error_reason, created_at, updated_at`

func scanOutboundPost(row rowScanner) (*entity.OutboundPost, error) {
	var post entity.OutboundPost
	if err := row.Scan(
		&post.ID, &post.IdempotencyKey, &post.MediaRequestID, &post.MediaRowID, &post.TargetChatID, &post.Status,
		&post.RetryCount, &post.DeliveredMessageID, &post.ErrorReason, &post.CreatedAt, &post.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &post, nil
}

func (repo *OutboundPostRepo) CreatePending(ctx context.Context, post *entity.OutboundPost) (*entity.OutboundPost, error) {
	id := post.ID
	if id == "" {
		id = uuid.NewString()
	}

	const insert = `
INSERT INTO outbound_posts (id, idempotency_key, media_request_id, media_row_id, target_chat_id, status, retry_count)
VALUES ($1, $2, $3, $4, $5, 'PENDING', 0)
ON CONFLICT (idempotency_key) DO NOTHING
RETURNING ` + outboundPostColumns
	created, err := scanOutboundPost(repo.db.QueryRowContext(ctx, insert,
		id, post.IdempotencyKey, post.MediaRequestID, post.MediaRowID, post.TargetChatID,
	))
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("CreatePending: %w", err)
	}

	const selectExisting = `SELECT ` + outboundPostColumns + ` FROM outbound_posts WHERE idempotency_key = $1`
	existing, err := scanOutboundPost(repo.db.QueryRowContext(ctx, selectExisting, post.IdempotencyKey))
	if err != nil {
		return nil, fmt.Errorf("CreatePending: load existing: %w", err)
	}
	return existing, nil
}

// MarkSent and MarkFailed only move PENDING or FAILED rows; SENT and DEAD
// are final and yield entity.ErrConflict.
func (repo *OutboundPostRepo) MarkSent(ctx context.Context, id string, messageID string) error {
	const query = `
UPDATE outbound_posts
SET status = 'SENT', delivered_message_id = $2, error_reason = NULL, updated_at = now()
WHERE id = $1 AND status IN ('PENDING', 'FAILED')`
	return repo.exec(ctx, "MarkSent", query, id, messageID)
}

func (repo *OutboundPostRepo) MarkFailed(ctx context.Context, id string, reason string) error {
	const query = `
UPDATE outbound_posts
SET status = 'FAILED', error_reason = $2, retry_count = retry_count + 1, updated_at = now()
WHERE id = $1 AND status IN ('PENDING', 'FAILED')`
	return repo.exec(ctx, "MarkFailed", query, id, entity.TruncateReason(reason))
}

func (repo *OutboundPostRepo) MarkDead(ctx context.Context, id string, reason string) error {
	const query = `
UPDATE outbound_posts
SET status = 'DEAD', error_reason = $2, updated_at = now()
WHERE id = $1 AND status IN ('PENDING', 'FAILED')`
	return repo.exec(ctx, "MarkDead", query, id, entity.TruncateReason(reason))
}

func (repo *OutboundPostRepo) CountPending(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM outbound_posts WHERE status = 'PENDING'`
	var n int64
	if err := repo.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("CountPending: %w", err)
	}
	return n, nil
}

func (repo *OutboundPostRepo) exec(ctx context.Context, op, query string, args ...any) error {
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, entity.ErrConflict)
	}
	return nil
}
