package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"reel-relay/internal/domain/entity"
	"reel-relay/internal/repository"
)

type MediaRequestRepo struct{ db *sql.DB }

func NewMediaRequestRepo(db *sql.DB) repository.MediaRequestRepository {
	return &MediaRequestRepo{db: db}
}

const mediaRequestColumns = `id, idempotency_key, status, source_type, normalized_url, original_url,
resolved_media_id, error_reason, chat_id, message_id, submitter_id, created_at, updated_at`

// nonTerminal lists the states a request may still leave.
const nonTerminal = `('NEW', 'FETCHING', 'READY')`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMediaRequest(row rowScanner) (*entity.MediaRequest, error) {
	var req entity.MediaRequest
	if err := row.Scan(
		&req.ID, &req.IdempotencyKey, &req.Status, &req.SourceType, &req.NormalizedURL, &req.OriginalURL,
		&req.ResolvedMediaID, &req.ErrorReason, &req.ChatID, &req.MessageID, &req.SubmitterID,
		&req.CreatedAt, &req.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &req, nil
}

func (repo *MediaRequestRepo) Get(ctx context.Context, id string) (*entity.MediaRequest, error) {
	query := `SELECT ` + mediaRequestColumns + ` FROM media_requests WHERE id = $1`
	req, err := scanMediaRequest(repo.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return req, nil
}

func (repo *MediaRequestRepo) FindByIdempotencyKey(ctx context.Context, key string) (*entity.MediaRequest, error) {
	query := `SELECT ` + mediaRequestColumns + ` FROM media_requests WHERE idempotency_key = $1`
	req, err := scanMediaRequest(repo.db.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindByIdempotencyKey: %w", err)
	}
	return req, nil
}

// CreateIfAbsent relies on the unique index over idempotency_key: a losing
// concurrent insert affects no row and falls back to reading the winner.
func (repo *MediaRequestRepo) CreateIfAbsent(ctx context.Context, req *entity.MediaRequest) (*entity.MediaRequest, bool, error) {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	status := req.Status
	if status == "" {
		status = entity.MediaRequestNew
	}

	query := `
INSERT INTO media_requests
    (id, idempotency_key, status, source_type, normalized_url, original_url, chat_id, message_id, submitter_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (idempotency_key) DO NOTHING
RETURNING ` + mediaRequestColumns
	created, err := scanMediaRequest(repo.db.QueryRowContext(ctx, query,
		id, req.IdempotencyKey, string(status), string(req.SourceType), req.NormalizedURL, req.OriginalURL,
		req.ChatID, req.MessageID, req.SubmitterID,
	))
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("CreateIfAbsent: %w", err)
	}

	existing, err := repo.FindByIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, false, fmt.Errorf("CreateIfAbsent: %w", err)
	}
	if existing == nil {
		return nil, false, fmt.Errorf("CreateIfAbsent: conflicting row for key %s vanished", req.IdempotencyKey)
	}
	return existing, false, nil
}

func (repo *MediaRequestRepo) MarkFetching(ctx context.Context, id string) error {
	const query = `
UPDATE media_requests
SET status = 'FETCHING', error_reason = NULL, updated_at = now()
WHERE id = $1 AND status IN ` + nonTerminal
	return repo.execGuarded(ctx, "MarkFetching", query, id)
}

func (repo *MediaRequestRepo) MarkReady(ctx context.Context, id string, resolvedMediaID *string) error {
	const query = `
UPDATE media_requests
SET status = 'READY', resolved_media_id = $2, error_reason = NULL, updated_at = now()
WHERE id = $1 AND status = 'FETCHING'`
	return repo.execGuarded(ctx, "MarkReady", query, id, resolvedMediaID)
}

func (repo *MediaRequestRepo) MarkPosted(ctx context.Context, id string) error {
	const query = `
UPDATE media_requests
SET status = 'POSTED', error_reason = NULL, updated_at = now()
WHERE id = $1 AND status = 'READY'`
	return repo.execGuarded(ctx, "MarkPosted", query, id)
}

func (repo *MediaRequestRepo) MarkFailed(ctx context.Context, id string, reason string) error {
	const query = `
UPDATE media_requests
SET status = 'FAILED', error_reason = $2, updated_at = now()
WHERE id = $1 AND status IN ` + nonTerminal
	return repo.execGuarded(ctx, "MarkFailed", query, id, entity.TruncateReason(reason))
}

func (repo *MediaRequestRepo) execGuarded(ctx context.Context, op, query string, args ...any) error {
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

func (repo *MediaRequestRepo) ListStale(
	ctx context.Context,
	statuses []entity.MediaRequestStatus,
	updatedBefore time.Time,
	limit int,
) ([]*entity.MediaRequest, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(statuses))
	args := make([]any, 0, len(statuses)+2)
	for i, s := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args = append(args, string(s))
	}
	n := len(statuses)
	args = append(args, updatedBefore, limit)

	query := `
SELECT ` + mediaRequestColumns + `
FROM media_requests
WHERE status IN (` + strings.Join(placeholders, ", ") + `)
  AND updated_at < $` + strconv.Itoa(n+1) + `
ORDER BY updated_at ASC
LIMIT $` + strconv.Itoa(n+2)
	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListStale: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*entity.MediaRequest, 0, limit)
	for rows.Next() {
		req, err := scanMediaRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("ListStale: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (repo *MediaRequestRepo) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	const query = `SELECT COUNT(*) FROM media_requests WHERE created_at >= $1`
	var n int64
	if err := repo.db.QueryRowContext(ctx, query, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("CountCreatedSince: %w", err)
	}
	return n, nil
}

func (repo *MediaRequestRepo) CountFailedSince(ctx context.Context, since time.Time) (int64, error) {
	const query = `SELECT COUNT(*) FROM media_requests WHERE status = 'FAILED' AND updated_at >= $1`
	var n int64
	if err := repo.db.QueryRowContext(ctx, query, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("CountFailedSince: %w", err)
	}
	return n, nil
}
