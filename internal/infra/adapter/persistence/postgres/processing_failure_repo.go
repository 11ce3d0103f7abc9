package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"reel-relay/internal/domain/entity"
	"reel-relay/internal/repository"
)

type ProcessingFailureRepo struct{ db *sql.DB }

func NewProcessingFailureRepo(db *sql.DB) repository.ProcessingFailureRepository {
	return &ProcessingFailureRepo{db: db}
}

func (repo *ProcessingFailureRepo) Record(ctx context.Context, f *entity.ProcessingFailure) error {
	id := f.ID
	if id == "" {
		id = uuid.NewString()
	}
	payload := []byte(f.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	const query = `
INSERT INTO processing_failures (id, job_name, payload, error_reason, retry_count)
VALUES ($1, $2, $3, $4, $5)`
	if _, err := repo.db.ExecContext(ctx, query,
		id, f.JobName, string(payload), entity.TruncateReason(f.ErrorReason), f.RetryCount,
	); err != nil {
		return fmt.Errorf("Record: %w", err)
	}
	return nil
}

func (repo *ProcessingFailureRepo) ListRecent(ctx context.Context, limit int) ([]*entity.ProcessingFailure, error) {
	const query = `
SELECT id, job_name, payload, error_reason, retry_count, created_at
FROM processing_failures
ORDER BY created_at DESC
LIMIT $1`
	rows, err := repo.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ListRecent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	failures := make([]*entity.ProcessingFailure, 0, limit)
	for rows.Next() {
		var f entity.ProcessingFailure
		var payload []byte
		if err := rows.Scan(&f.ID, &f.JobName, &payload, &f.ErrorReason, &f.RetryCount, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("ListRecent: %w", err)
		}
		f.Payload = payload
		failures = append(failures, &f)
	}
	return failures, rows.Err()
}
