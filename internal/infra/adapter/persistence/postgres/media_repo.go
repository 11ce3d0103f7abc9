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

type MediaRepo struct{ db *sql.DB }

func NewMediaRepo(db *sql.DB) repository.MediaRepository {
	return &MediaRepo{db: db}
}

const mediaColumns = `id, media_id, media_type, product_type, permalink, media_url, caption, media_timestamp, raw, created_at`

func scanMedia(row rowScanner) (*entity.Media, error) {
	var m entity.Media
	var raw []byte
	if err := row.Scan(
		&m.RowID, &m.MediaID, &m.MediaType, &m.ProductType, &m.Permalink,
		&m.MediaURL, &m.Caption, &m.Timestamp, &raw, &m.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		m.Raw = raw
	}
	return &m, nil
}

// nullJSON keeps an absent payload NULL instead of an empty jsonb value.
func nullJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func (repo *MediaRepo) UpsertByMediaID(ctx context.Context, m *entity.Media) (*entity.Media, error) {
	const query = `
INSERT INTO instagram_media
    (id, media_id, media_type, product_type, permalink, media_url, caption, media_timestamp, raw)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (media_id) DO UPDATE SET
    media_type      = EXCLUDED.media_type,
    product_type    = EXCLUDED.product_type,
    permalink       = EXCLUDED.permalink,
    media_url       = EXCLUDED.media_url,
    caption         = EXCLUDED.caption,
    media_timestamp = EXCLUDED.media_timestamp,
    raw             = EXCLUDED.raw
RETURNING ` + mediaColumns
	saved, err := scanMedia(repo.db.QueryRowContext(ctx, query,
		uuid.NewString(), m.MediaID, m.MediaType, m.ProductType, m.Permalink,
		m.MediaURL, m.Caption, m.Timestamp, nullJSON(m.Raw),
	))
	if err != nil {
		return nil, fmt.Errorf("UpsertByMediaID: %w", err)
	}
	return saved, nil
}

func (repo *MediaRepo) GetByMediaID(ctx context.Context, mediaID string) (*entity.Media, error) {
	const query = `SELECT ` + mediaColumns + ` FROM instagram_media WHERE media_id = $1`
	m, err := scanMedia(repo.db.QueryRowContext(ctx, query, mediaID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetByMediaID: %w", err)
	}
	return m, nil
}
