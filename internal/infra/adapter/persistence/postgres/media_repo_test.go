package postgres_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reel-relay/internal/domain/entity"
	"reel-relay/internal/infra/adapter/persistence/postgres"
)

var mediaCols = []string{
	"id", "media_id", "media_type", "product_type", "permalink", "media_url", "caption", "media_timestamp", "raw", "created_at",
}

func TestMediaRepo_UpsertByMediaID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := &entity.Media{
		MediaID: "1789", MediaType: "VIDEO", ProductType: "REELS",
		Permalink: "https://www.instagram.com/reel/C1/", Caption: strPtr("hi"), Timestamp: &ts,
		Raw: []byte(`{"id":"1789"}`),
	}

	mock.ExpectQuery(regexp.QuoteMeta(`ON CONFLICT (media_id) DO UPDATE SET`)).
		WithArgs(sqlmock.AnyArg(), "1789", "VIDEO", "REELS", m.Permalink, nil, "hi", ts, `{"id":"1789"}`).
		WillReturnRows(sqlmock.NewRows(mediaCols).AddRow(
			"row-1", "1789", "VIDEO", "REELS", m.Permalink, nil, "hi", ts, []byte(`{"id":"1789"}`), ts,
		))

	got, err := postgres.NewMediaRepo(db).UpsertByMediaID(context.Background(), m)

	require.NoError(t, err)
	assert.Equal(t, "row-1", got.RowID)
	assert.Equal(t, "hi", *got.Caption)
	assert.Nil(t, got.MediaURL)
	assert.JSONEq(t, `{"id":"1789"}`, string(got.Raw))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaRepo_GetByMediaID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`FROM instagram_media`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(mediaCols))

	got, err := postgres.NewMediaRepo(db).GetByMediaID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}
