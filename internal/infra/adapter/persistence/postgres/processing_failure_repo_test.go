package postgres_test

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reel-relay/internal/domain/entity"
	"reel-relay/internal/infra/adapter/persistence/postgres"
)

func TestProcessingFailureRepo_Record(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	long := strings.Repeat("x", entity.MaxErrorReasonLength+50)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO processing_failures`)).
		WithArgs(sqlmock.AnyArg(), "fetch-media-request", `{"requestId":"r1"}`, long[:entity.MaxErrorReasonLength], 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = postgres.NewProcessingFailureRepo(db).Record(context.Background(), &entity.ProcessingFailure{
		JobName:     "fetch-media-request",
		Payload:     json.RawMessage(`{"requestId":"r1"}`),
		ErrorReason: long,
		RetryCount:  3,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessingFailureRepo_Record_EmptyPayload(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec(`INSERT INTO processing_failures`).
		WithArgs("f1", "fetch-media-request", "{}", "boom", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = postgres.NewProcessingFailureRepo(db).Record(context.Background(), &entity.ProcessingFailure{
		ID: "f1", JobName: "fetch-media-request", ErrorReason: "boom", RetryCount: 1,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessingFailureRepo_ListRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	t1 := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	t0 := t1.Add(-time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY created_at DESC`)).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "job_name", "payload", "error_reason", "retry_count", "created_at"}).
			AddRow("f2", "fetch-media-request", []byte(`{"requestId":"r2"}`), "timeout", 3, t1).
			AddRow("f1", "fetch-media-request", []byte(`{"requestId":"r1"}`), "500", 3, t0))

	got, err := postgres.NewProcessingFailureRepo(db).ListRecent(context.Background(), 2)
	require.NoError(t, err)

	want := []*entity.ProcessingFailure{
		{ID: "f2", JobName: "fetch-media-request", Payload: json.RawMessage(`{"requestId":"r2"}`), ErrorReason: "timeout", RetryCount: 3, CreatedAt: t1},
		{ID: "f1", JobName: "fetch-media-request", Payload: json.RawMessage(`{"requestId":"r1"}`), ErrorReason: "500", RetryCount: 3, CreatedAt: t0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListRecent mismatch (-want +got):\n%s", diff)
	}
}
