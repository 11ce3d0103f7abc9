package queue_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reel-relay/internal/infra/queue"
)

func TestOpen_Postgres(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	b, err := queue.Open(context.Background(), queue.BackendPostgres, db, "", queue.DefaultOptions(), queue.NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, err)
	assert.Equal(t, queue.BackendPostgres, b.Name)
	assert.IsType(t, &queue.PostgresQueue{}, b.Queue)

	mock.ExpectPing()
	assert.NoError(t, b.Ping(context.Background()))
	assert.NoError(t, b.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_Errors(t *testing.T) {
	_, err := queue.Open(context.Background(), queue.BackendPostgres, nil, "", queue.DefaultOptions(), nil)
	assert.Error(t, err)

	_, err = queue.Open(context.Background(), "sqs", nil, "", queue.DefaultOptions(), nil)
	assert.ErrorContains(t, err, "unknown backend")
}
