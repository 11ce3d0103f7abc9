package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"reel-relay/internal/domain/entity"
	"reel-relay/internal/observability/metrics"
	"reel-relay/internal/repository"
)

// Enqueuer is satisfied by *ingest.Service.
type Enqueuer interface {
	Enqueue(ctx context.Context, requestID string) (bool, error)
}

// ReconcileResult summarises one sweep.
type ReconcileResult struct {
	Scanned   int `json:"scanned"`
	Enqueued  int `json:"enqueued"`
	Collapsed int `json:"collapsed"`
	Failed    int `json:"failed"`
}

// Reconciler re-publishes fetch jobs for requests that stopped moving,
// e.g. after a crash between CreateIfAbsent and Publish or mid-processing.
// Singleton keys make re-publishing a request with a pending job a no-op.
type Reconciler struct {
	Requests   repository.MediaRequestRepository
	Queue      Enqueuer
	StaleAfter time.Duration
	BatchSize  int
	Now        func() time.Time
}

const defaultReconcileBatch = 100

var reconcilableStatuses = []entity.MediaRequestStatus{
	entity.MediaRequestNew,
	entity.MediaRequestFetching,
	// READY without a job: lost after MarkReady; processing restarts from FETCHING
	entity.MediaRequestReady,
}

// Run performs one sweep. Enqueue errors are counted and logged; only a
// failure to list stale requests is returned.
func (r *Reconciler) Run(ctx context.Context) (ReconcileResult, error) {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	batch := r.BatchSize
	if batch <= 0 {
		batch = defaultReconcileBatch
	}

	stale, err := r.Requests.ListStale(ctx, reconcilableStatuses, now().Add(-r.StaleAfter), batch)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("list stale requests: %w", err)
	}

	res := ReconcileResult{Scanned: len(stale)}
	for _, req := range stale {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		published, err := r.Queue.Enqueue(ctx, req.ID)
		switch {
		case err != nil:
			res.Failed++
			metrics.RecordReconciled("error")
			slog.Warn("reconcile enqueue failed",
				slog.String("request_id", req.ID),
				slog.Any("error", err))
		case published:
			res.Enqueued++
			metrics.RecordReconciled("enqueued")
		default:
			res.Collapsed++
			metrics.RecordReconciled("collapsed")
		}
	}

	if res.Scanned > 0 {
		slog.Info("reconciliation sweep finished",
			slog.Int("scanned", res.Scanned),
			slog.Int("enqueued", res.Enqueued),
			slog.Int("collapsed", res.Collapsed),
			slog.Int("failed", res.Failed))
	}
	return res, nil
}
