package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"reel-relay/internal/domain/entity"
	"reel-relay/internal/domain/idempotency"
	"reel-relay/internal/infra/queue"
	"reel-relay/internal/observability/metrics"
	"reel-relay/internal/repository"
)

// Publisher is the part of queue.Queue used to enqueue fetch jobs.
type Publisher interface {
	Publish(ctx context.Context, name string, payload any, opts queue.PublishOptions) (string, error)
}

// Meta describes who submitted a link and where to reply. Zero values mean
// a LINK submission with no reply target.
type Meta struct {
	Source      entity.SourceType
	ChatID      *string
	MessageID   *int64
	SubmitterID *string
}

// Result is returned for every accepted link, new or not.
type Result struct {
	RequestID     string
	AlreadyExists bool
}

// Service implements link ingestion.
type Service struct {
	Requests repository.MediaRequestRepository
	// Banned may be nil, which disables the ban check.
	Banned repository.BannedUserRepository
	Queue  Publisher
}

// Ingest validates and normalizes rawURL and finds or creates its media
// request. Concurrent duplicates resolve through the repository's unique
// key, never through a prior existence check.
func (s *Service) Ingest(ctx context.Context, rawURL string, meta Meta) (Result, error) {
	source := meta.Source
	if source == "" {
		source = entity.SourceTypeLink
	}

	normalized, err := entity.NormalizeReelURL(rawURL)
	if err != nil {
		metrics.RecordIngestRejected(source)
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidReelURL, err)
	}

	if s.Banned != nil && meta.SubmitterID != nil && *meta.SubmitterID != "" {
		banned, err := s.Banned.IsBanned(ctx, *meta.SubmitterID)
		if err != nil {
			return Result{}, fmt.Errorf("check ban: %w", err)
		}
		if banned {
			metrics.RecordIngestRejected(source)
			return Result{}, ErrSubmitterBanned
		}
	}

	req, created, err := s.Requests.CreateIfAbsent(ctx, &entity.MediaRequest{
		IdempotencyKey: idempotency.ForReelURL(normalized),
		Status:         entity.MediaRequestNew,
		SourceType:     source,
		NormalizedURL:  normalized,
		OriginalURL:    rawURL,
		ChatID:         meta.ChatID,
		MessageID:      meta.MessageID,
		SubmitterID:    meta.SubmitterID,
	})
	if err != nil {
		return Result{}, fmt.Errorf("create media request: %w", err)
	}

	metrics.RecordIngested(source, !created)
	return Result{RequestID: req.ID, AlreadyExists: !created}, nil
}

// Submit ingests the link and, when the request is new, publishes its fetch
// job with the request id as singleton key.
//
// A duplicate submission never enqueues: the original job (or the
// reconciliation sweep) already owns that request.
func (s *Service) Submit(ctx context.Context, rawURL string, meta Meta) (Result, error) {
	res, err := s.Ingest(ctx, rawURL, meta)
	if err != nil {
		return Result{}, err
	}
	if res.AlreadyExists {
		return res, nil
	}
	if _, err := s.Enqueue(ctx, res.RequestID); err != nil {
		return res, err
	}
	return res, nil
}

// Enqueue publishes the fetch job for requestID. It reports false when the
// queue collapsed the job into an already pending one.
func (s *Service) Enqueue(ctx context.Context, requestID string) (bool, error) {
	jobID, err := s.Queue.Publish(ctx, queue.JobFetchMediaRequest,
		queue.FetchMediaRequestPayload{RequestID: requestID},
		queue.PublishOptions{SingletonKey: requestID},
	)
	if err != nil {
		return false, fmt.Errorf("enqueue %s: %w", requestID, err)
	}
	slog.Default().Debug("fetch job published",
		slog.String("request_id", requestID),
		slog.String("job_id", jobID),
		slog.Bool("collapsed", jobID == ""))
	return jobID != "", nil
}
