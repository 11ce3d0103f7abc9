package process

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"reel-relay/internal/domain/entity"
	"reel-relay/internal/infra/notifier"
	"reel-relay/internal/infra/queue"
	"reel-relay/internal/observability/metrics"
	"reel-relay/internal/observability/tracing"
	"reel-relay/internal/repository"
	"reel-relay/internal/resilience/retry"
)

// MediaLookup resolves reels through the Graph API.
type MediaLookup interface {
	GetByReelURL(ctx context.Context, reelURL string) (*entity.Media, error)
}

// Config holds the retry policy and the group invite link shown on replies.
type Config struct {
	MaxAttempts     int
	BackoffBase     time.Duration
	BackoffMax      time.Duration
	GroupInviteLink string
}

// DefaultConfig is 3 attempts waiting 500ms then 1s.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, BackoffBase: 500 * time.Millisecond, BackoffMax: 30 * time.Second}
}

// Service runs the fetch-media-request job.
type Service struct {
	Requests repository.MediaRequestRepository
	Media    repository.MediaRepository
	Failures repository.ProcessingFailureRepository
	Lookup   MediaLookup
	Sender   notifier.Sender
	Config   Config

	// Classifier defaults to RetryEverything.
	Classifier Classifier
	// Sleep replaces the backoff wait in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (s *Service) retryConfig() retry.Config {
	cfg := retry.PipelineConfig(s.Config.MaxAttempts, s.Config.BackoffBase, s.Config.BackoffMax)
	classify := s.Classifier
	if classify == nil {
		classify = RetryEverything
	}
	cfg.Retryable = func(err error) bool { return classify(err) == FailureRetryable }
	cfg.Sleep = s.Sleep
	return cfg
}

// Process drives requestID to a terminal state.
//
// A terminal request is left untouched. When every attempt fails the request
// is marked FAILED and one processing failure is recorded; that outcome is
// not an error. Errors are returned only when the context ends before a
// terminal outcome (during backoff or inside any attempt, the last one
// included) or the failure itself cannot be stored, so the queue redelivers.
func (s *Service) Process(ctx context.Context, requestID string) error {
	start := time.Now()
	ctx, span := tracing.Start(ctx, "process.Process", attribute.String("request.id", requestID))
	defer span.End()

	var last AttemptResult
	err := retry.WithAttempts(ctx, s.retryConfig(), func(attempt int) error {
		res, err := s.attempt(ctx, requestID, attempt)
		last = res
		metrics.RecordAttempt(res.String())
		return err
	})

	var exhausted *retry.ExhaustedError
	switch {
	case err != nil && ctx.Err() != nil:
		// 停止中のキャンセル（最終試行を含む）。FAILED にはせず再配信に任せる
		tracing.Fail(span, err)
		metrics.RecordProcessOutcome("aborted", time.Since(start))
		return fmt.Errorf("process %s: aborted: %w", requestID, errors.Join(ctx.Err(), err))

	case err == nil:
		outcome := "posted"
		if last == AttemptNoOp {
			outcome = "noop"
		}
		metrics.RecordProcessOutcome(outcome, time.Since(start))
		return nil

	case errors.As(err, &exhausted):
		tracing.Fail(span, exhausted.Err)
		metrics.RecordProcessOutcome("failed", time.Since(start))
		return s.recordFailure(context.WithoutCancel(ctx), requestID, exhausted)

	default:
		// backoff 中のキャンセル。FAILED にはせず再配信に任せる
		tracing.Fail(span, err)
		metrics.RecordProcessOutcome("aborted", time.Since(start))
		return fmt.Errorf("process %s: %w", requestID, err)
	}
}

func (s *Service) attempt(ctx context.Context, requestID string, n int) (AttemptResult, error) {
	ctx, span := tracing.Start(ctx, "process.attempt",
		attribute.String("request.id", requestID),
		attribute.Int("attempt", n))
	defer span.End()

	res, err := s.processOnce(ctx, requestID)
	span.SetAttributes(attribute.String("result", res.String()))
	tracing.Fail(span, err)
	return res, err
}

func (s *Service) processOnce(ctx context.Context, requestID string) (AttemptResult, error) {
	req, err := s.Requests.Get(ctx, requestID)
	if err != nil {
		return AttemptError, fmt.Errorf("load request: %w", err)
	}
	if req == nil {
		slog.Warn("media request not found, dropping job", slog.String("request_id", requestID))
		return AttemptNoOp, nil
	}
	if req.Status.IsTerminal() {
		return AttemptNoOp, nil
	}

	if err := s.Requests.MarkFetching(ctx, req.ID); err != nil {
		return AttemptError, fmt.Errorf("mark fetching: %w", err)
	}

	permalink := req.NormalizedURL
	var caption *string
	var resolvedID *string

	media, err := s.Lookup.GetByReelURL(ctx, req.NormalizedURL)
	if err != nil {
		return AttemptError, fmt.Errorf("lookup media: %w", err)
	}
	if media != nil {
		if c := entity.ClassifyMedia(media.MediaType, media.ProductType); !c.Eligible() {
			return AttemptIneligible, fmt.Errorf("%w: type=%s product=%s", ErrIneligibleMedia, c.MediaType, c.ProductType)
		}
		saved, err := s.Media.UpsertByMediaID(ctx, media)
		if err != nil {
			return AttemptError, fmt.Errorf("store media: %w", err)
		}
		resolvedID = &saved.MediaID
		permalink = saved.Permalink
		caption = saved.Caption
	}

	if err := s.Requests.MarkReady(ctx, req.ID, resolvedID); err != nil {
		return AttemptError, fmt.Errorf("mark ready: %w", err)
	}

	if req.ChatID != nil && *req.ChatID != "" {
		msg := notifier.ReelMessage(*req.ChatID, caption, permalink, s.Config.GroupInviteLink)
		if _, err := s.Sender.SendMessage(ctx, msg); err != nil {
			metrics.RecordDelivery("direct", "failed")
			return AttemptError, fmt.Errorf("reply to chat: %w", err)
		}
		metrics.RecordDelivery("direct", "sent")
	} else {
		metrics.RecordDelivery("direct", "skipped")
	}

	if err := s.Requests.MarkPosted(ctx, req.ID); err != nil {
		return AttemptError, fmt.Errorf("mark posted: %w", err)
	}
	return AttemptDelivered, nil
}

func (s *Service) recordFailure(ctx context.Context, requestID string, exhausted *retry.ExhaustedError) error {
	reason := entity.TruncateReason(exhausted.Err.Error())
	logger := slog.With(slog.String("request_id", requestID), slog.Int("attempts", exhausted.Attempts))

	if err := s.Requests.MarkFailed(ctx, requestID, reason); err != nil {
		if !errors.Is(err, entity.ErrConflict) {
			return fmt.Errorf("mark failed: %w", err)
		}
		// 既に終端状態（並行ワーカーが先に完了した）
		logger.Warn("request already terminal, failure not applied", slog.Any("error", err))
	}

	payload, err := json.Marshal(queue.FetchMediaRequestPayload{RequestID: requestID})
	if err != nil {
		return fmt.Errorf("encode failure payload: %w", err)
	}
	if err := s.Failures.Record(ctx, &entity.ProcessingFailure{
		JobName:     queue.JobFetchMediaRequest,
		Payload:     payload,
		ErrorReason: reason,
		RetryCount:  exhausted.Attempts,
	}); err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	metrics.RecordFailureRecorded()

	logger.Error("media request failed",
		slog.Bool("permanent", exhausted.Permanent),
		slog.String("reason", reason))
	return nil
}
