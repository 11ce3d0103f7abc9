package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"reel-relay/internal/domain/entity"
	"reel-relay/internal/observability/metrics"
	"reel-relay/internal/observability/tracing"
	"reel-relay/internal/repository"
)

// MediaLookup fetches media details by id.
type MediaLookup interface {
	GetByID(ctx context.Context, mediaID string) (*entity.Media, error)
}

// EventPublisher publishes and waits for subscribers (eventbus.Bus).
type EventPublisher interface {
	Publish(ctx context.Context, evt entity.DomainEvent) error
}

// Result counts what happened to one notification.
type Result struct {
	TotalChanges    int `json:"totalChanges"`
	ProcessedReels  int `json:"processedReels"`
	SkippedNonReels int `json:"skippedNonReels"`
	Failed          int `json:"failed"`
	EventsPublished int `json:"eventsPublished"`
}

// Service turns Meta webhook notifications into ReelReceived events.
type Service struct {
	Lookup MediaLookup
	Media  repository.MediaRepository
	Events EventPublisher
	Now    func() time.Time
}

// Handle processes one raw notification body. Per-change failures are
// counted, not returned; only an unparseable body is an error.
func (s *Service) Handle(ctx context.Context, body []byte) (Result, error) {
	object, changes, err := Parse(body)
	if err != nil {
		return Result{}, err
	}
	if object != ObjectInstagram {
		return Result{}, nil
	}

	res := Result{TotalChanges: len(changes)}
	for _, ch := range changes {
		published, reel, err := s.handleChange(ctx, ch.MediaID)
		switch {
		case err != nil:
			res.Failed++
			slog.Warn("webhook media change failed",
				slog.String("media_id", ch.MediaID),
				slog.Any("error", err))
		case !reel:
			res.SkippedNonReels++
		}
		if reel {
			res.ProcessedReels++
		}
		if published {
			res.EventsPublished++
		}
	}

	metrics.RecordWebhookResult(res.ProcessedReels, res.SkippedNonReels, res.Failed)
	return res, nil
}

// handleChange reports whether the media was a stored reel and whether its
// event was published.
func (s *Service) handleChange(ctx context.Context, mediaID string) (published, reel bool, err error) {
	ctx, span := tracing.Start(ctx, "webhook.change", attribute.String("media.id", mediaID))
	defer span.End()
	defer func() { tracing.Fail(span, err) }()

	media, err := s.Lookup.GetByID(ctx, mediaID)
	if err != nil {
		return false, false, fmt.Errorf("get media: %w", err)
	}
	if !entity.ClassifyMedia(media.MediaType, media.ProductType).Eligible() {
		return false, false, nil
	}

	saved, err := s.Media.UpsertByMediaID(ctx, media)
	if err != nil {
		return false, false, fmt.Errorf("store media: %w", err)
	}

	if err := s.Events.Publish(ctx, entity.NewReelReceivedEvent(saved, s.now())); err != nil {
		return false, true, fmt.Errorf("publish %s: %w", entity.EventReelReceived, err)
	}
	return true, true, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
