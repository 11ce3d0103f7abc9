// Package deliver relays reels announced on the event bus to the configured
// target chat, at most once per (media, chat) pair.
package deliver

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"reel-relay/internal/domain/entity"
	"reel-relay/internal/domain/idempotency"
	"reel-relay/internal/infra/eventbus"
	"reel-relay/internal/infra/notifier"
	"reel-relay/internal/observability/metrics"
	"reel-relay/internal/observability/tracing"
	"reel-relay/internal/repository"
	"reel-relay/internal/runtimeconfig"
)

// SubscriberName identifies this subscriber on the bus and in metrics.
const SubscriberName = "telegram-delivery"

// ConfigSource hands out the current runtime config snapshot.
type ConfigSource interface {
	Current() *runtimeconfig.Snapshot
}

// Service is the EventReelReceived subscriber. GroupInviteLink, when set,
// adds a join button to every message.
type Service struct {
	Posts           repository.OutboundPostRepository
	Sender          notifier.Sender
	Config          ConfigSource
	GroupInviteLink string
}

// Attach subscribes the service to EventReelReceived.
func (s *Service) Attach(bus *eventbus.Bus) {
	bus.Subscribe(entity.EventReelReceived, SubscriberName, s.Handle)
}

// Handle is the eventbus.Handler for EventReelReceived.
func (s *Service) Handle(ctx context.Context, evt entity.DomainEvent) error {
	payload, ok := evt.Payload.(entity.ReelReceived)
	if !ok {
		return fmt.Errorf("deliver: unexpected payload %T for %s", evt.Payload, evt.Name)
	}
	return s.Deliver(ctx, payload)
}

// Deliver sends one reel to the target chat.
//
// No target configured: nothing is recorded. An existing SENT post for the
// same (media, chat) suppresses the send, and a DEAD post stays untouched. Otherwise exactly one send is
// attempted; failure marks the post FAILED and is returned.
func (s *Service) Deliver(ctx context.Context, reel entity.ReelReceived) error {
	target := s.Config.Current().TargetChatID
	if target == "" {
		slog.Debug("no target chat configured, skipping delivery", slog.String("media_id", reel.MediaID))
		metrics.RecordDelivery("event", "skipped")
		return nil
	}

	ctx, span := tracing.Start(ctx, "deliver.Deliver",
		attribute.String("media.id", reel.MediaID),
		attribute.String("chat.id", target))
	defer span.End()

	var rowID *string
	if reel.MediaRowID != "" {
		rowID = &reel.MediaRowID
	}
	post, err := s.Posts.CreatePending(ctx, &entity.OutboundPost{
		IdempotencyKey: idempotency.ForOutboundPost(reel.MediaID, target),
		MediaRowID:     rowID,
		TargetChatID:   target,
	})
	if err != nil {
		tracing.Fail(span, err)
		return fmt.Errorf("create outbound post: %w", err)
	}
	if post.Status == entity.OutboundPostSent {
		metrics.RecordDelivery("event", "suppressed")
		span.SetAttributes(attribute.Bool("suppressed", true))
		return nil
	}
	if post.Status == entity.OutboundPostDead {
		// オペレーターが止めた投稿は再送しない
		slog.Info("outbound post is dead, skipping delivery",
			slog.String("post_id", post.ID),
			slog.String("media_id", reel.MediaID))
		metrics.RecordDelivery("event", "dead")
		span.SetAttributes(attribute.Bool("dead", true))
		return nil
	}

	msg := notifier.ReelMessage(target, reel.Caption, reel.Permalink, s.GroupInviteLink)
	messageID, sendErr := s.Sender.SendMessage(ctx, msg)
	if sendErr != nil {
		metrics.RecordDelivery("event", "failed")
		tracing.Fail(span, sendErr)
		// 送信失敗は記録してから呼び出し元へ返す
		if err := s.Posts.MarkFailed(context.WithoutCancel(ctx), post.ID, "telegram_publish_failed: "+sendErr.Error()); err != nil {
			slog.Error("mark outbound post failed",
				slog.String("post_id", post.ID),
				slog.Any("error", err))
		}
		return fmt.Errorf("send reel %s to %s: %w", reel.MediaID, target, sendErr)
	}

	if err := s.Posts.MarkSent(ctx, post.ID, strconv.FormatInt(messageID, 10)); err != nil {
		tracing.Fail(span, err)
		return fmt.Errorf("mark outbound post sent: %w", err)
	}
	metrics.RecordDelivery("event", "sent")
	return nil
}
