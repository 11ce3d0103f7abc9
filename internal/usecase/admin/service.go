// Package admin implements the operator use cases shared by the admin HTTP
// endpoints and relayctl.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"reel-relay/internal/domain/entity"
	"reel-relay/internal/observability/metrics"
	"reel-relay/internal/repository"
	"reel-relay/internal/runtimeconfig"
)

const (
	DefaultFailureLimit = 20
	MaxFailureLimit     = 100
)

// ConfigReloader is satisfied by *runtimeconfig.Store.
type ConfigReloader interface {
	Reload(ctx context.Context) (*runtimeconfig.Snapshot, error)
}

// Stats is the operator dashboard summary.
type Stats struct {
	Requests24h int64 `json:"requests24h"`
	Failed24h   int64 `json:"failed24h"`
	// QueueSize counts PENDING outbound posts.
	QueueSize int64 `json:"queueSize"`
}

// Service backs the operator surface shared by relayctl and the admin API.
// Now is only overridden in tests.
type Service struct {
	Requests  repository.MediaRequestRepository
	Posts     repository.OutboundPostRepository
	Failures  repository.ProcessingFailureRepository
	Banned    repository.BannedUserRepository
	BotConfig repository.BotConfigRepository
	Config    ConfigReloader
	Now       func() time.Time
}

// Stats runs the three counters concurrently.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	since := s.now().Add(-24 * time.Hour)

	var st Stats
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		n, err := s.Requests.CountCreatedSince(egCtx, since)
		if err != nil {
			return fmt.Errorf("count requests: %w", err)
		}
		st.Requests24h = n
		return nil
	})
	eg.Go(func() error {
		n, err := s.Requests.CountFailedSince(egCtx, since)
		if err != nil {
			return fmt.Errorf("count failed requests: %w", err)
		}
		st.Failed24h = n
		return nil
	})
	eg.Go(func() error {
		n, err := s.Posts.CountPending(egCtx)
		if err != nil {
			return fmt.Errorf("count pending posts: %w", err)
		}
		st.QueueSize = n
		return nil
	})
	if err := eg.Wait(); err != nil {
		return Stats{}, err
	}

	metrics.UpdateOutboundPending(st.QueueSize)
	return st, nil
}

// SetTargetChat stores the delivery target and reloads the runtime snapshot
// so the new value is visible immediately in this process.
func (s *Service) SetTargetChat(ctx context.Context, chatID string) (*runtimeconfig.Snapshot, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return nil, &entity.ValidationError{Field: "chatId", Message: "is required"}
	}

	raw, err := json.Marshal(runtimeconfig.TargetChatValue{ChatID: chatID})
	if err != nil {
		return nil, fmt.Errorf("encode target chat: %w", err)
	}
	if err := s.BotConfig.SetValue(ctx, runtimeconfig.KeyTargetChatID, raw); err != nil {
		return nil, fmt.Errorf("store target chat: %w", err)
	}
	slog.Info("target chat updated", slog.String("chat_id", chatID))

	return s.ReloadConfig(ctx)
}

func (s *Service) ReloadConfig(ctx context.Context) (*runtimeconfig.Snapshot, error) {
	if s.Config == nil {
		return nil, errors.New("runtime config store not configured")
	}
	snap, err := s.Config.Reload(ctx)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Ban blocks future submissions from userID. bannedBy and reason are optional.
func (s *Service) Ban(ctx context.Context, userID, bannedBy, reason string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return &entity.ValidationError{Field: "userId", Message: "is required"}
	}
	if err := s.Banned.Ban(ctx, &entity.BannedUser{
		UserID:   userID,
		Reason:   optional(reason),
		BannedBy: optional(bannedBy),
	}); err != nil {
		return fmt.Errorf("ban %s: %w", userID, err)
	}
	return nil
}

func (s *Service) Unban(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return &entity.ValidationError{Field: "userId", Message: "is required"}
	}
	if err := s.Banned.Unban(ctx, userID); err != nil {
		return fmt.Errorf("unban %s: %w", userID, err)
	}
	return nil
}

// RecentFailures returns the newest processing failures first. A limit
// outside 1..MaxFailureLimit is clamped.
func (s *Service) RecentFailures(ctx context.Context, limit int) ([]*entity.ProcessingFailure, error) {
	switch {
	case limit <= 0:
		limit = DefaultFailureLimit
	case limit > MaxFailureLimit:
		limit = MaxFailureLimit
	}
	failures, err := s.Failures.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}
	return failures, nil
}

// MarkDead gives up on an outbound post. Only operators do this.
func (s *Service) MarkDead(ctx context.Context, postID, reason string) error {
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return &entity.ValidationError{Field: "postId", Message: "is required"}
	}
	if reason == "" {
		reason = "marked dead by operator"
	}
	err := s.Posts.MarkDead(ctx, postID, reason)
	if errors.Is(err, entity.ErrConflict) {
		return ErrPostNotFound
	}
	if err != nil {
		return fmt.Errorf("mark dead %s: %w", postID, err)
	}
	return nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
