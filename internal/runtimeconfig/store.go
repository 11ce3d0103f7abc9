// Package runtimeconfig holds operator-changeable settings behind an atomic
// snapshot. Readers call Current and always see a complete Snapshot; Reload
// builds a new one from bot_config and swaps it in.
package runtimeconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"reel-relay/internal/repository"
)

// KeyTargetChatID is the bot_config key holding {"chatId": "..."}.
const KeyTargetChatID = "target_chat_id"

// Snapshot is an immutable view of the runtime settings.
type Snapshot struct {
	// TargetChatID is the delivery target; empty means none configured.
	TargetChatID string
	// FromStore is true when TargetChatID came from bot_config rather than the static default.
	FromStore bool
	LoadedAt  time.Time
}

// TargetChatValue is the JSON stored under KeyTargetChatID.
type TargetChatValue struct {
	ChatID string `json:"chatId"`
}

// Store owns the current Snapshot.
type Store struct {
	repo          repository.BotConfigRepository
	defaultTarget string
	current       atomic.Pointer[Snapshot]
	now           func() time.Time
}

// NewStore starts with a snapshot built from the static default only.
// Call Reload to pick up stored overrides.
func NewStore(repo repository.BotConfigRepository, defaultTarget string) *Store {
	s := &Store{repo: repo, defaultTarget: strings.TrimSpace(defaultTarget), now: time.Now}
	s.current.Store(&Snapshot{TargetChatID: s.defaultTarget, LoadedAt: s.now()})
	return s
}

// Current returns the active snapshot. It never returns nil.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Reload reads bot_config and atomically replaces the snapshot. On error
// the previous snapshot stays active.
func (s *Store) Reload(ctx context.Context) (*Snapshot, error) {
	raw, err := s.repo.GetValue(ctx, KeyTargetChatID)
	if err != nil {
		return s.Current(), fmt.Errorf("reload runtime config: %w", err)
	}

	next := &Snapshot{TargetChatID: s.defaultTarget, LoadedAt: s.now()}
	if len(raw) > 0 {
		var v TargetChatValue
		if err := json.Unmarshal(raw, &v); err != nil {
			slog.Warn("ignoring malformed target_chat_id config", slog.Any("error", err))
		} else if chat := strings.TrimSpace(v.ChatID); chat != "" {
			next.TargetChatID = chat
			next.FromStore = true
		}
	}

	prev := s.current.Swap(next)
	if prev.TargetChatID != next.TargetChatID {
		slog.Info("runtime config reloaded",
			slog.String("target_chat_id", next.TargetChatID),
			slog.Bool("from_store", next.FromStore))
	}
	return next, nil
}
