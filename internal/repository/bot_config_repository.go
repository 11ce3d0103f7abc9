package repository

import (
	"context"
	"encoding/json"
)

// BotConfigRepository stores operator-mutable settings as JSON values.
type BotConfigRepository interface {
	// GetValue returns nil when the key is not set.
	GetValue(ctx context.Context, key string) (json.RawMessage, error)
	SetValue(ctx context.Context, key string, value json.RawMessage) error
}
