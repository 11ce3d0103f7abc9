package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"reel-relay/internal/repository"
)

type BotConfigRepo struct{ db *sql.DB }

func NewBotConfigRepo(db *sql.DB) repository.BotConfigRepository {
	return &BotConfigRepo{db: db}
}

func (repo *BotConfigRepo) GetValue(ctx context.Context, key string) (json.RawMessage, error) {
	const query = `SELECT value FROM bot_config WHERE key = $1`
	var value []byte
	err := repo.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetValue: %w", err)
	}
	return value, nil
}

func (repo *BotConfigRepo) SetValue(ctx context.Context, key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return fmt.Errorf("SetValue: value for %q is not valid JSON", key)
	}
	const query = `
INSERT INTO bot_config (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	if _, err := repo.db.ExecContext(ctx, query, key, string(value)); err != nil {
		return fmt.Errorf("SetValue: %w", err)
	}
	return nil
}
