package db

import (
	"context"
	"database/sql"
	"fmt"
)

// schema は起動時に順番どおり適用される。すべて冪等であること。
var schema = []struct {
	name string
	stmt string
}{
	{"media_requests", `
CREATE TABLE IF NOT EXISTS media_requests (
    id                TEXT PRIMARY KEY,
    idempotency_key   TEXT NOT NULL UNIQUE,
    status            TEXT NOT NULL DEFAULT 'NEW'
        CONSTRAINT media_requests_status_check
        CHECK (status IN ('NEW', 'FETCHING', 'READY', 'POSTED', 'FAILED')),
    source_type       TEXT NOT NULL
        CONSTRAINT media_requests_source_type_check
        CHECK (source_type IN ('LINK', 'WEBHOOK')),
    normalized_url    TEXT NOT NULL,
    original_url      TEXT NOT NULL,
    resolved_media_id TEXT,
    error_reason      TEXT,
    chat_id           TEXT,
    message_id        BIGINT,
    submitter_id      TEXT,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
)`},
	{"instagram_media", `
CREATE TABLE IF NOT EXISTS instagram_media (
    id              TEXT PRIMARY KEY,
    media_id        TEXT NOT NULL UNIQUE,
    media_type      TEXT NOT NULL,
    product_type    TEXT NOT NULL DEFAULT '',
    permalink       TEXT NOT NULL,
    media_url       TEXT,
    caption         TEXT,
    media_timestamp TIMESTAMPTZ,
    raw             JSONB,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
)`},
	{"outbound_posts", `
CREATE TABLE IF NOT EXISTS outbound_posts (
    id                   TEXT PRIMARY KEY,
    idempotency_key      TEXT NOT NULL UNIQUE,
    media_request_id     TEXT REFERENCES media_requests(id),
    media_row_id         TEXT REFERENCES instagram_media(id),
    target_chat_id       TEXT NOT NULL,
    status               TEXT NOT NULL DEFAULT 'PENDING'
        CONSTRAINT outbound_posts_status_check
        CHECK (status IN ('PENDING', 'SENT', 'FAILED', 'DEAD')),
    retry_count          INTEGER NOT NULL DEFAULT 0,
    delivered_message_id TEXT,
    error_reason         TEXT,
    created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
)`},
	{"processing_failures", `
CREATE TABLE IF NOT EXISTS processing_failures (
    id           TEXT PRIMARY KEY,
    job_name     TEXT NOT NULL,
    payload      JSONB NOT NULL DEFAULT '{}',
    error_reason TEXT NOT NULL,
    retry_count  INTEGER NOT NULL DEFAULT 0,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`},
	{"bot_config", `
CREATE TABLE IF NOT EXISTS bot_config (
    key        TEXT PRIMARY KEY,
    value      JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`},
	{"banned_users", `
CREATE TABLE IF NOT EXISTS banned_users (
    user_id    TEXT PRIMARY KEY,
    reason     TEXT,
    banned_by  TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`},
	{"relay_jobs", `
CREATE TABLE IF NOT EXISTS relay_jobs (
    id            UUID PRIMARY KEY,
    name          TEXT NOT NULL,
    payload       JSONB NOT NULL,
    singleton_key TEXT,
    state         TEXT NOT NULL DEFAULT 'created',
    attempts      INTEGER NOT NULL DEFAULT 0,
    run_after     TIMESTAMPTZ NOT NULL DEFAULT now(),
    locked_at     TIMESTAMPTZ,
    last_error    TEXT,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`},
}

var indexes = []string{
	// 再照合ジョブ: status + updated_at で滞留リクエストを探す
	`CREATE INDEX IF NOT EXISTS idx_media_requests_status_updated ON media_requests(status, updated_at)`,
	// 管理画面の 24h 集計用
	`CREATE INDEX IF NOT EXISTS idx_media_requests_created_at ON media_requests(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_outbound_posts_status ON outbound_posts(status)`,
	`CREATE INDEX IF NOT EXISTS idx_processing_failures_created_at ON processing_failures(created_at DESC)`,
	// 同じ singleton_key を持つ未完了ジョブは 1 件まで
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_relay_jobs_singleton
        ON relay_jobs(name, singleton_key)
        WHERE singleton_key IS NOT NULL AND state IN ('created', 'active')`,
	`CREATE INDEX IF NOT EXISTS idx_relay_jobs_fetch ON relay_jobs(name, state, run_after)`,
}

// MigrateUp creates every table and index the relay needs.
func MigrateUp(ctx context.Context, db *sql.DB) error {
	for _, t := range schema {
		if _, err := db.ExecContext(ctx, t.stmt); err != nil {
			return fmt.Errorf("create table %s: %w", t.name, err)
		}
	}
	for _, idx := range indexes {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
