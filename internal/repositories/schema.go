package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the DDL both binaries apply at startup. Every statement is idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS applications (
		id               TEXT PRIMARY KEY,
		workspace_id     TEXT NOT NULL,
		name             TEXT NOT NULL,
		slug             TEXT NOT NULL,
		page_count       INTEGER NOT NULL DEFAULT 0,
		datasource_count INTEGER NOT NULL DEFAULT 0,
		action_count     INTEGER NOT NULL DEFAULT 0,
		definition       JSONB NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (workspace_id, name)
	)`,
	`CREATE INDEX IF NOT EXISTS applications_workspace_idx ON applications (workspace_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS analytics_events (
		id           TEXT PRIMARY KEY,
		event        TEXT NOT NULL,
		subject_type TEXT NOT NULL,
		subject_id   TEXT NOT NULL,
		occurred_at  TIMESTAMPTZ NOT NULL,
		recorded_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS analytics_events_subject_idx ON analytics_events (event, subject_type, subject_id)`,
}

// EnsureSchema creates missing tables and indexes.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range Schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
