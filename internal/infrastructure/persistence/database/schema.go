package database

import "fmt"

var tables = []string{
	`CREATE TABLE IF NOT EXISTS telemetry_events (
		id           TEXT PRIMARY KEY,
		session_id   TEXT NOT NULL,
		user_id      TEXT,
		event_type   TEXT NOT NULL,
		path         TEXT,
		occurred_at  TEXT NOT NULL,
		received_at  TEXT NOT NULL,
		payload_json TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS telemetry_batches (
		id             TEXT PRIMARY KEY,
		event_count    INTEGER NOT NULL,
		dropped_events INTEGER NOT NULL DEFAULT 0,
		received_at    TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS session_storage (
		scope      TEXT NOT NULL,
		key        TEXT NOT NULL,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (scope, key)
	)`,
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_telemetry_events_session ON telemetry_events(session_id, occurred_at)`,
	`CREATE INDEX IF NOT EXISTS idx_telemetry_events_type ON telemetry_events(event_type)`,
}

// CreateSchema builds every table and index the collector and the session
// scope store use. It is idempotent.
func (db *DB) CreateSchema() error {
	for _, tableSQL := range tables {
		if _, err := db.Exec(tableSQL); err != nil {
			return fmt.Errorf("failed to create table for query [%s]: %w", tableSQL, err)
		}
	}
	for _, indexSQL := range indexes {
		if _, err := db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index for query [%s]: %w", indexSQL, err)
		}
	}
	return nil
}
