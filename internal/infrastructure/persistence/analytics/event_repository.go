// Package analytics provides the SQL persistence for telemetry batches
// received by the reference collector.
//
// Events are stored raw, one row per event, keyed by the event id so that
// a batch retried after a lost acknowledgement does not create duplicates.
package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AtRiskMedia/tractstack-telemetry/internal/domain/events"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/persistence/database"
)

// SQLEventRepository handles telemetry event persistence.
type SQLEventRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLEventRepository creates a new instance of the repository.
func NewSQLEventRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLEventRepository {
	return &SQLEventRepository{
		db:     db,
		logger: logger,
	}
}

// InsertBatch stores every event of batch in one transaction and returns how
// many were new.
func (r *SQLEventRepository) InsertBatch(ctx context.Context, batchID string, batch events.Batch, receivedAt time.Time) (int, error) {
	const batchQuery = `
		INSERT INTO telemetry_batches (id, event_count, dropped_events, received_at)
		VALUES (?, ?, ?, ?)`
	const eventQuery = `
		INSERT OR IGNORE INTO telemetry_events (id, session_id, user_id, event_type, path, occurred_at, received_at, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	start := time.Now()
	r.logger.Database().Debug("Executing telemetry batch insert", "batchId", batchID, "events", len(batch.Events))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	received := receivedAt.UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx, batchQuery, batchID, len(batch.Events), batch.DroppedEvents, received); err != nil {
		r.logger.Database().Error("Telemetry batch insert failed", "error", err.Error(), "batchId", batchID)
		return 0, fmt.Errorf("failed to store batch: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, eventQuery)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare event insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, event := range batch.Events {
		payload, err := json.Marshal(event)
		if err != nil {
			return 0, fmt.Errorf("failed to encode event %s: %w", event.ID, err)
		}
		result, err := stmt.ExecContext(ctx,
			event.ID,
			event.SessionID,
			nullableString(event.UserID),
			string(event.Type),
			event.Path,
			event.Timestamp.UTC().Format(time.RFC3339Nano),
			received,
			string(payload),
		)
		if err != nil {
			r.logger.Database().Error("Telemetry event insert failed",
				"error", err.Error(),
				"batchId", batchID,
				"eventId", event.ID,
				"eventType", event.Type)
			return 0, fmt.Errorf("failed to store event %s: %w", event.ID, err)
		}
		if affected, err := result.RowsAffected(); err == nil {
			inserted += int(affected)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit batch: %w", err)
	}

	duration := time.Since(start)
	r.logger.Database().Info("Telemetry batch insert completed",
		"batchId", batchID,
		"events", len(batch.Events),
		"inserted", inserted,
		"droppedEvents", batch.DroppedEvents,
		"duration", duration)
	database.CheckAndLogSlowQuery(r.logger, eventQuery, duration)
	return inserted, nil
}

// ListBySession returns a session's events in capture order.
func (r *SQLEventRepository) ListBySession(ctx context.Context, sessionID string) ([]events.Event, error) {
	const query = `
		SELECT payload_json FROM telemetry_events
		WHERE session_id = ?
		ORDER BY occurred_at, id`

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query session events: %w", err)
	}
	defer rows.Close()

	var list []events.Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		var event events.Event
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return nil, fmt.Errorf("failed to decode stored event: %w", err)
		}
		list = append(list, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session events: %w", err)
	}

	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start))
	return list, nil
}

// Count returns the number of stored events.
func (r *SQLEventRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM telemetry_events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
