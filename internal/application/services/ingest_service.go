// Package services provides the reference collector's application services.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AtRiskMedia/tractstack-telemetry/internal/domain/events"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/observability/logging"
	"github.com/oklog/ulid/v2"
)

// ErrInvalidBatch marks batches the collector will never accept. Clients
// must not retry them.
var ErrInvalidBatch = errors.New("invalid batch")

// EventStore persists accepted batches.
type EventStore interface {
	InsertBatch(ctx context.Context, batchID string, batch events.Batch, receivedAt time.Time) (int, error)
}

// Publisher receives events once they are stored.
type Publisher interface {
	Publish(list []events.Event)
}

// IngestService validates and stores telemetry batches.
type IngestService struct {
	store     EventStore
	publisher Publisher
	logger    *logging.ChanneledLogger
}

// NewIngestService creates a new ingest service with its dependencies.
// publisher may be nil.
func NewIngestService(store EventStore, publisher Publisher, logger *logging.ChanneledLogger) *IngestService {
	return &IngestService{store: store, publisher: publisher, logger: logger}
}

// Ingest validates batch and stores it. Validation failures wrap
// ErrInvalidBatch; storage failures do not.
func (s *IngestService) Ingest(ctx context.Context, batch events.Batch) (events.Ack, error) {
	if err := ValidateBatch(batch); err != nil {
		s.logger.Collector().Warn("Rejected malformed batch", "events", len(batch.Events), "error", err.Error())
		return events.Ack{}, err
	}

	batchID := ulid.Make().String()
	if _, err := s.store.InsertBatch(ctx, batchID, batch, time.Now()); err != nil {
		s.logger.Collector().Error("Failed to store batch", "batchId", batchID, "error", err.Error())
		return events.Ack{}, fmt.Errorf("failed to store batch: %w", err)
	}

	if s.publisher != nil {
		s.publisher.Publish(batch.Events)
	}

	if batch.DroppedEvents > 0 {
		s.logger.Collector().Warn("Client reported dropped events", "batchId", batchID, "dropped", batch.DroppedEvents)
	}
	s.logger.Collector().Info("Batch ingested", "batchId", batchID, "events", len(batch.Events))
	return events.Ack{Accepted: len(batch.Events)}, nil
}

// ValidateBatch checks the fields every event must carry.
func ValidateBatch(batch events.Batch) error {
	for i, event := range batch.Events {
		switch {
		case event.ID == "":
			return fmt.Errorf("%w: event %d has no id", ErrInvalidBatch, i)
		case event.SessionID == "":
			return fmt.Errorf("%w: event %d has no session_id", ErrInvalidBatch, i)
		case event.Type == "":
			return fmt.Errorf("%w: event %d has no event_type", ErrInvalidBatch, i)
		case event.Timestamp.IsZero():
			return fmt.Errorf("%w: event %d has no timestamp", ErrInvalidBatch, i)
		}
	}
	return nil
}
