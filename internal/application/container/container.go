// Package container provides dependency injection for the collector's
// singleton services
package container

import (
	"time"

	"github.com/AtRiskMedia/tractstack-telemetry/internal/application/services"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/persistence/analytics"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/tractstack-telemetry/pkg/config"
)

// CollectorConfig holds the HTTP-facing collector settings
type CollectorConfig struct {
	CORSAllowOrigins string
	MaxBodyBytes     int64
	StreamHeartbeat  time.Duration
	StreamBufferSize int
}

// CollectorConfigFromEnv reads the collector settings from pkg/config.
func CollectorConfigFromEnv() CollectorConfig {
	return CollectorConfig{
		CORSAllowOrigins: config.CORSAllowOrigins,
		MaxBodyBytes:     config.MaxBatchBodyBytes,
		StreamHeartbeat:  config.StreamHeartbeat,
		StreamBufferSize: config.StreamBufferSize,
	}
}

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	Config CollectorConfig

	// Application Services
	IngestService *services.IngestService

	// Infrastructure Dependencies
	DB              *database.DB
	EventRepository *analytics.SQLEventRepository
	Broadcaster     *messaging.EventBroadcaster
	Logger          *logging.ChanneledLogger
}

// NewContainer creates and wires all singleton services
func NewContainer(db *database.DB, logger *logging.ChanneledLogger, cfg CollectorConfig) *Container {
	eventRepository := analytics.NewSQLEventRepository(db, logger)
	broadcaster := messaging.NewEventBroadcaster(cfg.StreamBufferSize, logger)

	return &Container{
		Config:          cfg,
		IngestService:   services.NewIngestService(eventRepository, broadcaster, logger),
		DB:              db,
		EventRepository: eventRepository,
		Broadcaster:     broadcaster,
		Logger:          logger,
	}
}
