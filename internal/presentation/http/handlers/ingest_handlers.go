// Package handlers provides HTTP request handlers for the reference collector.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/AtRiskMedia/tractstack-telemetry/internal/application/services"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/domain/events"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/observability/logging"
	"github.com/gin-gonic/gin"
)

// IngestHandlers contains the telemetry ingestion handlers
type IngestHandlers struct {
	ingestService *services.IngestService
	maxBodyBytes  int64
	logger        *logging.ChanneledLogger
}

// NewIngestHandlers creates ingest handlers with injected dependencies
func NewIngestHandlers(ingestService *services.IngestService, maxBodyBytes int64, logger *logging.ChanneledLogger) *IngestHandlers {
	return &IngestHandlers{
		ingestService: ingestService,
		maxBodyBytes:  maxBodyBytes,
		logger:        logger,
	}
}

// PostEvents handles POST /api/v1/telemetry/events. Beacon requests arrive as
// text/plain, so the body is decoded as JSON whatever its content type.
func (h *IngestHandlers) PostEvents(c *gin.Context) {
	start := time.Now()
	h.logger.Collector().Debug("Received telemetry batch", "contentType", c.ContentType(), "remoteAddr", c.ClientIP())

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Collector().Warn("Telemetry batch too large", "limit", tooLarge.Limit)
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "batch too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	var batch events.Batch
	if err := json.Unmarshal(body, &batch); err != nil {
		h.logger.Collector().Warn("Malformed telemetry batch", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed batch"})
		return
	}

	if len(batch.Events) == 0 {
		c.Status(http.StatusNoContent)
		return
	}

	ack, err := h.ingestService.Ingest(c.Request.Context(), batch)
	if errors.Is(err, services.ErrInvalidBatch) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store batch"})
		return
	}

	h.logger.Collector().Debug("Telemetry batch handled", "accepted", ack.Accepted, "duration", time.Since(start))
	c.JSON(http.StatusOK, ack)
}
