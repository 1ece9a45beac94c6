package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/observability/logging"
	"github.com/gin-gonic/gin"
)

// Pinger is the database surface the health check needs.
type Pinger interface {
	PingContext(ctx context.Context) error
	ConnectionInfo() string
}

// HealthHandlers reports collector liveness
type HealthHandlers struct {
	db     Pinger
	logger *logging.ChanneledLogger
}

func NewHealthHandlers(db Pinger, logger *logging.ChanneledLogger) *HealthHandlers {
	return &HealthHandlers{db: db, logger: logger}
}

// GetHealth handles GET /healthz
func (h *HealthHandlers) GetHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Collector().Error("Health check failed", "error", err.Error())
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": h.db.ConnectionInfo()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": h.db.ConnectionInfo()})
}
