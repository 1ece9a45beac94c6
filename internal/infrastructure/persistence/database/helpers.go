// Package database provides database helper functions
package database

import (
	"time"

	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractstack-telemetry/pkg/config"
)

// CheckAndLogSlowQuery logs query on the slow-query channel when duration
// exceeds the configured threshold.
func CheckAndLogSlowQuery(logger *logging.ChanneledLogger, query string, duration time.Duration) {
	if duration > config.SlowQueryThreshold {
		logger.LogSlowQuery(query, duration)
	}
}
