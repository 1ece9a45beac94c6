// Package startup prepares the reference collector
package startup

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AtRiskMedia/tractstack-telemetry/internal/application/container"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/presentation/http/server"
	"github.com/AtRiskMedia/tractstack-telemetry/pkg/config"
	"github.com/gin-gonic/gin"
)

// Initialize runs the collector until SIGINT or SIGTERM
func Initialize() error {
	setupLogging()

	start := time.Now().UTC()

	logger, err := NewLogger()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Close()
	logger.Startup().Debug("Log channel levels", "levels", fmt.Sprint(logger.GetChannelLevels()))

	// Step 1: Open the event store
	phaseStart := time.Now()
	db, err := database.Open(database.OptionsFromConfig(), logger)
	if err != nil {
		logger.LogStartupPhase("database", time.Since(phaseStart), false, map[string]any{"error": err.Error()})
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.CreateSchema(); err != nil {
		logger.LogStartupPhase("schema", time.Since(phaseStart), false, map[string]any{"error": err.Error()})
		return fmt.Errorf("failed to create schema: %w", err)
	}
	logger.LogStartupPhase("database", time.Since(phaseStart), true, map[string]any{"backend": db.ConnectionInfo()})

	// Step 2: Create dependency injection container
	appContainer := container.NewContainer(db, logger, container.CollectorConfigFromEnv())
	logger.Startup().Info("Dependency injection container created")

	// Step 3: Start HTTP server
	port := config.Port
	httpServer := server.New(port, appContainer)

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	logger.Startup().Info("Collector startup complete",
		"totalDuration", time.Since(start),
		"port", port,
		"database", db.ConnectionInfo())

	select {
	case <-gracefulShutdown:
		logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")
	case err := <-serverErr:
		if err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
			return err
		}
	}

	shutdownStart := time.Now()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	logger.Shutdown().Info("Collector shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))

	return nil
}

// NewLogger builds the channeled logger from pkg/config.
func NewLogger() (*logging.ChanneledLogger, error) {
	cfg := logging.DefaultLoggerConfig()
	cfg.OutputToFile = config.LogToFile
	cfg.LogDirectory = config.LogDirectory
	cfg.JSONFormat = config.LogJSON
	if config.TelemetryDebug {
		cfg.DefaultLevel = slog.LevelDebug
	}
	logger, err := logging.NewChanneledLogger(cfg)
	if err != nil {
		return nil, err
	}
	if err := logger.ApplyLevelOverrides(config.LogChannelLevels); err != nil {
		logger.Startup().Warn("Ignoring invalid log level overrides", "error", err.Error())
	}
	return logger, nil
}

// setupLogging configures application logging
func setupLogging() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
