// Command tractstack-telemetry-replay plays a browsing scenario through the
// telemetry pipeline and delivers the events to a collector.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AtRiskMedia/tractstack-telemetry/internal/application/replay"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/application/startup"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/application/telemetry"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/delivery"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/persistence/sessionstore"
	"github.com/AtRiskMedia/tractstack-telemetry/pkg/config"
	flag "github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		scenarioPath string
		endpoint     string
		scope        string
		statePath    string
		batchSize    int
		interval     time.Duration
		noBeacon     bool
		debug        bool
	)

	flag.StringVar(&scenarioPath, "scenario", "", "path to the scenario YAML file (required)")
	flag.StringVar(&endpoint, "endpoint", config.CollectorEndpoint, "collector ingestion URL")
	flag.StringVar(&scope, "scope", "default", "session storage scope; reuse it to keep the session id across runs")
	flag.StringVar(&statePath, "state", "db/replay-state.db", "SQLite file holding session storage scopes")
	flag.IntVar(&batchSize, "batch-size", config.BatchSize, "queue length that triggers a flush")
	flag.DurationVar(&interval, "flush-interval", config.FlushInterval, "periodic flush interval")
	flag.BoolVar(&noBeacon, "no-beacon", false, "disable the unload-safe path and always use standard requests")
	flag.BoolVar(&debug, "debug", config.TelemetryDebug, "log pipeline activity at debug level")
	flag.Parse()

	if scenarioPath == "" {
		flag.Usage()
		return fmt.Errorf("--scenario is required")
	}

	logger, err := startup.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Close()

	scenario, err := replay.LoadScenario(scenarioPath)
	if err != nil {
		return err
	}

	db, err := database.Open(database.Options{SQLitePath: statePath}, logger)
	if err != nil {
		return fmt.Errorf("failed to open session state: %w", err)
	}
	defer db.Close()
	if err := db.CreateSchema(); err != nil {
		return fmt.Errorf("failed to prepare session state: %w", err)
	}

	cfg := telemetry.DefaultConfig()
	cfg.BatchSize = batchSize
	cfg.FlushInterval = interval
	cfg.Debug = debug

	var beacon *delivery.HTTPBeacon
	opts := telemetry.Options{
		Config:      cfg,
		Store:       sessionstore.NewSQLiteStore(db, scope, logger),
		Sender:      delivery.NewHTTPSender(endpoint, nil, config.RequestTimeout, logger),
		Environment: scenario.Environment(),
		LandingPath: scenario.LandingPath,
		Logger:      logger,
	}
	if !noBeacon {
		beacon = delivery.NewHTTPBeacon(endpoint, nil, config.BeaconMaxBytes, config.BeaconTimeout, logger)
		opts.Beacon = beacon
	}

	tracker, err := telemetry.New(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	tracker.Start(ctx)

	runner, err := replay.NewRunner(scenario, tracker, config.SessionTokenSecret)
	if err != nil {
		return err
	}
	runErr := runner.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.RequestTimeout+5*time.Second)
	defer cancel()
	if err := tracker.Shutdown(shutdownCtx); err != nil {
		logger.Shutdown().Warn("Telemetry shutdown incomplete", "error", err.Error())
	}
	if beacon != nil {
		beacon.Wait()
	}

	stats := tracker.Stats()
	logger.System().Info("Scenario replayed",
		slog.String("scenario", scenario.Name),
		slog.String("scope", scope),
		slog.String("sessionId", stats.SessionID),
		slog.Bool("disabled", stats.Disabled),
		slog.Uint64("deliveredBatches", stats.DeliveredBatches),
		slog.Uint64("beaconedBatches", stats.BeaconedBatches),
		slog.Uint64("failedBatches", stats.FailedBatches),
		slog.Uint64("rejectedBatches", stats.RejectedBatches),
		slog.Uint64("droppedEvents", stats.DroppedEvents),
		slog.Int("undelivered", stats.Queued))

	return runErr
}
