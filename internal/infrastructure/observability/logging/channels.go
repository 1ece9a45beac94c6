// Package logging provides structured logging channels for the telemetry
// pipeline and the reference collector.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Channel represents a logical logging channel for different system components
type Channel string

const (
	// System channels
	ChannelSystem   Channel = "system"   // General system operations
	ChannelStartup  Channel = "startup"  // Application startup and initialization
	ChannelShutdown Channel = "shutdown" // Application shutdown and cleanup

	// Pipeline channels
	ChannelTelemetry       Channel = "telemetry"       // Recorder, queue and flush scheduling
	ChannelDelivery        Channel = "delivery"        // Batch transmission to the collector
	ChannelInstrumentation Channel = "instrumentation" // Passive page listeners
	ChannelSession         Channel = "session"         // Session identity and binding

	// Collector channels
	ChannelCollector Channel = "collector" // Ingest endpoint
	ChannelStream    Channel = "stream"    // Live event feed subscribers
	ChannelDatabase  Channel = "database"  // Database operations and queries
	ChannelSlowQuery Channel = "slow-query"

	ChannelDebug Channel = "debug"
)

var allChannels = []Channel{
	ChannelSystem, ChannelStartup, ChannelShutdown,
	ChannelTelemetry, ChannelDelivery, ChannelInstrumentation, ChannelSession,
	ChannelCollector, ChannelStream, ChannelDatabase, ChannelSlowQuery,
	ChannelDebug,
}

// PipelineChannels are the channels lowered to debug by the pipeline's debug toggle.
var PipelineChannels = []Channel{ChannelTelemetry, ChannelDelivery, ChannelInstrumentation, ChannelSession}

// ChanneledLogger provides structured logging with multiple channels
type ChanneledLogger struct {
	channels map[Channel]*slog.Logger
	config   *LoggerConfig
	files    []*os.File
	mu       sync.RWMutex
}

// LoggerConfig contains configuration options for the channeled logger
type LoggerConfig struct {
	// Output configuration
	OutputToFile    bool      `json:"outputToFile"`    // Whether to write logs to files
	OutputToConsole bool      `json:"outputToConsole"` // Whether to write logs to console
	LogDirectory    string    `json:"logDirectory"`    // Directory for log files
	Output          io.Writer `json:"-"`               // Extra sink, used by tests

	// Formatting configuration
	JSONFormat    bool `json:"jsonFormat"`
	IncludeSource bool `json:"includeSource"`

	// Level configuration per channel
	DefaultLevel  slog.Level             `json:"defaultLevel"`
	ChannelLevels map[Channel]slog.Level `json:"channelLevels"`
}

// DefaultLoggerConfig returns a sensible default configuration
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		OutputToFile:    false,
		OutputToConsole: true,
		LogDirectory:    "logs",
		JSONFormat:      true,
		IncludeSource:   false,
		DefaultLevel:    slog.LevelInfo,
		ChannelLevels:   make(map[Channel]slog.Level),
	}
}

// NewChanneledLogger creates a new channeled logger with the given configuration
func NewChanneledLogger(config *LoggerConfig) (*ChanneledLogger, error) {
	if config == nil {
		config = DefaultLoggerConfig()
	}
	if config.ChannelLevels == nil {
		config.ChannelLevels = make(map[Channel]slog.Level)
	}

	logger := &ChanneledLogger{
		channels: make(map[Channel]*slog.Logger),
		config:   config,
	}

	if config.OutputToFile {
		if err := os.MkdirAll(config.LogDirectory, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	for _, channel := range allChannels {
		channelLogger, err := logger.createChannelLogger(channel)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger for channel %s: %w", channel, err)
		}
		logger.channels[channel] = channelLogger
	}

	return logger, nil
}

// NewNopLogger returns a logger that discards everything. Used where a host
// supplies no logger.
func NewNopLogger() *ChanneledLogger {
	logger, _ := NewChanneledLogger(&LoggerConfig{Output: io.Discard})
	return logger
}

// createChannelLogger creates a slog.Logger for a specific channel.
// Callers hold cl.mu or have exclusive access during construction.
func (cl *ChanneledLogger) createChannelLogger(channel Channel) (*slog.Logger, error) {
	level := cl.config.DefaultLevel
	if channelLevel, exists := cl.config.ChannelLevels[channel]; exists {
		level = channelLevel
	}

	var writers []io.Writer

	if cl.config.OutputToConsole {
		writers = append(writers, os.Stdout)
	}

	if cl.config.OutputToFile {
		filename := fmt.Sprintf("%s.log", string(channel))
		path := filepath.Join(cl.config.LogDirectory, filename)

		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
		}
		cl.files = append(cl.files, file)
		writers = append(writers, file)
	}

	if cl.config.Output != nil {
		writers = append(writers, cl.config.Output)
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = io.Discard
	case 1:
		writer = writers[0]
	default:
		writer = io.MultiWriter(writers...)
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cl.config.IncludeSource,
	}

	var handler slog.Handler
	if cl.config.JSONFormat {
		handler = slog.NewJSONHandler(writer, handlerOpts)
	} else {
		handler = slog.NewTextHandler(writer, handlerOpts)
	}

	return slog.New(handler).With(slog.String("channel", string(channel))), nil
}

func (cl *ChanneledLogger) System() *slog.Logger          { return cl.GetChannel(ChannelSystem) }
func (cl *ChanneledLogger) Startup() *slog.Logger         { return cl.GetChannel(ChannelStartup) }
func (cl *ChanneledLogger) Shutdown() *slog.Logger        { return cl.GetChannel(ChannelShutdown) }
func (cl *ChanneledLogger) Telemetry() *slog.Logger       { return cl.GetChannel(ChannelTelemetry) }
func (cl *ChanneledLogger) Delivery() *slog.Logger        { return cl.GetChannel(ChannelDelivery) }
func (cl *ChanneledLogger) Instrumentation() *slog.Logger { return cl.GetChannel(ChannelInstrumentation) }
func (cl *ChanneledLogger) Session() *slog.Logger         { return cl.GetChannel(ChannelSession) }
func (cl *ChanneledLogger) Collector() *slog.Logger       { return cl.GetChannel(ChannelCollector) }
func (cl *ChanneledLogger) Stream() *slog.Logger          { return cl.GetChannel(ChannelStream) }
func (cl *ChanneledLogger) Database() *slog.Logger        { return cl.GetChannel(ChannelDatabase) }
func (cl *ChanneledLogger) SlowQuery() *slog.Logger       { return cl.GetChannel(ChannelSlowQuery) }
func (cl *ChanneledLogger) Debug() *slog.Logger           { return cl.GetChannel(ChannelDebug) }

// GetChannel returns a logger for a specific channel
func (cl *ChanneledLogger) GetChannel(channel Channel) *slog.Logger {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	if logger, exists := cl.channels[channel]; exists {
		return logger
	}
	return cl.channels[ChannelSystem]
}

// WithSession returns a logger carrying a masked session id
func (cl *ChanneledLogger) WithSession(channel Channel, sessionID string) *slog.Logger {
	return cl.GetChannel(channel).With(slog.String("sessionId", cl.sanitizeSessionID(sessionID)))
}

// LogSlowQuery logs a slow database query
func (cl *ChanneledLogger) LogSlowQuery(query string, duration time.Duration) {
	cl.SlowQuery().Warn("Slow query detected",
		slog.String("query", cl.sanitizeQuery(query)),
		slog.Duration("duration", duration),
	)
}

// LogStartupPhase logs application startup phases
func (cl *ChanneledLogger) LogStartupPhase(phase string, duration time.Duration, success bool, metadata map[string]any) {
	logger := cl.Startup().With(
		slog.String("phase", phase),
		slog.Duration("duration", duration),
		slog.Bool("success", success),
	)

	for key, value := range metadata {
		logger = logger.With(slog.Any(key, value))
	}

	if success {
		logger.Info("Startup phase completed")
	} else {
		logger.Error("Startup phase failed")
	}
}

// sanitizeQuery flattens and truncates SQL for logging
func (cl *ChanneledLogger) sanitizeQuery(query string) string {
	query = strings.Join(strings.Fields(query), " ")
	if len(query) > 500 {
		query = query[:500] + "..."
	}
	return query
}

// sanitizeSessionID partially masks session IDs for privacy
func (cl *ChanneledLogger) sanitizeSessionID(sessionID string) string {
	if len(sessionID) <= 8 {
		return "********"
	}
	return sessionID[:4] + "****" + sessionID[len(sessionID)-4:]
}

// Close closes all file handles
func (cl *ChanneledLogger) Close() error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	var firstErr error
	for _, file := range cl.files {
		if err := file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	cl.files = nil
	return firstErr
}

// SetChannelLevel dynamically sets the log level for a specific channel
func (cl *ChanneledLogger) SetChannelLevel(channel Channel, level slog.Level) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.channels[channel]; !exists {
		return fmt.Errorf("channel %s does not exist", channel)
	}

	cl.config.ChannelLevels[channel] = level

	newLogger, err := cl.createChannelLogger(channel)
	if err != nil {
		return fmt.Errorf("failed to recreate logger for channel %s: %w", channel, err)
	}
	cl.channels[channel] = newLogger
	return nil
}

// EnableDebug lowers every given channel to debug level.
func (cl *ChanneledLogger) EnableDebug(channels ...Channel) {
	for _, channel := range channels {
		if err := cl.SetChannelLevel(channel, slog.LevelDebug); err != nil {
			cl.System().Error("Failed to enable debug logging", "channel", channel, "error", err)
		}
	}
}

// ApplyLevelOverrides parses a comma-separated list of channel=level pairs,
// e.g. "delivery=debug,database=warn", and applies each with SetChannelLevel.
// Valid pairs are applied even when others fail.
func (cl *ChanneledLogger) ApplyLevelOverrides(overrides string) error {
	var errs []error
	for _, pair := range strings.Split(overrides, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, levelText, ok := strings.Cut(pair, "=")
		if !ok {
			errs = append(errs, fmt.Errorf("malformed level override %q", pair))
			continue
		}
		var level slog.Level
		if err := level.UnmarshalText([]byte(strings.TrimSpace(levelText))); err != nil {
			errs = append(errs, fmt.Errorf("invalid level for channel %s: %w", name, err))
			continue
		}
		if err := cl.SetChannelLevel(Channel(strings.TrimSpace(name)), level); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GetChannelLevels returns the current log levels for all channels.
func (cl *ChanneledLogger) GetChannelLevels() map[string]string {
	cl.mu.RLock()
	defer cl.mu.RUnlock()

	levels := make(map[string]string)
	for channel := range cl.channels {
		if level, ok := cl.config.ChannelLevels[channel]; ok {
			levels[string(channel)] = level.String()
		} else {
			levels[string(channel)] = cl.config.DefaultLevel.String()
		}
	}
	return levels
}
