// Package telemetry implements the client-side collection pipeline: session
// identity, event recording, the bounded queue and batched delivery to the
// collector.
package telemetry

import (
	"time"

	"github.com/AtRiskMedia/tractstack-telemetry/pkg/config"
)

// Config tunes one Tracker. Zero values are replaced by the package defaults
// in New, except MaxBatchEvents and MaxQueueSize where zero means unbounded.
type Config struct {
	BatchSize      int
	FlushInterval  time.Duration
	MaxBatchEvents int
	MaxQueueSize   int

	BackoffInitial time.Duration
	BackoffMax     time.Duration

	TrackClicks bool
	TrackScroll bool
	TrackTime   bool
	TrackForms  bool

	RespectDoNotTrack bool
	Debug             bool
	SessionStorageKey string
}

// DefaultConfig seeds a Config from pkg/config.
func DefaultConfig() Config {
	return Config{
		BatchSize:         config.BatchSize,
		FlushInterval:     config.FlushInterval,
		MaxBatchEvents:    config.MaxBatchEvents,
		MaxQueueSize:      config.MaxQueueSize,
		BackoffInitial:    config.BackoffInitial,
		BackoffMax:        config.BackoffMax,
		TrackClicks:       config.TrackClicks,
		TrackScroll:       config.TrackScroll,
		TrackTime:         config.TrackTime,
		TrackForms:        config.TrackForms,
		RespectDoNotTrack: config.RespectDoNotTrack,
		Debug:             config.TelemetryDebug,
		SessionStorageKey: config.SessionStorageKey,
	}
}

func (c Config) normalize() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = config.BatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = config.FlushInterval
	}
	if c.MaxBatchEvents < 0 {
		c.MaxBatchEvents = 0
	}
	if c.MaxQueueSize < 0 {
		c.MaxQueueSize = 0
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = config.BackoffInitial
	}
	if c.BackoffMax < c.BackoffInitial {
		c.BackoffMax = c.BackoffInitial
	}
	if c.SessionStorageKey == "" {
		c.SessionStorageKey = config.SessionStorageKey
	}
	return c
}
