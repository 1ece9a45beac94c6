// Package config provides centralized default values for the TractStack
// telemetry pipeline and its reference collector.
package config

import (
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		// godotenv.Load never overrides variables already present in the environment.
		if err := godotenv.Load(); err == nil {
			log.Println("Loaded configuration overrides from .env file")
		}
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseBool(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%t (default: %t)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

var (
	// Pipeline batching
	BatchSize      int
	FlushInterval  time.Duration
	MaxBatchEvents int
	MaxQueueSize   int

	// Pipeline retry
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	// Pipeline delivery
	CollectorEndpoint string
	RequestTimeout    time.Duration
	BeaconMaxBytes    int
	BeaconTimeout     time.Duration

	// Instrumentation sources
	TrackClicks bool
	TrackScroll bool
	TrackTime   bool
	TrackForms  bool

	// Privacy and diagnostics
	RespectDoNotTrack bool
	TelemetryDebug    bool
	SessionStorageKey string

	// Collector server
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	CORSAllowOrigins   string
	MaxBatchBodyBytes  int64

	// Collector live stream
	StreamHeartbeat  time.Duration
	StreamBufferSize int

	// Collector storage
	SQLitePath     string
	TursoDatabase  string
	TursoAuthToken string

	// Database Pool
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeMinutes int
	DBConnMaxIdleMinutes     int
	SlowQueryThreshold       time.Duration

	// Logging
	LogDirectory     string
	LogToFile        bool
	LogJSON          bool
	LogChannelLevels string // channel=level overrides, e.g. "delivery=debug"

	// Identity binding
	SessionTokenSecret string
)

func init() {
	loadEnvFile()

	// Pipeline batching
	BatchSize = getEnvInt("TELEMETRY_BATCH_SIZE", 5)
	FlushInterval = getEnvDuration("TELEMETRY_FLUSH_INTERVAL", 10*time.Second)
	MaxBatchEvents = getEnvInt("TELEMETRY_MAX_BATCH_EVENTS", 50)
	MaxQueueSize = getEnvInt("TELEMETRY_MAX_QUEUE_SIZE", 500)

	// Pipeline retry
	BackoffInitial = getEnvDuration("TELEMETRY_BACKOFF_INITIAL", 2*time.Second)
	BackoffMax = getEnvDuration("TELEMETRY_BACKOFF_MAX", 2*time.Minute)

	// Pipeline delivery
	CollectorEndpoint = getEnvString("TELEMETRY_ENDPOINT", "http://127.0.0.1:8080/api/v1/telemetry/events")
	RequestTimeout = getEnvDuration("TELEMETRY_REQUEST_TIMEOUT", 10*time.Second)
	BeaconMaxBytes = getEnvInt("TELEMETRY_BEACON_MAX_BYTES", 64*1024)
	BeaconTimeout = getEnvDuration("TELEMETRY_BEACON_TIMEOUT", 5*time.Second)

	// Instrumentation sources
	TrackClicks = getEnvBool("TELEMETRY_TRACK_CLICKS", true)
	TrackScroll = getEnvBool("TELEMETRY_TRACK_SCROLL", true)
	TrackTime = getEnvBool("TELEMETRY_TRACK_TIME", true)
	TrackForms = getEnvBool("TELEMETRY_TRACK_FORMS", true)

	// Privacy and diagnostics
	RespectDoNotTrack = getEnvBool("TELEMETRY_RESPECT_DNT", true)
	TelemetryDebug = getEnvBool("TELEMETRY_DEBUG", false)
	SessionStorageKey = getEnvString("TELEMETRY_SESSION_KEY", "tractstack_session_id")

	// Collector server
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)
	CORSAllowOrigins = getEnvString("CORS_ALLOW_ORIGINS", "*")
	MaxBatchBodyBytes = int64(getEnvInt("COLLECTOR_MAX_BODY_BYTES", 1024*1024))

	// Collector live stream
	StreamHeartbeat = getEnvDuration("COLLECTOR_STREAM_HEARTBEAT", 30*time.Second)
	StreamBufferSize = getEnvInt("COLLECTOR_STREAM_BUFFER", 100)

	// Collector storage
	SQLitePath = getEnvString("SQLITE_PATH", "db/telemetry.db")
	TursoDatabase = getEnvString("TURSO_DATABASE_URL", "")
	TursoAuthToken = getEnvString("TURSO_AUTH_TOKEN", "")

	// Database Pool
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 3)
	DBConnMaxLifetimeMinutes = getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	DBConnMaxIdleMinutes = getEnvInt("DB_CONN_MAX_IDLE_MINUTES", 3)
	SlowQueryThreshold = getEnvDuration("SLOW_QUERY_THRESHOLD", 250*time.Millisecond)

	// Logging
	LogDirectory = getEnvString("LOG_DIRECTORY", "logs")
	LogToFile = getEnvBool("LOG_TO_FILE", false)
	LogJSON = getEnvBool("LOG_JSON", true)
	LogChannelLevels = getEnvString("LOG_CHANNEL_LEVELS", "")

	// Identity binding
	SessionTokenSecret = getEnvString("SESSION_TOKEN_SECRET", "")
}
