// Package database provides the core functionality for creating and managing
// database connections for the collector and the session scope store.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractstack-telemetry/pkg/config"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

// Driver names registered by the blank imports above.
const (
	DriverSQLite = "sqlite3"
	DriverLibSQL = "libsql"
)

// DB represents a wrapper around the standard SQL database connection.
type DB struct {
	*sql.DB
	Driver string
}

// Options selects and tunes a connection. A Turso URL and token take
// precedence over the local SQLite path.
type Options struct {
	SQLitePath     string
	TursoDatabase  string
	TursoAuthToken string
}

// OptionsFromConfig reads connection options from pkg/config.
func OptionsFromConfig() Options {
	return Options{
		SQLitePath:     config.SQLitePath,
		TursoDatabase:  config.TursoDatabase,
		TursoAuthToken: config.TursoAuthToken,
	}
}

// UseTurso reports whether the options point at a remote libsql database.
func (o Options) UseTurso() bool {
	return o.TursoDatabase != "" && o.TursoAuthToken != ""
}

// Open connects using opts, creating the SQLite directory when needed, and
// applies the pool settings from pkg/config.
func Open(opts Options, logger *logging.ChanneledLogger) (*DB, error) {
	if opts.UseTurso() {
		connStr := opts.TursoDatabase + "?authToken=" + opts.TursoAuthToken
		return NewConnectionWithLogger(DriverLibSQL, connStr, logger)
	}

	if opts.SQLitePath == "" {
		return nil, fmt.Errorf("no database configured: set SQLITE_PATH or Turso credentials")
	}
	if opts.SQLitePath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(opts.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := NewConnectionWithLogger(DriverSQLite, opts.SQLitePath, logger)
	if err != nil {
		return nil, err
	}
	if opts.SQLitePath == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// NewConnectionWithLogger establishes a new database connection for the specified driver with logging.
func NewConnectionWithLogger(driverName, dataSourceName string, logger *logging.ChanneledLogger) (*DB, error) {
	start := time.Now()
	logger.Database().Debug("Creating new database connection", "driverName", driverName)

	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		logger.Database().Error("Failed to open database connection", "error", err.Error(), "driverName", driverName)
		return nil, fmt.Errorf("failed to open %s connection: %w", driverName, err)
	}

	if err = db.Ping(); err != nil {
		db.Close()
		logger.Database().Error("Database ping failed", "error", err.Error(), "driverName", driverName)
		return nil, fmt.Errorf("%s ping failed: %w", driverName, err)
	}

	db.SetMaxOpenConns(config.DBMaxOpenConns)
	db.SetMaxIdleConns(config.DBMaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(config.DBConnMaxLifetimeMinutes) * time.Minute)
	db.SetConnMaxIdleTime(time.Duration(config.DBConnMaxIdleMinutes) * time.Minute)

	duration := time.Since(start)
	logger.Database().Info("Database connection established", "driverName", driverName, "duration", duration)
	CheckAndLogSlowQuery(logger, "DATABASE_CONNECTION", duration)

	return &DB{DB: db, Driver: driverName}, nil
}

// ConnectionInfo describes the backing store for logs and health output.
func (db *DB) ConnectionInfo() string {
	if db.Driver == DriverLibSQL {
		return "Turso (libsql)"
	}
	return "SQLite"
}
