package sessionstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/persistence/database"
)

// SQLiteStore persists one storage scope in the session_storage table so a
// scope survives process restarts.
type SQLiteStore struct {
	db     *database.DB
	scope  string
	logger *logging.ChanneledLogger
}

// NewSQLiteStore returns a store bound to scope. The schema must already exist.
func NewSQLiteStore(db *database.DB, scope string, logger *logging.ChanneledLogger) *SQLiteStore {
	return &SQLiteStore{db: db, scope: scope, logger: logger}
}

func (s *SQLiteStore) Get(key string) (string, bool, error) {
	start := time.Now()
	query := `SELECT value FROM session_storage WHERE scope = ? AND key = ?`

	var value string
	err := s.db.QueryRow(query, s.scope, key).Scan(&value)
	database.CheckAndLogSlowQuery(s.logger, query, time.Since(start))
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		s.logger.Database().Error("Session storage read failed", "scope", s.scope, "key", key, "error", err.Error())
		return "", false, fmt.Errorf("failed to read session storage: %w", err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(key, value string) error {
	start := time.Now()
	query := `INSERT INTO session_storage (scope, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(scope, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	_, err := s.db.Exec(query, s.scope, key, value, time.Now().UTC().Format(time.RFC3339))
	database.CheckAndLogSlowQuery(s.logger, query, time.Since(start))
	if err != nil {
		s.logger.Database().Error("Session storage write failed", "scope", s.scope, "key", key, "error", err.Error())
		return fmt.Errorf("failed to write session storage: %w", err)
	}
	s.logger.Database().Debug("Session storage written", "scope", s.scope, "key", key)
	return nil
}
