package telemetry

import (
	"sync"

	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/observability/logging"
	"github.com/google/uuid"
)

// SessionManager owns the session identifier of one storage scope.
type SessionManager struct {
	store  KeyValueStore
	key    string
	logger *logging.ChanneledLogger

	once     sync.Once
	id       string
	isNew    bool
	degraded bool
}

func NewSessionManager(store KeyValueStore, key string, logger *logging.ChanneledLogger) *SessionManager {
	return &SessionManager{store: store, key: key, logger: logger}
}

// GetOrCreateSessionID returns the scope's identifier, creating and persisting
// it on first use. When storage is unavailable the identifier lives in memory
// for this page load only.
func (m *SessionManager) GetOrCreateSessionID() string {
	m.once.Do(m.resolve)
	return m.id
}

// IsNew reports whether this page load created the identifier.
func (m *SessionManager) IsNew() bool {
	m.once.Do(m.resolve)
	return m.isNew
}

// Degraded reports whether the identifier could not be persisted.
func (m *SessionManager) Degraded() bool {
	m.once.Do(m.resolve)
	return m.degraded
}

func (m *SessionManager) resolve() {
	if m.store == nil {
		m.fallback(nil)
		return
	}

	value, ok, err := m.store.Get(m.key)
	if err != nil {
		m.fallback(err)
		return
	}
	if ok && value != "" {
		m.id = value
		m.logger.WithSession(logging.ChannelSession, m.id).Debug("Reusing session identifier")
		return
	}

	m.id = uuid.NewString()
	m.isNew = true
	if err := m.store.Set(m.key, m.id); err != nil {
		m.degraded = true
		m.logger.Session().Warn("Failed to persist session identifier, continuing in memory", "error", err.Error())
		return
	}
	m.logger.WithSession(logging.ChannelSession, m.id).Info("Created session identifier")
}

func (m *SessionManager) fallback(err error) {
	m.id = uuid.NewString()
	m.isNew = true
	m.degraded = true
	if err != nil {
		m.logger.Session().Warn("Session storage unavailable, using in-memory identifier", "error", err.Error())
	} else {
		m.logger.Session().Warn("No session storage configured, using in-memory identifier")
	}
}
