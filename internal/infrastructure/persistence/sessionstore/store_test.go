package sessionstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/infrastructure/persistence/database"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()

	_, ok, err := store.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set("k", "v"))
	value, ok, err := store.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", value)
}

func TestDisabledStore(t *testing.T) {
	var store DisabledStore
	_, _, err := store.Get("k")
	assert.ErrorIs(t, err, ErrStorageDisabled)
	assert.ErrorIs(t, store.Set("k", "v"), ErrStorageDisabled)
}

func TestSQLiteStoreScopes(t *testing.T) {
	logger := logging.NewNopLogger()
	db, err := database.Open(database.Options{SQLitePath: filepath.Join(t.TempDir(), "scope.db")}, logger)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.CreateSchema())

	tabA := NewSQLiteStore(db, "tab-a", logger)
	tabB := NewSQLiteStore(db, "tab-b", logger)

	require.NoError(t, tabA.Set("tractstack_session_id", "first"))
	require.NoError(t, tabA.Set("tractstack_session_id", "second"))

	value, ok, err := tabA.Get("tractstack_session_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", value)

	_, ok, err = tabB.Get("tractstack_session_id")
	require.NoError(t, err)
	assert.False(t, ok, "scopes must not share values")

	reopened := NewSQLiteStore(db, "tab-a", logger)
	value, _, err = reopened.Get("tractstack_session_id")
	require.NoError(t, err)
	assert.Equal(t, "second", value)
}
