// Package sessionstore provides the session-scoped key-value stores the
// tracker persists its session identifier in.
package sessionstore

import (
	"errors"
	"sync"
)

// ErrStorageDisabled is returned by DisabledStore for every call.
var ErrStorageDisabled = errors.New("session storage is disabled")

// MemoryStore keeps values for the lifetime of the process. One store is one
// storage scope.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	return value, ok, nil
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// DisabledStore models storage the host has switched off.
type DisabledStore struct{}

func (DisabledStore) Get(string) (string, bool, error) { return "", false, ErrStorageDisabled }
func (DisabledStore) Set(string, string) error         { return ErrStorageDisabled }
