// Package memory provides an in-memory StateStore, used in tests and
// as a reference implementation of the port.
package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/kbsync-cli/internal/core/domain"
	"github.com/custodia-labs/kbsync-cli/internal/core/ports/driven"
)

// Ensure StateStore implements the interface.
var _ driven.StateStore = (*StateStore)(nil)

// StateStore is an in-memory implementation of driven.StateStore.
type StateStore struct {
	mu         sync.RWMutex
	marker     string
	mapping    map[string]string
	collection *domain.CollectionInfo
}

// NewStateStore creates a new in-memory state store.
func NewStateStore() *StateStore {
	return &StateStore{
		mapping: make(map[string]string),
	}
}

// LoadState returns the current state. The mapping is copied so
// callers can mutate freely.
func (s *StateStore) LoadState(_ context.Context) (domain.SyncState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := domain.SyncState{
		LastRunMarker: s.marker,
		Mapping:       make(map[string]string, len(s.mapping)),
	}
	for k, v := range s.mapping {
		state.Mapping[k] = v
	}
	return state, nil
}

// SaveMapping replaces the stored mapping.
func (s *StateStore) SaveMapping(_ context.Context, mapping map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mapping = make(map[string]string, len(mapping))
	for k, v := range mapping {
		s.mapping[k] = v
	}
	return nil
}

// SaveLastRunMarker stores the marker.
func (s *StateStore) SaveLastRunMarker(_ context.Context, marker string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marker = marker
	return nil
}

// LoadCollection returns the stored collection descriptor.
func (s *StateStore) LoadCollection(_ context.Context) (*domain.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.collection == nil {
		return nil, domain.ErrNotFound
	}
	info := *s.collection
	return &info, nil
}

// SaveCollection stores the collection descriptor.
func (s *StateStore) SaveCollection(_ context.Context, info domain.CollectionInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collection = &info
	return nil
}
