// Package file provides the default file-based StateStore. State
// lives in three files under the state directory: last_run.txt (plain
// RFC 3339 timestamp), file_mapping.json (item id -> object id) and
// collection.json (collection descriptor). Writes go to a temp file
// first and are renamed into place, so a crash mid-write never leaves
// a corrupt file behind.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/kbsync-cli/internal/core/domain"
	"github.com/custodia-labs/kbsync-cli/internal/core/ports/driven"
)

// State file names within the state directory.
const (
	lastRunFile    = "last_run.txt"
	mappingFile    = "file_mapping.json"
	collectionFile = "collection.json"
)

// Ensure StateStore implements the interface.
var _ driven.StateStore = (*StateStore)(nil)

// StateStore is a file-based implementation of driven.StateStore.
type StateStore struct {
	mu  sync.Mutex
	dir string
}

// NewStateStore creates a state store rooted at dir, creating the
// directory if needed.
func NewStateStore(dir string) (*StateStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: creating state directory: %w", domain.ErrStateIO, err)
	}
	return &StateStore{dir: dir}, nil
}

// Dir returns the state directory path.
func (s *StateStore) Dir() string {
	return s.dir
}

// LoadState reads the marker and mapping. Missing files mean an empty
// state (first run), not an error.
func (s *StateStore) LoadState(_ context.Context) (domain.SyncState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := domain.NewSyncState()

	raw, err := os.ReadFile(filepath.Join(s.dir, lastRunFile))
	switch {
	case err == nil:
		state.LastRunMarker = strings.TrimSpace(string(raw))
	case !os.IsNotExist(err):
		return state, fmt.Errorf("%w: reading %s: %w", domain.ErrStateIO, lastRunFile, err)
	}

	raw, err = os.ReadFile(filepath.Join(s.dir, mappingFile))
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &state.Mapping); err != nil {
			return state, fmt.Errorf("%w: parsing %s: %w", domain.ErrStateIO, mappingFile, err)
		}
	case !os.IsNotExist(err):
		return state, fmt.Errorf("%w: reading %s: %w", domain.ErrStateIO, mappingFile, err)
	}

	return state, nil
}

// SaveMapping persists the mapping as pretty-printed JSON.
func (s *StateStore) SaveMapping(_ context.Context, mapping map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(mapping, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshalling mapping: %w", domain.ErrStateIO, err)
	}
	return s.writeFile(mappingFile, append(data, '\n'))
}

// SaveLastRunMarker persists the marker as a single line.
func (s *StateStore) SaveLastRunMarker(_ context.Context, marker string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeFile(lastRunFile, []byte(marker+"\n"))
}

// LoadCollection reads the collection descriptor.
func (s *StateStore) LoadCollection(_ context.Context) (*domain.CollectionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(filepath.Join(s.dir, collectionFile))
	if os.IsNotExist(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", domain.ErrStateIO, collectionFile, err)
	}

	var info domain.CollectionInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", domain.ErrStateIO, collectionFile, err)
	}
	return &info, nil
}

// SaveCollection persists the collection descriptor.
func (s *StateStore) SaveCollection(_ context.Context, info domain.CollectionInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshalling collection info: %w", domain.ErrStateIO, err)
	}
	return s.writeFile(collectionFile, append(data, '\n'))
}

// writeFile writes atomically: temp file in the same directory, then
// rename over the target.
func (s *StateStore) writeFile(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file for %s: %w", domain.ErrStateIO, name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: writing %s: %w", domain.ErrStateIO, name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: closing %s: %w", domain.ErrStateIO, name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: replacing %s: %w", domain.ErrStateIO, name, err)
	}
	return nil
}
