// Package artifacts stores the locally-derived markdown copy of each
// indexed document. An explicit id -> filename index
// (artifact_index.json) is maintained next to the artifacts, so
// lookup never depends on parsing filenames.
package artifacts

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/custodia-labs/kbsync-cli/internal/core/domain"
	"github.com/custodia-labs/kbsync-cli/internal/core/ports/driven"
)

const indexFile = "artifact_index.json"

// Ensure Store implements the interface.
var _ driven.ArtifactStore = (*Store)(nil)

// Store is a filesystem implementation of driven.ArtifactStore.
type Store struct {
	mu    sync.Mutex
	dir   string
	index map[string]string // item id -> filename
}

// NewStore creates an artifact store rooted at dir and loads the
// existing index, if any.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating artifacts directory: %w", err)
	}

	s := &Store{dir: dir, index: make(map[string]string)}

	raw, err := os.ReadFile(filepath.Join(dir, indexFile))
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &s.index); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", indexFile, err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("reading %s: %w", indexFile, err)
	}

	return s, nil
}

// Dir returns the artifacts directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes the document's markdown artifact, overwriting any
// previous artifact for the same item, and records it in the index.
func (s *Store) Save(_ context.Context, doc *domain.Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := doc.Name
	if name == "" {
		name = doc.ItemID + ".md"
	}

	// A retitled item gets a new slug; drop the stale file first.
	if old, ok := s.index[doc.ItemID]; ok && old != name {
		os.Remove(filepath.Join(s.dir, old))
	}

	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, []byte(doc.Content), 0o600); err != nil {
		return "", fmt.Errorf("writing artifact for %s: %w", doc.ItemID, err)
	}

	s.index[doc.ItemID] = name
	if err := s.saveIndex(); err != nil {
		return "", err
	}
	return path, nil
}

// Remove deletes the artifact for an item. An item with no artifact
// is not an error.
func (s *Store) Remove(_ context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, ok := s.index[itemID]
	if !ok {
		return nil
	}

	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing artifact for %s: %w", itemID, err)
	}

	delete(s.index, itemID)
	return s.saveIndex()
}

// Path returns the artifact path for an item, or ErrNotFound.
func (s *Store) Path(itemID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, ok := s.index[itemID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return filepath.Join(s.dir, name), nil
}

// saveIndex persists the index atomically. Caller holds the lock.
func (s *Store) saveIndex() error {
	data, err := json.MarshalIndent(s.index, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling %s: %w", indexFile, err)
	}

	tmp, err := os.CreateTemp(s.dir, indexFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp index: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", indexFile, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", indexFile, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, indexFile)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", indexFile, err)
	}
	return nil
}

var (
	slugInvalid  = regexp.MustCompile(`[^\w\s-]`)
	slugSpacing  = regexp.MustCompile(`[-\s]+`)
	slugTrimming = "-"
)

// Slug derives a clean filename slug from a title.
func Slug(title string) string {
	slug := strings.ToLower(title)
	slug = slugInvalid.ReplaceAllString(slug, "")
	slug = slugSpacing.ReplaceAllString(slug, "-")
	return strings.Trim(slug, slugTrimming)
}

// ArtifactName builds the canonical artifact filename for an item.
// The id suffix keeps names unique even when titles collide.
func ArtifactName(title, itemID string) string {
	slug := Slug(title)
	if slug == "" {
		return itemID + ".md"
	}
	return slug + "-" + itemID + ".md"
}
