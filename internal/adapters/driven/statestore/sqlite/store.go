// Package sqlite provides a SQLite-backed StateStore, an alternative
// to the plain file store for deployments that prefer a single state
// database to a directory of JSON files.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/kbsync-cli/internal/adapters/driven/statestore/sqlite/migrations"
	"github.com/custodia-labs/kbsync-cli/internal/core/domain"
	"github.com/custodia-labs/kbsync-cli/internal/core/ports/driven"
)

// Meta keys in the run_meta table.
const metaLastRunMarker = "last_run_marker"

// Ensure StateStore implements the interface.
var _ driven.StateStore = (*StateStore)(nil)

// StateStore is a SQLite implementation of driven.StateStore.
type StateStore struct {
	db   *sql.DB
	path string
}

// NewStateStore opens (or creates) the state database under dir.
func NewStateStore(dir string) (*StateStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: creating state directory: %w", domain.ErrStateIO, err)
	}

	dbPath := filepath.Join(dir, "state.db")

	// WAL mode keeps readers usable while a commit is in flight.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %w", domain.ErrStateIO, err)
	}

	s := &StateStore{db: db, path: dbPath}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: running migrations: %w", domain.ErrStateIO, err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *StateStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *StateStore) Path() string {
	return s.path
}

// LoadState reads the marker and the whole mapping table.
func (s *StateStore) LoadState(ctx context.Context) (domain.SyncState, error) {
	state := domain.NewSyncState()

	row := s.db.QueryRowContext(ctx, "SELECT value FROM run_meta WHERE key = ?", metaLastRunMarker)
	if err := row.Scan(&state.LastRunMarker); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return state, fmt.Errorf("%w: reading marker: %w", domain.ErrStateIO, err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT item_id, external_id FROM mappings")
	if err != nil {
		return state, fmt.Errorf("%w: reading mappings: %w", domain.ErrStateIO, err)
	}
	defer rows.Close()

	for rows.Next() {
		var itemID, externalID string
		if err := rows.Scan(&itemID, &externalID); err != nil {
			return state, fmt.Errorf("%w: scanning mapping: %w", domain.ErrStateIO, err)
		}
		state.Mapping[itemID] = externalID
	}
	if err := rows.Err(); err != nil {
		return state, fmt.Errorf("%w: reading mappings: %w", domain.ErrStateIO, err)
	}
	return state, nil
}

// SaveMapping replaces the mapping table in one transaction.
func (s *StateStore) SaveMapping(ctx context.Context, mapping map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", domain.ErrStateIO, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM mappings"); err != nil {
		return fmt.Errorf("%w: clearing mappings: %w", domain.ErrStateIO, err)
	}
	for itemID, externalID := range mapping {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO mappings (item_id, external_id) VALUES (?, ?)",
			itemID, externalID); err != nil {
			return fmt.Errorf("%w: saving mapping %s: %w", domain.ErrStateIO, itemID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", domain.ErrStateIO, err)
	}
	return nil
}

// SaveLastRunMarker upserts the marker.
func (s *StateStore) SaveLastRunMarker(ctx context.Context, marker string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_meta (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, metaLastRunMarker, marker)
	if err != nil {
		return fmt.Errorf("%w: saving marker: %w", domain.ErrStateIO, err)
	}
	return nil
}

// LoadCollection reads the single collection descriptor row.
func (s *StateStore) LoadCollection(ctx context.Context) (*domain.CollectionInfo, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT collection_id, created_at, last_updated, stats
		FROM collection_info WHERE id = 1
	`)

	var info domain.CollectionInfo
	var stats sql.NullString
	if err := row.Scan(&info.CollectionID, &info.CreatedAt, &info.LastUpdated, &stats); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: reading collection info: %w", domain.ErrStateIO, err)
	}

	if stats.Valid && stats.String != "" {
		if err := json.Unmarshal([]byte(stats.String), &info.Stats); err != nil {
			return nil, fmt.Errorf("%w: parsing collection stats: %w", domain.ErrStateIO, err)
		}
	}
	return &info, nil
}

// SaveCollection upserts the collection descriptor.
func (s *StateStore) SaveCollection(ctx context.Context, info domain.CollectionInfo) error {
	var stats any
	if info.Stats != nil {
		data, err := json.Marshal(info.Stats)
		if err != nil {
			return fmt.Errorf("%w: marshalling collection stats: %w", domain.ErrStateIO, err)
		}
		stats = string(data)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collection_info (id, collection_id, created_at, last_updated, stats)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			collection_id = excluded.collection_id,
			created_at = excluded.created_at,
			last_updated = excluded.last_updated,
			stats = excluded.stats
	`, info.CollectionID, info.CreatedAt, info.LastUpdated, stats)
	if err != nil {
		return fmt.Errorf("%w: saving collection info: %w", domain.ErrStateIO, err)
	}
	return nil
}

// migrate runs all pending migrations.
func (s *StateStore) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}
		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}
