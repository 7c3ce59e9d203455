package driven

import (
	"context"

	"github.com/custodia-labs/kbsync-cli/internal/core/domain"
)

// StateStore persists the durable sync state between runs.
// Failures wrap domain.ErrStateIO and are fatal to the run.
type StateStore interface {
	// LoadState returns the persisted state, or an empty state if
	// nothing has been persisted yet.
	LoadState(ctx context.Context) (domain.SyncState, error)

	// SaveMapping persists the id -> external id mapping. Called once
	// per category commit so a crash loses at most the in-flight
	// category.
	SaveMapping(ctx context.Context, mapping map[string]string) error

	// SaveLastRunMarker persists the marker of a successful run.
	SaveLastRunMarker(ctx context.Context, marker string) error

	// LoadCollection returns the persisted collection descriptor, or
	// domain.ErrNotFound if none exists.
	LoadCollection(ctx context.Context) (*domain.CollectionInfo, error)

	// SaveCollection persists the collection descriptor.
	SaveCollection(ctx context.Context, info domain.CollectionInfo) error
}
