package driven

import (
	"context"

	"github.com/custodia-labs/kbsync-cli/internal/core/domain"
)

// ContentSource lists and fetches items from the content system.
type ContentSource interface {
	// List returns up to max item summaries.
	//
	// Contract: Item.UpdateMarker values must be lexicographically
	// ordered consistently with chronological order (e.g. RFC 3339
	// UTC timestamps). Change detection compares markers as strings
	// and relies on this.
	List(ctx context.Context, max int) ([]domain.Item, error)

	// Fetch returns the full raw body of one item. Failures wrap
	// domain.ErrFetch and isolate that item only.
	Fetch(ctx context.Context, item domain.Item) (*domain.RawContent, error)
}
