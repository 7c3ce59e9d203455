package driven

import (
	"context"

	"github.com/custodia-labs/kbsync-cli/internal/core/domain"
)

// ArtifactStore keeps the locally-derived copy of each indexed
// document, with an explicit id -> path index (no filename parsing).
type ArtifactStore interface {
	// Save writes the document's artifact and records it in the
	// index, overwriting any previous artifact for the same item.
	Save(ctx context.Context, doc *domain.Document) (string, error)

	// Remove deletes the artifact for an item and drops it from the
	// index. An item with no artifact is not an error.
	Remove(ctx context.Context, itemID string) error
}
