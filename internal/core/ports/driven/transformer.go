package driven

import (
	"context"

	"github.com/custodia-labs/kbsync-cli/internal/core/domain"
)

// ContentTransformer converts a raw item body into the clean document
// text that gets indexed.
type ContentTransformer interface {
	// ToDocument produces the indexable document for one item.
	// Failures wrap domain.ErrTransform and isolate that item only.
	ToDocument(ctx context.Context, raw *domain.RawContent) (*domain.Document, error)
}
