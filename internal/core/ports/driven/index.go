package driven

import (
	"context"

	"github.com/custodia-labs/kbsync-cli/internal/core/domain"
)

// IndexClient talks to the remote index/storage service. Batch calls
// succeed or fail as a whole unless the service reports per-item
// status.
type IndexClient interface {
	// RegisterBatch uploads documents as storage objects and returns
	// item id -> external object id for every document. If the call
	// itself fails, the error wraps domain.ErrBatchRegister and no
	// per-item result is observable.
	RegisterBatch(ctx context.Context, docs []domain.Document) (map[string]string, error)

	// EnsureCollection resolves the named collection, creating it on
	// first use. Failures wrap domain.ErrCollection.
	EnsureCollection(ctx context.Context, name string) (string, error)

	// AttachBatch attaches object ids to the collection and returns a
	// batch id for status polling. Failures wrap domain.ErrBatchAttach.
	AttachBatch(ctx context.Context, collectionID string, externalIDs []string) (string, error)

	// BatchStatus reports the current status of an attach batch.
	BatchStatus(ctx context.Context, collectionID, batchID string) (domain.BatchStatus, error)

	// DetachBatch removes object ids from the collection. Best
	// effort: callers log errors and continue.
	DetachBatch(ctx context.Context, collectionID string, externalIDs []string) error

	// DeleteBatch deletes storage objects. Best effort, like
	// DetachBatch.
	DeleteBatch(ctx context.Context, externalIDs []string) error

	// CollectionStats fetches service-side statistics for the
	// collection. Best effort; used only for summaries.
	CollectionStats(ctx context.Context, collectionID string) (*domain.CollectionStats, error)
}
