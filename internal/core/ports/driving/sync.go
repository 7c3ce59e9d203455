package driving

import "context"

// RunOptions control a single sync run.
type RunOptions struct {
	// MaxItems bounds how many items are listed from the source.
	MaxItems int

	// ForceFull ignores persisted state and treats every listed item
	// as new.
	ForceFull bool
}

// RunSummary reports what a run did, per category.
type RunSummary struct {
	// RunID identifies this run in logs.
	RunID string

	// FullResync is true when the run took the full-resync path.
	FullResync bool

	Added     int
	Updated   int
	Deleted   int
	Unchanged int
	Failed    int
}

// Syncer runs one reconciliation pass against the content source and
// the index service.
type Syncer interface {
	// Run executes a sync. A non-nil error is fatal (listing or state
	// I/O failed); per-item and per-batch failures are reported in
	// the summary instead.
	Run(ctx context.Context, opts RunOptions) (*RunSummary, error)
}
