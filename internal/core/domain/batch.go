package domain

// BatchStatus is the state of a remote batch operation as reported by
// the index service.
type BatchStatus string

// Statuses reported by the index service for attach batches.
const (
	// BatchInProgress means the service is still processing the batch.
	BatchInProgress BatchStatus = "in_progress"

	// BatchCancelling means the batch is being cancelled server-side.
	BatchCancelling BatchStatus = "cancelling"

	// BatchCompleted means every file in the batch was processed.
	BatchCompleted BatchStatus = "completed"

	// BatchFailed means the batch reached a terminal failure.
	BatchFailed BatchStatus = "failed"

	// BatchCancelled means the batch was cancelled before completion.
	BatchCancelled BatchStatus = "cancelled"
)

// IsTerminal reports whether the status will no longer change.
func (s BatchStatus) IsTerminal() bool {
	switch s {
	case BatchCompleted, BatchFailed, BatchCancelled:
		return true
	default:
		return false
	}
}

// Succeeded reports whether the batch finished successfully.
func (s BatchStatus) Succeeded() bool {
	return s == BatchCompleted
}

// String returns the string representation.
func (s BatchStatus) String() string {
	return string(s)
}

// PipelineResult summarises one category pipeline run.
type PipelineResult struct {
	// Succeeded holds the ids of items that completed the pipeline.
	Succeeded []string

	// NewMapping holds item id -> external artifact id entries to
	// merge into the persisted mapping. Empty for the deleted
	// pipeline, whose commit removes entries instead.
	NewMapping map[string]string

	// Failures records items that did not complete, with reasons.
	Failures []ItemFailure
}

// FailAll marks every given item as failed with the same cause.
// Used when a whole-batch call fails and no per-item result is
// observable.
func FailAll(items []Item, cause error) []ItemFailure {
	failures := make([]ItemFailure, 0, len(items))
	for _, it := range items {
		failures = append(failures, ItemFailure{ItemID: it.ID, Title: it.Title, Err: cause})
	}
	return failures
}
