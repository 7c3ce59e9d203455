package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// Per-item errors. These isolate the failing item only; siblings
	// in the same category keep going.

	// ErrFetch indicates an item's body could not be fetched.
	ErrFetch = errors.New("fetch failed")

	// ErrTransform indicates an item's body could not be converted
	// into a clean document.
	ErrTransform = errors.New("transform failed")

	// ErrMappingMissing indicates an updated item has no prior
	// mapping entry. The item is failed, never treated as new.
	ErrMappingMissing = errors.New("no mapping entry for updated item")

	// Per-batch errors. A failure here fails every item in the
	// current batch; other categories are unaffected.

	// ErrBatchRegister indicates the whole register call failed.
	ErrBatchRegister = errors.New("batch register failed")

	// ErrBatchAttach indicates the attach batch failed or reached a
	// terminal failure status.
	ErrBatchAttach = errors.New("batch attach failed")

	// ErrCollection indicates the target collection could not be
	// created or resolved.
	ErrCollection = errors.New("collection unavailable")

	// Fatal errors. These abort the run before the marker advances.

	// ErrListItems indicates the content source listing failed.
	ErrListItems = errors.New("list items failed")

	// ErrStateIO indicates persisted state could not be read or
	// written.
	ErrStateIO = errors.New("state I/O failed")
)

// ItemFailure records one item that failed during a pipeline, with
// the reason it failed.
type ItemFailure struct {
	ItemID string
	Title  string
	Err    error
}

// Error implements the error interface.
func (f ItemFailure) Error() string {
	if f.Title != "" {
		return "item " + f.ItemID + " (" + f.Title + "): " + f.Err.Error()
	}
	return "item " + f.ItemID + ": " + f.Err.Error()
}

// Unwrap exposes the underlying cause for errors.Is checks.
func (f ItemFailure) Unwrap() error {
	return f.Err
}
