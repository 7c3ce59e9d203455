package domain

// ChangeSet partitions the current item list against persisted state.
// New, Updated and Unchanged are disjoint and together cover every
// current item; Deleted holds tracked ids absent from the current
// list.
type ChangeSet struct {
	New       []Item
	Updated   []Item
	Unchanged []Item

	// Deleted holds item ids only: the items no longer exist at the
	// source, so no summary is available for them.
	Deleted []string
}

// IsEmpty reports whether the run has nothing to do.
func (c ChangeSet) IsEmpty() bool {
	return len(c.New) == 0 && len(c.Updated) == 0 && len(c.Deleted) == 0
}

// Total returns the number of items needing work.
func (c ChangeSet) Total() int {
	return len(c.New) + len(c.Updated) + len(c.Deleted)
}
