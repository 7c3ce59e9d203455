package services

import (
	"github.com/custodia-labs/kbsync-cli/internal/core/domain"
)

// ChangeDetector partitions the current item list against persisted
// state. It is a pure function of its inputs.
type ChangeDetector struct{}

// NewChangeDetector creates a change detector.
func NewChangeDetector() *ChangeDetector {
	return &ChangeDetector{}
}

// Detect classifies items into new/updated/unchanged and finds
// deleted ids. Every current item lands in exactly one of the three
// item buckets; Deleted is the tracked ids missing from the current
// list.
//
// An item counts as updated only when the state carries a last-run
// marker and the item's marker compares strictly greater. Markers
// compare as strings; the ContentSource contract guarantees this
// matches chronological order.
func (d *ChangeDetector) Detect(items []domain.Item, state domain.SyncState) domain.ChangeSet {
	var changes domain.ChangeSet

	currentIDs := make(map[string]struct{}, len(items))
	for _, item := range items {
		currentIDs[item.ID] = struct{}{}
	}

	for id := range state.Mapping {
		if _, ok := currentIDs[id]; !ok {
			changes.Deleted = append(changes.Deleted, id)
		}
	}

	for _, item := range items {
		_, tracked := state.Mapping[item.ID]
		switch {
		case !tracked:
			changes.New = append(changes.New, item)
		case state.LastRunMarker != "" && item.UpdateMarker > state.LastRunMarker:
			changes.Updated = append(changes.Updated, item)
		default:
			changes.Unchanged = append(changes.Unchanged, item)
		}
	}

	return changes
}
