package domain

import "time"

// Item is a summary of one unit of content in the source system.
type Item struct {
	// ID is the stable identifier assigned by the content source.
	ID string

	// Title is the human-readable title.
	Title string

	// UpdateMarker is an opaque version token supplied by the source.
	// Markers compare lexicographically; the ContentSource contract
	// requires that this ordering matches chronological order
	// (RFC 3339 UTC timestamps satisfy this).
	UpdateMarker string

	// URL is the canonical public URL, used in document headers for
	// citations. May be empty.
	URL string
}

// RawContent is the unprocessed body of an item as fetched from the
// content source.
type RawContent struct {
	// Item is the summary the body belongs to.
	Item Item

	// Body is the raw markup (HTML for help-centre articles).
	Body string
}

// Document is the cleaned text produced by the transformer, ready to
// be registered with the index service.
type Document struct {
	// ItemID links back to the source item.
	ItemID string

	// Name is the suggested object name (slug-<id>.md).
	Name string

	// Content is the cleaned Markdown text.
	Content string
}

// SyncState is the durable state carried between runs.
type SyncState struct {
	// LastRunMarker is the marker of the last successful run, in
	// RFC 3339 UTC. Empty before the first successful run.
	LastRunMarker string

	// Mapping is the item id -> external artifact id table. It is the
	// single source of truth for what is currently indexed.
	Mapping map[string]string
}

// NewSyncState returns an empty state ready for a first run.
func NewSyncState() SyncState {
	return SyncState{Mapping: make(map[string]string)}
}

// IsEmpty reports whether no prior run has committed anything.
// An empty state triggers a full resync.
func (s SyncState) IsEmpty() bool {
	return s.LastRunMarker == "" && len(s.Mapping) == 0
}

// Clone returns a deep copy. The orchestrator mutates a working copy
// and commits it through the StateStore, so the loaded state must not
// be aliased.
func (s SyncState) Clone() SyncState {
	out := SyncState{
		LastRunMarker: s.LastRunMarker,
		Mapping:       make(map[string]string, len(s.Mapping)),
	}
	for k, v := range s.Mapping {
		out.Mapping[k] = v
	}
	return out
}

// MarkerFromTime formats t as a run marker (RFC 3339 UTC).
func MarkerFromTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
