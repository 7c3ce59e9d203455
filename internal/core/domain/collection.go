package domain

import "time"

// CollectionInfo is the persisted descriptor of the remote collection
// documents are attached to.
type CollectionInfo struct {
	// CollectionID is the id assigned by the index service.
	CollectionID string `json:"collection_id"`

	// CreatedAt is when the collection was first created.
	CreatedAt time.Time `json:"created_at"`

	// LastUpdated is when a sync run last touched the collection.
	LastUpdated time.Time `json:"last_updated"`

	// Stats are the most recent service-reported statistics, if any.
	Stats *CollectionStats `json:"stats,omitempty"`
}

// CollectionStats are usage statistics reported by the index service.
type CollectionStats struct {
	TotalFiles     int   `json:"total_files"`
	CompletedFiles int   `json:"completed_files"`
	FailedFiles    int   `json:"failed_files"`
	UsageBytes     int64 `json:"usage_bytes"`
}
