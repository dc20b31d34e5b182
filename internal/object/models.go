package object

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// StoredObject is the metadata row describing one blob in the object store.
// Bucket, ObjectKey, OriginalName, SizeBytes and SHA256Hex are immutable after
// ingestion; only CurrentName and Folder may change.
type StoredObject struct {
	ID           uuid.UUID `json:"object_id"`
	OwnerID      uuid.UUID `json:"owner_id"`
	Bucket       string    `json:"bucket"`
	ObjectKey    string    `json:"object_key"`
	OriginalName string    `json:"original_name"`
	CurrentName  string    `json:"current_name"`
	Folder       *string   `json:"folder,omitempty"`
	ContentType  string    `json:"content_type"`
	SizeBytes    int64     `json:"size_bytes"`
	SHA256Hex    string    `json:"sha256"`
	CreatedAt    time.Time `json:"created_at"`
}

// SortField enumerates the columns listing may order by.
type SortField string

const (
	SortByName      SortField = "name"
	SortBySize      SortField = "size"
	SortByCreatedAt SortField = "created_at"
)

// ParseSortField maps caller input onto the safe enum, defaulting to created_at.
func ParseSortField(s string) SortField {
	switch SortField(s) {
	case SortByName, SortBySize, SortByCreatedAt:
		return SortField(s)
	default:
		return SortByCreatedAt
	}
}

// ListQuery carries listing filters, ordering and pagination.
type ListQuery struct {
	// Folder filters by virtual folder; nil means no folder filter, a
	// pointer to "" means root (objects with no folder).
	Folder     *string
	Search     string
	SortBy     SortField
	Descending bool
	Limit      int
	Offset     int
}

// Page is one window of listing results.
type Page struct {
	Objects    []StoredObject `json:"objects"`
	TotalCount int            `json:"total_count"`
	HasMore    bool           `json:"has_more"`
}

// FolderStat counts objects within one virtual folder.
type FolderStat struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// FolderIndex summarizes the owner's folder layout.
type FolderIndex struct {
	Folders   []FolderStat `json:"folders"`
	RootCount int          `json:"root_count"`
}

// StorageStats aggregates an owner's usage.
type StorageStats struct {
	ObjectCount int   `json:"object_count"`
	TotalBytes  int64 `json:"total_bytes"`
}

// UpdateInput names the mutable fields for a partial update. Nil fields are
// left untouched.
type UpdateInput struct {
	Name   *string
	Folder *string
}

// DownloadResult pairs the metadata row with the open blob stream. Body is a
// forward-only stream; the caller owns it and must close it on every exit
// path.
type DownloadResult struct {
	Object StoredObject
	Body   io.ReadCloser
}
