package models

import "time"

// ContentEntry is a durably cached content object. The address (remote URL)
// is the logical cache key; the bytes survive restarts while playable
// handles do not and are recreated from Data on demand.
type ContentEntry struct {
	BaseModel
	Address   string    `gorm:"uniqueIndex;not null" json:"address"`
	Data      []byte    `gorm:"not null" json:"-"`
	SizeBytes int64     `gorm:"not null" json:"size_bytes"`
	MimeType  string    `json:"mime_type"`
	StoredAt  time.Time `gorm:"index" json:"stored_at"`
}

// TableName overrides the GORM table name.
func (ContentEntry) TableName() string {
	return "content_entries"
}

// CachedPlaylist is a last-known-good playlist document. Document holds the
// playlist JSON exactly as fetched so the cached copy round-trips
// field-for-field; CachedAt is the only addition.
type CachedPlaylist struct {
	BaseModel
	PlaylistID string    `gorm:"uniqueIndex;not null" json:"playlist_id"`
	Name       string    `json:"name"`
	Document   []byte    `gorm:"not null" json:"-"`
	CachedAt   time.Time `gorm:"index" json:"cached_at"`
}

// TableName overrides the GORM table name.
func (CachedPlaylist) TableName() string {
	return "cached_playlists"
}

// ContentStats summarizes the durable stores. Values are computed from the
// store itself rather than in-memory counters so reporting is self-correcting.
type ContentStats struct {
	TotalBytes    int64      `json:"total_bytes"`
	EntryCount    int64      `json:"entry_count"`
	PlaylistCount int64      `json:"playlist_count"`
	OldestStored  *time.Time `json:"oldest_stored,omitempty"`
	NewestStored  *time.Time `json:"newest_stored,omitempty"`
}
