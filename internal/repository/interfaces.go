// Package repository provides data access for marquee's durable caches.
package repository

import (
	"context"

	"github.com/marqueehq/marquee/internal/models"
)

// ContentRepository persists downloaded content bytes keyed by remote address.
type ContentRepository interface {
	// Upsert stores a content entry, replacing any existing entry with the
	// same address.
	Upsert(ctx context.Context, entry *models.ContentEntry) error

	// FindByAddress returns the entry for a remote address, or nil if none
	// is cached.
	FindByAddress(ctx context.Context, address string) (*models.ContentEntry, error)

	// FindOldest returns up to limit entries ordered oldest-first by StoredAt.
	FindOldest(ctx context.Context, limit int) ([]*models.ContentEntry, error)

	// Delete removes an entry by address. Deleting a missing address is not
	// an error.
	Delete(ctx context.Context, address string) error

	// DeleteAll removes every content entry.
	DeleteAll(ctx context.Context) error

	// TotalSize returns the sum of SizeBytes across all entries.
	TotalSize(ctx context.Context) (int64, error)

	// Count returns the number of cached entries.
	Count(ctx context.Context) (int64, error)

	// Stats returns aggregate figures over the content store.
	Stats(ctx context.Context) (*models.ContentStats, error)
}

// PlaylistRepository persists last-known-good playlist documents.
type PlaylistRepository interface {
	// Upsert stores a cached playlist, replacing any existing row with the
	// same playlist id.
	Upsert(ctx context.Context, cached *models.CachedPlaylist) error

	// FindByPlaylistID returns the cached playlist, or nil if none is cached.
	FindByPlaylistID(ctx context.Context, playlistID string) (*models.CachedPlaylist, error)

	// FindNewest returns the most recently cached playlist, or nil when the
	// cache is empty.
	FindNewest(ctx context.Context) (*models.CachedPlaylist, error)

	// FindAll returns all cached playlists ordered newest-first by CachedAt.
	FindAll(ctx context.Context) ([]*models.CachedPlaylist, error)

	// Delete removes a cached playlist by playlist id. Deleting a missing id
	// is not an error.
	Delete(ctx context.Context, playlistID string) error

	// DeleteAll removes every cached playlist.
	DeleteAll(ctx context.Context) error

	// Count returns the number of cached playlists.
	Count(ctx context.Context) (int64, error)
}
