// Package directory provides the client for the remote directory service
// that owns screens, playlists, areas, and schedules. The player treats the
// directory as the source of truth and degrades to its local caches whenever
// the directory is unreachable.
package directory

import (
	"context"

	"github.com/marqueehq/marquee/internal/models"
)

// EventType identifies the kind of change announced by the directory.
type EventType string

// Change event types emitted on the subscription stream.
const (
	EventScreenUpdated   EventType = "screen.updated"
	EventScheduleUpdated EventType = "schedule.updated"
	EventPlaylistUpdated EventType = "playlist.updated"
	EventPlaylistDeleted EventType = "playlist.deleted"
)

// ChangeEvent is a notification that directory state relevant to a screen
// has changed. Events are hints: consumers re-fetch authoritative state
// rather than trusting event payloads.
type ChangeEvent struct {
	Type       EventType `json:"type"`
	ScreenID   string    `json:"screenId,omitempty"`
	PlaylistID string    `json:"playlistId,omitempty"`
}

// StatusUpdate is the heartbeat payload reported for a screen.
type StatusUpdate struct {
	Status            string  `json:"status"` // online, offline
	Name              string  `json:"name,omitempty"`
	CurrentPlaylistID string  `json:"currentPlaylistId,omitempty"`
	CurrentItemIndex  int     `json:"currentItemIndex"`
	UptimeSeconds     uint64  `json:"uptimeSeconds"`
	MemoryUsedPercent float64 `json:"memoryUsedPercent"`
	LoadAverage       float64 `json:"loadAverage"`
	Version           string  `json:"version,omitempty"`
}

// Client is the directory service API used by the player.
type Client interface {
	// GetScreen fetches the screen document, including its schedule block.
	GetScreen(ctx context.Context, screenID string) (*models.Screen, error)

	// GetPlaylist fetches a playlist document by id. Returns
	// models.ErrNotFound when the playlist does not exist.
	GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error)

	// GetArea fetches the area document for the screen's area.
	GetArea(ctx context.Context, screenID string) (*models.Area, error)

	// UpdateScreenStatus reports the player's current status to the directory.
	UpdateScreenStatus(ctx context.Context, screenID string, update *StatusUpdate) error

	// Subscribe opens a change notification stream for the screen. The
	// returned channel is closed when ctx is cancelled; stream errors are
	// absorbed by reconnecting internally.
	Subscribe(ctx context.Context, screenID string) (<-chan ChangeEvent, error)
}
