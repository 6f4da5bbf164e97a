package models

import "time"

// PlayerState is the derived, externally visible snapshot of the playback
// engine. It is recomputed on every transition and always replaced as a
// whole, never partially mutated.
type PlayerState struct {
	IsPlaying           bool      `json:"is_playing"`
	IsOnline            bool      `json:"is_online"`
	State               string    `json:"state"` // idle, loading, playing, transitioning
	CurrentPlaylistID   string    `json:"current_playlist_id,omitempty"`
	CurrentPlaylistName string    `json:"current_playlist_name,omitempty"`
	CurrentItemIndex    int       `json:"current_item_index"`
	TotalItems          int       `json:"total_items"`
	LastError           string    `json:"last_error,omitempty"`
	LastUpdated         time.Time `json:"last_updated"`
}
