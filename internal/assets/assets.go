// Package assets provides the player's embedded fallback content. The
// fallback playlist is compiled into the binary so a screen with no network
// and an empty cache still has something to show.
package assets

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/marqueehq/marquee/internal/models"
)

//go:embed fallback.json
var fallbackJSON []byte

// FallbackPlaylist returns a fresh copy of the built-in fallback playlist.
func FallbackPlaylist() (*models.Playlist, error) {
	var playlist models.Playlist
	if err := json.Unmarshal(fallbackJSON, &playlist); err != nil {
		return nil, fmt.Errorf("decoding embedded fallback playlist: %w", err)
	}
	return &playlist, nil
}
