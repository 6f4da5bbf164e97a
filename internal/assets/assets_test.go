package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackPlaylist(t *testing.T) {
	playlist, err := FallbackPlaylist()
	require.NoError(t, err)

	assert.Equal(t, "fallback", playlist.ID)
	require.NotEmpty(t, playlist.Items)
	require.NoError(t, playlist.Validate())

	// Callers mutate playback state; each call must return a fresh copy.
	playlist.Items[0].ID = "mutated"
	again, err := FallbackPlaylist()
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", again.Items[0].ID)
}
