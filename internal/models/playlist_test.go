package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaylistValidate(t *testing.T) {
	valid := &Playlist{
		ID:   "pl-1",
		Name: "Lobby Loop",
		Items: []PlaylistItem{
			{ID: "item-1", Type: ItemTypeImage, Duration: 10, Content: ItemContent{URL: "https://cdn.example.com/a.jpg"}},
			{ID: "item-2", Type: ItemTypeVideo, Duration: 30, Content: ItemContent{URL: "https://cdn.example.com/b.mp4"}},
		},
	}
	require.NoError(t, valid.Validate())

	t.Run("missing id", func(t *testing.T) {
		p := &Playlist{Name: "x"}
		assert.ErrorIs(t, p.Validate(), ErrPlaylistIDRequired)
	})

	t.Run("bad item type", func(t *testing.T) {
		p := &Playlist{ID: "pl-2", Items: []PlaylistItem{{ID: "i", Type: "hologram", Duration: 5}}}
		assert.ErrorIs(t, p.Validate(), ErrInvalidItemType)
	})

	t.Run("zero duration", func(t *testing.T) {
		p := &Playlist{ID: "pl-3", Items: []PlaylistItem{{ID: "i", Type: ItemTypeImage, Duration: 0}}}
		assert.ErrorIs(t, p.Validate(), ErrInvalidDuration)
	})
}

func TestPlaylistItemOrderRoundTrips(t *testing.T) {
	p := &Playlist{
		ID: "pl-order",
		Items: []PlaylistItem{
			{ID: "c", Type: ItemTypeImage, Duration: 5},
			{ID: "a", Type: ItemTypeImage, Duration: 5},
			{ID: "b", Type: ItemTypeImage, Duration: 5},
		},
	}

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded Playlist
	require.NoError(t, json.Unmarshal(data, &decoded))

	require.Len(t, decoded.Items, 3)
	assert.Equal(t, "c", decoded.Items[0].ID)
	assert.Equal(t, "a", decoded.Items[1].ID)
	assert.Equal(t, "b", decoded.Items[2].ID)
}

func TestTransitionDelaySeconds(t *testing.T) {
	none := PlaylistItem{Settings: ItemSettings{Transition: "none", TransitionDuration: 3}}
	assert.Equal(t, 0, none.TransitionDelaySeconds())

	unset := PlaylistItem{}
	assert.Equal(t, 0, unset.TransitionDelaySeconds())

	fade := PlaylistItem{Settings: ItemSettings{Transition: "fade", TransitionDuration: 2}}
	assert.Equal(t, 2, fade.TransitionDelaySeconds())
}
