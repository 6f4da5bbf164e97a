package handlers

import (
	"context"
	"testing"

	"github.com/marqueehq/marquee/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	state   models.PlayerState
	skips   int
	reloads int
}

var _ PlaybackController = (*fakeEngine)(nil)

func (f *fakeEngine) State() models.PlayerState          { return f.state }
func (f *fakeEngine) SkipToNext(ctx context.Context)     { f.skips++ }
func (f *fakeEngine) ReloadPlaylist(ctx context.Context) { f.reloads++ }

func TestPlayerHandlerGetState(t *testing.T) {
	engine := &fakeEngine{state: models.PlayerState{
		IsPlaying:         true,
		State:             "playing",
		CurrentPlaylistID: "pl-1",
		CurrentItemIndex:  2,
		TotalItems:        5,
	}}
	handler := NewPlayerHandler(engine)

	output, err := handler.GetState(context.Background(), &PlayerStateInput{})
	require.NoError(t, err)

	assert.True(t, output.Body.IsPlaying)
	assert.Equal(t, "pl-1", output.Body.CurrentPlaylistID)
	assert.Equal(t, 2, output.Body.CurrentItemIndex)
}

func TestPlayerHandlerSkipToNext(t *testing.T) {
	engine := &fakeEngine{state: models.PlayerState{State: "playing"}}
	handler := NewPlayerHandler(engine)

	output, err := handler.SkipToNext(context.Background(), &PlayerActionInput{})
	require.NoError(t, err)

	assert.True(t, output.Body.Accepted)
	assert.Equal(t, 1, engine.skips)
}

func TestPlayerHandlerReloadPlaylist(t *testing.T) {
	engine := &fakeEngine{}
	handler := NewPlayerHandler(engine)

	output, err := handler.ReloadPlaylist(context.Background(), &PlayerActionInput{})
	require.NoError(t, err)

	assert.True(t, output.Body.Accepted)
	assert.Equal(t, 1, engine.reloads)
}
