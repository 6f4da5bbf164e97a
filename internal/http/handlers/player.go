package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/marqueehq/marquee/internal/models"
)

// PlaybackController is the slice of the playback engine the control API
// drives.
type PlaybackController interface {
	State() models.PlayerState
	SkipToNext(ctx context.Context)
	ReloadPlaylist(ctx context.Context)
}

// PlayerHandler handles playback control endpoints.
type PlayerHandler struct {
	engine PlaybackController
}

// NewPlayerHandler creates a player handler.
func NewPlayerHandler(engine PlaybackController) *PlayerHandler {
	return &PlayerHandler{engine: engine}
}

// PlayerStateInput is the input for the player state endpoint.
type PlayerStateInput struct{}

// PlayerStateOutput is the output for the player state endpoint.
type PlayerStateOutput struct {
	Body models.PlayerState
}

// PlayerActionInput is the input for the skip and reload endpoints.
type PlayerActionInput struct{}

// PlayerActionOutput acknowledges a playback action.
type PlayerActionOutput struct {
	Body PlayerActionResponse
}

// PlayerActionResponse is the body returned by playback actions.
type PlayerActionResponse struct {
	Accepted bool               `json:"accepted" doc:"Whether the action was accepted"`
	State    models.PlayerState `json:"state" doc:"Player state after the action"`
}

// Register registers the player routes with the API.
func (h *PlayerHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getPlayerState",
		Method:      "GET",
		Path:        "/api/v1/player/state",
		Summary:     "Get player state",
		Description: "Returns the current playback state snapshot",
		Tags:        []string{"Player"},
	}, h.GetState)

	huma.Register(api, huma.Operation{
		OperationID: "skipToNext",
		Method:      "POST",
		Path:        "/api/v1/player/next",
		Summary:     "Skip to next item",
		Description: "Advances playback to the next playlist item",
		Tags:        []string{"Player"},
	}, h.SkipToNext)

	huma.Register(api, huma.Operation{
		OperationID: "reloadPlaylist",
		Method:      "POST",
		Path:        "/api/v1/player/reload",
		Summary:     "Reload playlist",
		Description: "Re-loads the current playlist, or restarts playback selection when nothing is loaded",
		Tags:        []string{"Player"},
	}, h.ReloadPlaylist)
}

// GetState returns the current player state.
func (h *PlayerHandler) GetState(ctx context.Context, input *PlayerStateInput) (*PlayerStateOutput, error) {
	return &PlayerStateOutput{Body: h.engine.State()}, nil
}

// SkipToNext advances playback to the next item.
func (h *PlayerHandler) SkipToNext(ctx context.Context, input *PlayerActionInput) (*PlayerActionOutput, error) {
	h.engine.SkipToNext(ctx)
	return &PlayerActionOutput{
		Body: PlayerActionResponse{Accepted: true, State: h.engine.State()},
	}, nil
}

// ReloadPlaylist re-loads the current playlist.
func (h *PlayerHandler) ReloadPlaylist(ctx context.Context, input *PlayerActionInput) (*PlayerActionOutput, error) {
	h.engine.ReloadPlaylist(ctx)
	return &PlayerActionOutput{
		Body: PlayerActionResponse{Accepted: true, State: h.engine.State()},
	}, nil
}
