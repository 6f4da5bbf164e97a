package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/marqueehq/marquee/internal/models"
)

// CacheController is the slice of the content cache the control API manages.
type CacheController interface {
	Stats(ctx context.Context) (*models.ContentStats, error)
	PurgeAll(ctx context.Context) error
}

// CacheHandler handles cache maintenance endpoints.
type CacheHandler struct {
	cache CacheController
}

// NewCacheHandler creates a cache handler.
func NewCacheHandler(cache CacheController) *CacheHandler {
	return &CacheHandler{cache: cache}
}

// CacheStatsInput is the input for the cache stats endpoint.
type CacheStatsInput struct{}

// CacheStatsOutput is the output for the cache stats endpoint.
type CacheStatsOutput struct {
	Body models.ContentStats
}

// CachePurgeInput is the input for the cache purge endpoint.
type CachePurgeInput struct{}

// CachePurgeOutput is the output for the cache purge endpoint.
type CachePurgeOutput struct {
	Body CachePurgeResponse
}

// CachePurgeResponse is the body returned by a purge.
type CachePurgeResponse struct {
	Purged bool                `json:"purged" doc:"Whether the purge completed"`
	Stats  models.ContentStats `json:"stats" doc:"Cache stats after the purge"`
}

// Register registers the cache routes with the API.
func (h *CacheHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getCacheStats",
		Method:      "GET",
		Path:        "/api/v1/cache/stats",
		Summary:     "Get cache statistics",
		Description: "Returns aggregate statistics for the local content and playlist caches",
		Tags:        []string{"Cache"},
	}, h.GetStats)

	huma.Register(api, huma.Operation{
		OperationID: "purgeCache",
		Method:      "POST",
		Path:        "/api/v1/cache/purge",
		Summary:     "Purge the cache",
		Description: "Removes all cached content and playlists and revokes served handles",
		Tags:        []string{"Cache"},
	}, h.Purge)
}

// GetStats returns cache statistics.
func (h *CacheHandler) GetStats(ctx context.Context, input *CacheStatsInput) (*CacheStatsOutput, error) {
	stats, err := h.cache.Stats(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("reading cache stats", err)
	}
	return &CacheStatsOutput{Body: *stats}, nil
}

// Purge removes everything from the cache.
func (h *CacheHandler) Purge(ctx context.Context, input *CachePurgeInput) (*CachePurgeOutput, error) {
	if err := h.cache.PurgeAll(ctx); err != nil {
		return nil, huma.Error500InternalServerError("purging cache", err)
	}

	stats, err := h.cache.Stats(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("reading cache stats", err)
	}
	return &CachePurgeOutput{
		Body: CachePurgeResponse{Purged: true, Stats: *stats},
	}, nil
}
