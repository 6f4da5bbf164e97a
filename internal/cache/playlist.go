package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/marqueehq/marquee/internal/models"
	"github.com/marqueehq/marquee/internal/repository"
)

// PlaylistCache durably stores last-known-good playlist documents. Documents
// are kept as the JSON exactly as fetched so a cached playlist round-trips
// field-for-field; only cachedAt is added.
type PlaylistCache struct {
	repo    repository.PlaylistRepository
	content *ContentCache
	logger  *slog.Logger
}

// NewPlaylistCache creates a playlist cache. The content cache is used to
// preload item media when a playlist is stored.
func NewPlaylistCache(repo repository.PlaylistRepository, content *ContentCache, logger *slog.Logger) *PlaylistCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlaylistCache{repo: repo, content: content, logger: logger}
}

// Put upserts a playlist by id with a fresh cache timestamp and, as a side
// effect, kicks off best-effort preloading of every item's primary and
// thumbnail address.
func (p *PlaylistCache) Put(ctx context.Context, playlist *models.Playlist) error {
	if playlist == nil || playlist.ID == "" {
		return models.ErrPlaylistIDRequired
	}

	document, err := json.Marshal(playlist)
	if err != nil {
		return fmt.Errorf("encoding playlist document: %w", err)
	}

	cached := &models.CachedPlaylist{
		PlaylistID: playlist.ID,
		Name:       playlist.Name,
		Document:   document,
		CachedAt:   time.Now().UTC(),
	}
	if err := p.repo.Upsert(ctx, cached); err != nil {
		return fmt.Errorf("caching playlist %s: %w", playlist.ID, err)
	}

	p.logger.Debug("playlist cached",
		slog.String("playlist_id", playlist.ID),
		slog.Int("items", len(playlist.Items)),
	)

	for _, item := range playlist.Items {
		p.content.Preload(item.Content.URL)
		p.content.Preload(item.Content.Thumbnail)
	}

	return nil
}

// Get returns the cached playlist and its cache timestamp, or nil when the
// id has never been cached.
func (p *PlaylistCache) Get(ctx context.Context, playlistID string) (*models.Playlist, time.Time, error) {
	cached, err := p.repo.FindByPlaylistID(ctx, playlistID)
	if err != nil {
		return nil, time.Time{}, err
	}
	if cached == nil {
		return nil, time.Time{}, nil
	}
	playlist, err := decodeDocument(cached)
	if err != nil {
		return nil, time.Time{}, err
	}
	return playlist, cached.CachedAt, nil
}

// GetNewest returns the most recently cached playlist irrespective of id,
// used only as a last-resort fallback. Returns nil when the cache is empty.
func (p *PlaylistCache) GetNewest(ctx context.Context) (*models.Playlist, error) {
	cached, err := p.repo.FindNewest(ctx)
	if err != nil {
		return nil, err
	}
	if cached == nil {
		return nil, nil
	}
	return decodeDocument(cached)
}

// GetAll returns every cached playlist, newest first.
func (p *PlaylistCache) GetAll(ctx context.Context) ([]*models.Playlist, error) {
	rows, err := p.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	playlists := make([]*models.Playlist, 0, len(rows))
	for _, cached := range rows {
		playlist, err := decodeDocument(cached)
		if err != nil {
			// A single corrupt document must not hide the rest.
			p.logger.Warn("skipping corrupt cached playlist",
				slog.String("playlist_id", cached.PlaylistID),
				slog.String("error", err.Error()),
			)
			continue
		}
		playlists = append(playlists, playlist)
	}
	return playlists, nil
}

// Delete removes a cached playlist by id.
func (p *PlaylistCache) Delete(ctx context.Context, playlistID string) error {
	return p.repo.Delete(ctx, playlistID)
}

func decodeDocument(cached *models.CachedPlaylist) (*models.Playlist, error) {
	var playlist models.Playlist
	if err := json.Unmarshal(cached.Document, &playlist); err != nil {
		return nil, fmt.Errorf("decoding cached playlist %s: %w", cached.PlaylistID, err)
	}
	return &playlist, nil
}
