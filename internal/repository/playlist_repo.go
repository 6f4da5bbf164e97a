package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/marqueehq/marquee/internal/database"
	"github.com/marqueehq/marquee/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPlaylistRepository implements PlaylistRepository using GORM.
type GormPlaylistRepository struct {
	db *database.DB
}

var _ PlaylistRepository = (*GormPlaylistRepository)(nil)

// NewGormPlaylistRepository creates a new playlist repository.
func NewGormPlaylistRepository(db *database.DB) *GormPlaylistRepository {
	return &GormPlaylistRepository{db: db}
}

// Upsert stores a cached playlist, replacing any existing row with the same
// playlist id.
func (r *GormPlaylistRepository) Upsert(ctx context.Context, cached *models.CachedPlaylist) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "playlist_id"}},
			UpdateAll: true,
		}).
		Create(cached).Error
	if err != nil {
		return fmt.Errorf("upserting cached playlist: %w", err)
	}
	return nil
}

// FindByPlaylistID returns the cached playlist, or nil if none is cached.
func (r *GormPlaylistRepository) FindByPlaylistID(ctx context.Context, playlistID string) (*models.CachedPlaylist, error) {
	var cached models.CachedPlaylist
	err := r.db.WithContext(ctx).
		Where("playlist_id = ?", playlistID).
		First(&cached).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding cached playlist: %w", err)
	}
	return &cached, nil
}

// FindNewest returns the most recently cached playlist, or nil when empty.
func (r *GormPlaylistRepository) FindNewest(ctx context.Context) (*models.CachedPlaylist, error) {
	var cached models.CachedPlaylist
	err := r.db.WithContext(ctx).
		Order("cached_at DESC").
		First(&cached).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding newest cached playlist: %w", err)
	}
	return &cached, nil
}

// FindAll returns all cached playlists ordered newest-first by CachedAt.
func (r *GormPlaylistRepository) FindAll(ctx context.Context) ([]*models.CachedPlaylist, error) {
	var cached []*models.CachedPlaylist
	err := r.db.WithContext(ctx).
		Order("cached_at DESC").
		Find(&cached).Error
	if err != nil {
		return nil, fmt.Errorf("finding cached playlists: %w", err)
	}
	return cached, nil
}

// Delete removes a cached playlist by playlist id.
func (r *GormPlaylistRepository) Delete(ctx context.Context, playlistID string) error {
	err := r.db.WithContext(ctx).
		Where("playlist_id = ?", playlistID).
		Delete(&models.CachedPlaylist{}).Error
	if err != nil {
		return fmt.Errorf("deleting cached playlist: %w", err)
	}
	return nil
}

// DeleteAll removes every cached playlist.
func (r *GormPlaylistRepository) DeleteAll(ctx context.Context) error {
	err := r.db.WithContext(ctx).
		Where("1 = 1").
		Delete(&models.CachedPlaylist{}).Error
	if err != nil {
		return fmt.Errorf("deleting all cached playlists: %w", err)
	}
	return nil
}

// Count returns the number of cached playlists.
func (r *GormPlaylistRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CachedPlaylist{}).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting cached playlists: %w", err)
	}
	return count, nil
}
