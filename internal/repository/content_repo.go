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

// GormContentRepository implements ContentRepository using GORM.
type GormContentRepository struct {
	db *database.DB
}

var _ ContentRepository = (*GormContentRepository)(nil)

// NewGormContentRepository creates a new content repository.
func NewGormContentRepository(db *database.DB) *GormContentRepository {
	return &GormContentRepository{db: db}
}

// Upsert stores a content entry, replacing any existing entry with the
// same address.
func (r *GormContentRepository) Upsert(ctx context.Context, entry *models.ContentEntry) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			UpdateAll: true,
		}).
		Create(entry).Error
	if err != nil {
		return fmt.Errorf("upserting content entry: %w", err)
	}
	return nil
}

// FindByAddress returns the entry for a remote address, or nil if none is cached.
func (r *GormContentRepository) FindByAddress(ctx context.Context, address string) (*models.ContentEntry, error) {
	var entry models.ContentEntry
	err := r.db.WithContext(ctx).
		Where("address = ?", address).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding content entry by address: %w", err)
	}
	return &entry, nil
}

// FindOldest returns up to limit entries ordered oldest-first by StoredAt.
func (r *GormContentRepository) FindOldest(ctx context.Context, limit int) ([]*models.ContentEntry, error) {
	var entries []*models.ContentEntry
	err := r.db.WithContext(ctx).
		Order("stored_at ASC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("finding oldest content entries: %w", err)
	}
	return entries, nil
}

// Delete removes an entry by address.
func (r *GormContentRepository) Delete(ctx context.Context, address string) error {
	err := r.db.WithContext(ctx).
		Where("address = ?", address).
		Delete(&models.ContentEntry{}).Error
	if err != nil {
		return fmt.Errorf("deleting content entry: %w", err)
	}
	return nil
}

// DeleteAll removes every content entry.
func (r *GormContentRepository) DeleteAll(ctx context.Context) error {
	err := r.db.WithContext(ctx).
		Where("1 = 1").
		Delete(&models.ContentEntry{}).Error
	if err != nil {
		return fmt.Errorf("deleting all content entries: %w", err)
	}
	return nil
}

// TotalSize returns the sum of SizeBytes across all entries.
func (r *GormContentRepository) TotalSize(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.ContentEntry{}).
		Select("COALESCE(SUM(size_bytes), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("summing content size: %w", err)
	}
	return total, nil
}

// Count returns the number of cached entries.
func (r *GormContentRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ContentEntry{}).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting content entries: %w", err)
	}
	return count, nil
}

// Stats returns aggregate figures over the content store. Oldest/newest are
// nil when the store is empty.
func (r *GormContentRepository) Stats(ctx context.Context) (*models.ContentStats, error) {
	stats := &models.ContentStats{}

	var err error
	if stats.TotalBytes, err = r.TotalSize(ctx); err != nil {
		return nil, err
	}
	if stats.EntryCount, err = r.Count(ctx); err != nil {
		return nil, err
	}

	if stats.EntryCount > 0 {
		var oldest, newest models.ContentEntry
		if err := r.db.WithContext(ctx).Order("stored_at ASC").First(&oldest).Error; err != nil {
			return nil, fmt.Errorf("finding oldest content entry: %w", err)
		}
		if err := r.db.WithContext(ctx).Order("stored_at DESC").First(&newest).Error; err != nil {
			return nil, fmt.Errorf("finding newest content entry: %w", err)
		}
		stats.OldestStored = &oldest.StoredAt
		stats.NewestStored = &newest.StoredAt
	}

	return stats, nil
}
