package repository

import (
	"context"
	"testing"
	"time"

	"github.com/marqueehq/marquee/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cachedPlaylist(id, name string, cachedAt time.Time) *models.CachedPlaylist {
	return &models.CachedPlaylist{
		PlaylistID: id,
		Name:       name,
		Document:   []byte(`{"id":"` + id + `"}`),
		CachedAt:   cachedAt,
	}
}

func TestPlaylistRepo_UpsertAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormPlaylistRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, cachedPlaylist("pl-1", "Lobby Loop", time.Now().UTC())))

	t.Run("found", func(t *testing.T) {
		found, err := repo.FindByPlaylistID(ctx, "pl-1")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "Lobby Loop", found.Name)
		assert.JSONEq(t, `{"id":"pl-1"}`, string(found.Document))
	})

	t.Run("not found", func(t *testing.T) {
		found, err := repo.FindByPlaylistID(ctx, "pl-missing")
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("upsert replaces by playlist id", func(t *testing.T) {
		require.NoError(t, repo.Upsert(ctx, cachedPlaylist("pl-1", "Lobby Loop v2", time.Now().UTC())))

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		found, err := repo.FindByPlaylistID(ctx, "pl-1")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "Lobby Loop v2", found.Name)
	})
}

func TestPlaylistRepo_FindNewest(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormPlaylistRepository(db)
	ctx := context.Background()

	t.Run("empty cache", func(t *testing.T) {
		newest, err := repo.FindNewest(ctx)
		require.NoError(t, err)
		assert.Nil(t, newest)
	})

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Upsert(ctx, cachedPlaylist("pl-old", "Old", base)))
	require.NoError(t, repo.Upsert(ctx, cachedPlaylist("pl-new", "New", base.Add(time.Hour))))

	newest, err := repo.FindNewest(ctx)
	require.NoError(t, err)
	require.NotNil(t, newest)
	assert.Equal(t, "pl-new", newest.PlaylistID)
}

func TestPlaylistRepo_FindAll(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormPlaylistRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Upsert(ctx, cachedPlaylist("pl-a", "A", base)))
	require.NoError(t, repo.Upsert(ctx, cachedPlaylist("pl-b", "B", base.Add(time.Hour))))

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "pl-b", all[0].PlaylistID)
	assert.Equal(t, "pl-a", all[1].PlaylistID)
}

func TestPlaylistRepo_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormPlaylistRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, cachedPlaylist("pl-1", "A", time.Now().UTC())))
	require.NoError(t, repo.Delete(ctx, "pl-1"))

	found, err := repo.FindByPlaylistID(ctx, "pl-1")
	require.NoError(t, err)
	assert.Nil(t, found)

	require.NoError(t, repo.Delete(ctx, "pl-missing"))
}

func TestPlaylistRepo_DeleteAll(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormPlaylistRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, cachedPlaylist("pl-1", "A", time.Now().UTC())))
	require.NoError(t, repo.Upsert(ctx, cachedPlaylist("pl-2", "B", time.Now().UTC())))

	require.NoError(t, repo.DeleteAll(ctx))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
