package player

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/marqueehq/marquee/internal/cache"
	"github.com/marqueehq/marquee/internal/database"
	"github.com/marqueehq/marquee/internal/directory"
	"github.com/marqueehq/marquee/internal/models"
	"github.com/marqueehq/marquee/internal/repository"
	"github.com/marqueehq/marquee/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeDirectory is an in-memory directory.Client.
type fakeDirectory struct {
	mu              sync.Mutex
	screen          *models.Screen
	screenErr       error
	area            *models.Area
	areaErr         error
	playlists       map[string]*models.Playlist
	playlistErr     error
	playlistFetches map[string]int
}

var _ directory.Client = (*fakeDirectory)(nil)

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		playlists:       make(map[string]*models.Playlist),
		playlistFetches: make(map[string]int),
	}
}

func (f *fakeDirectory) GetScreen(ctx context.Context, screenID string) (*models.Screen, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.screenErr != nil {
		return nil, f.screenErr
	}
	if f.screen == nil {
		return nil, models.ErrNotFound
	}
	return f.screen, nil
}

func (f *fakeDirectory) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playlistFetches[playlistID]++
	if f.playlistErr != nil {
		return nil, f.playlistErr
	}
	playlist, ok := f.playlists[playlistID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return playlist, nil
}

func (f *fakeDirectory) GetArea(ctx context.Context, screenID string) (*models.Area, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.areaErr != nil {
		return nil, f.areaErr
	}
	if f.area == nil {
		return nil, models.ErrNotFound
	}
	return f.area, nil
}

func (f *fakeDirectory) UpdateScreenStatus(ctx context.Context, screenID string, update *directory.StatusUpdate) error {
	return nil
}

func (f *fakeDirectory) Subscribe(ctx context.Context, screenID string) (<-chan directory.ChangeEvent, error) {
	events := make(chan directory.ChangeEvent)
	go func() {
		<-ctx.Done()
		close(events)
	}()
	return events, nil
}

func (f *fakeDirectory) fetches(playlistID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playlistFetches[playlistID]
}

type engineFixture struct {
	engine    *Engine
	dir       *fakeDirectory
	playlists *cache.PlaylistCache
	changes   chan ItemChange
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	db := &database.DB{DB: gormDB}
	require.NoError(t, db.Migrate())

	sandbox, err := storage.NewSandbox(t.TempDir())
	require.NoError(t, err)
	objects, err := storage.NewObjectStore(sandbox)
	require.NoError(t, err)

	content, err := cache.NewContentCache(context.Background(), cache.ContentCacheOptions{
		Contents:  repository.NewGormContentRepository(db),
		Playlists: repository.NewGormPlaylistRepository(db),
		Objects:   objects,
		Budget:    1024 * 1024,
	})
	require.NoError(t, err)
	t.Cleanup(content.Close)

	playlists := cache.NewPlaylistCache(repository.NewGormPlaylistRepository(db), content, nil)

	dir := newFakeDirectory()
	changes := make(chan ItemChange, 32)

	engine := New(Options{
		ScreenID:  "screen-1",
		Directory: dir,
		Playlists: playlists,
		Content:   content,
		OnItem: func(change ItemChange) {
			changes <- change
		},
	})
	t.Cleanup(engine.Close)

	return &engineFixture{engine: engine, dir: dir, playlists: playlists, changes: changes}
}

// testPlaylist builds an n-item playlist with instant transitions.
func testPlaylist(id string, n int) *models.Playlist {
	items := make([]models.PlaylistItem, n)
	for i := range items {
		items[i] = models.PlaylistItem{
			ID:       id + "-item-" + string(rune('a'+i)),
			Type:     models.ItemTypeImage,
			Duration: 10,
			Settings: models.ItemSettings{Transition: "none"},
		}
	}
	return &models.Playlist{ID: id, Name: "Playlist " + id, Items: items}
}

func (f *engineFixture) waitForPlaylist(t *testing.T, id string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.engine.CurrentPlaylistID() == id && f.engine.State().State == string(StatePlaying)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStartPlaybackUsesScheduleFirst(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	f.dir.playlists["pl-scheduled"] = testPlaylist("pl-scheduled", 2)
	f.dir.playlists["pl-assigned"] = testPlaylist("pl-assigned", 2)
	f.dir.screen = &models.Screen{
		ID:                "screen-1",
		CurrentPlaylistID: "pl-assigned",
		Schedule: &models.ScreenSchedule{
			Current: &models.ScheduleRule{
				PlaylistID: "pl-scheduled", StartTime: "00:00", EndTime: "23:59",
			},
		},
	}

	f.engine.StartPlayback(ctx)
	f.waitForPlaylist(t, "pl-scheduled")
}

func TestStartPlaybackFallsBackToAssignedThenArea(t *testing.T) {
	t.Run("assigned playlist", func(t *testing.T) {
		f := newEngineFixture(t)
		f.dir.playlists["pl-assigned"] = testPlaylist("pl-assigned", 1)
		f.dir.screen = &models.Screen{ID: "screen-1", CurrentPlaylistID: "pl-assigned"}

		f.engine.StartPlayback(context.Background())
		f.waitForPlaylist(t, "pl-assigned")
	})

	t.Run("area playlist", func(t *testing.T) {
		f := newEngineFixture(t)
		f.dir.playlists["pl-area"] = testPlaylist("pl-area", 1)
		f.dir.screen = &models.Screen{ID: "screen-1"}
		f.dir.area = &models.Area{AreaID: "area-1", CurrentPlaylistID: "pl-area"}

		f.engine.StartPlayback(context.Background())
		f.waitForPlaylist(t, "pl-area")
	})
}

func TestStartPlaybackNoAssignment(t *testing.T) {
	f := newEngineFixture(t)
	f.dir.screen = &models.Screen{ID: "screen-1"}

	f.engine.StartPlayback(context.Background())

	state := f.engine.State()
	assert.Equal(t, string(StateIdle), state.State)
	assert.Equal(t, models.ErrNoPlaylistAssigned.Error(), state.LastError)
	assert.False(t, state.IsPlaying)
}

func TestStartPlaybackOfflineUsesFallback(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.dir.screenErr = errors.New("connection refused")

	// A previously cached playlist survives as fallback content.
	require.NoError(t, f.playlists.Put(ctx, testPlaylist("pl-cached", 2)))

	f.engine.StartPlayback(ctx)
	f.waitForPlaylist(t, "pl-cached")
	assert.False(t, f.engine.State().IsOnline)
}

func TestLoadPlaylistCacheHitPlaysImmediatelyAndRefreshes(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	cached := testPlaylist("pl-1", 2)
	require.NoError(t, f.playlists.Put(ctx, cached))

	// The live copy has an extra item; the refresh should store it.
	f.dir.playlists["pl-1"] = testPlaylist("pl-1", 3)

	f.engine.LoadPlaylist(ctx, "pl-1")
	f.waitForPlaylist(t, "pl-1")

	// Played from cache: two items.
	assert.Equal(t, 2, f.engine.State().TotalItems)

	// Background refresh lands in the cache.
	require.Eventually(t, func() bool {
		refreshed, _, err := f.playlists.Get(ctx, "pl-1")
		return err == nil && refreshed != nil && len(refreshed.Items) == 3
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, f.dir.fetches("pl-1"))
}

func TestLoadPlaylistMissFetchesLive(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	f.dir.playlists["pl-live"] = testPlaylist("pl-live", 2)

	f.engine.LoadPlaylist(ctx, "pl-live")
	f.waitForPlaylist(t, "pl-live")

	// The fetched playlist is cached for next time.
	stored, _, err := f.playlists.Get(ctx, "pl-live")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Len(t, stored.Items, 2)
}

func TestLoadPlaylistFetchFailureFallsBackToNewestCached(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	require.NoError(t, f.playlists.Put(ctx, testPlaylist("pl-other", 2)))
	f.dir.playlistErr = errors.New("network down")

	// The target id is not cached; a different playlist is.
	f.engine.LoadPlaylist(ctx, "pl-target")
	f.waitForPlaylist(t, "pl-other")
}

func TestLoadPlaylistFailureUsesBundledFallback(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.dir.playlistErr = errors.New("network down")

	f.engine.LoadPlaylist(ctx, "pl-target")

	// Nothing cached: the bundled fallback still plays.
	require.Eventually(t, func() bool {
		return f.engine.CurrentPlaylistID() == "fallback"
	}, 5*time.Second, 10*time.Millisecond)
	assert.False(t, f.engine.Exhausted())
}

func TestLoadPlaylistNotFoundStaysOnline(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	require.NoError(t, f.playlists.Put(ctx, testPlaylist("pl-other", 2)))

	// The directory answered; a deleted playlist is not an outage.
	f.engine.LoadPlaylist(ctx, "pl-deleted")
	f.waitForPlaylist(t, "pl-other")
	assert.True(t, f.engine.State().IsOnline)

	t.Run("transport failure still goes offline", func(t *testing.T) {
		f.dir.mu.Lock()
		f.dir.playlistErr = errors.New("connection refused")
		f.dir.mu.Unlock()

		f.engine.LoadPlaylist(ctx, "pl-deleted")
		f.waitForPlaylist(t, "pl-other")
		assert.False(t, f.engine.State().IsOnline)
	})
}

func TestBackgroundRefreshNotFoundStaysOnline(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	// Cached copy plays; the background refresh gets a 404 because the
	// directory no longer knows the playlist.
	require.NoError(t, f.playlists.Put(ctx, testPlaylist("pl-1", 2)))

	f.engine.LoadPlaylist(ctx, "pl-1")
	f.waitForPlaylist(t, "pl-1")

	require.Eventually(t, func() bool {
		return f.engine.State().IsOnline
	}, 5*time.Second, 10*time.Millisecond)
}

func TestGetFallbackPlaylist(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	t.Run("bundled when cache empty", func(t *testing.T) {
		fallback, err := f.engine.GetFallbackPlaylist(ctx)
		require.NoError(t, err)
		assert.Equal(t, "fallback", fallback.ID)
	})

	t.Run("newest cached wins over bundled", func(t *testing.T) {
		require.NoError(t, f.playlists.Put(ctx, testPlaylist("pl-cached", 1)))
		fallback, err := f.engine.GetFallbackPlaylist(ctx)
		require.NoError(t, err)
		assert.Equal(t, "pl-cached", fallback.ID)
	})
}

func TestSkipToNextAdvancesAndWraps(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	f.dir.playlists["pl-1"] = testPlaylist("pl-1", 3)
	f.engine.LoadPlaylist(ctx, "pl-1")
	f.waitForPlaylist(t, "pl-1")
	require.Equal(t, 0, f.engine.State().CurrentItemIndex)

	f.engine.SkipToNext(ctx)
	require.Eventually(t, func() bool {
		s := f.engine.State()
		return s.CurrentItemIndex == 1 && s.State == string(StatePlaying)
	}, 5*time.Second, 10*time.Millisecond)

	f.engine.SkipToNext(ctx)
	require.Eventually(t, func() bool {
		return f.engine.State().CurrentItemIndex == 2
	}, 5*time.Second, 10*time.Millisecond)

	// Wraps to 0, independent of the loop setting.
	f.engine.SkipToNext(ctx)
	require.Eventually(t, func() bool {
		s := f.engine.State()
		return s.CurrentItemIndex == 0 && s.State == string(StatePlaying)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSkipToNextCancelledByLoad(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	slow := testPlaylist("pl-slow", 2)
	// A long transition holds the engine in Transitioning.
	slow.Items[0].Settings = models.ItemSettings{Transition: "fade", TransitionDuration: 30}
	f.dir.playlists["pl-slow"] = slow
	f.dir.playlists["pl-next"] = testPlaylist("pl-next", 1)

	f.engine.LoadPlaylist(ctx, "pl-slow")
	f.waitForPlaylist(t, "pl-slow")

	f.engine.SkipToNext(ctx)
	assert.Equal(t, string(StateTransitioning), f.engine.State().State)

	// A new load cancels the pending transition instead of leaving the
	// engine stuck in Transitioning.
	f.engine.LoadPlaylist(ctx, "pl-next")
	f.waitForPlaylist(t, "pl-next")
	assert.Equal(t, 0, f.engine.State().CurrentItemIndex)
}

func TestReloadPlaylist(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	f.dir.playlists["pl-1"] = testPlaylist("pl-1", 2)
	f.engine.LoadPlaylist(ctx, "pl-1")
	f.waitForPlaylist(t, "pl-1")

	// Directory now serves a longer version; reload picks it up via refresh.
	f.dir.mu.Lock()
	f.dir.playlists["pl-1"] = testPlaylist("pl-1", 4)
	f.dir.mu.Unlock()

	f.engine.ReloadPlaylist(ctx)
	f.waitForPlaylist(t, "pl-1")

	require.Eventually(t, func() bool {
		refreshed, _, err := f.playlists.Get(ctx, "pl-1")
		return err == nil && refreshed != nil && len(refreshed.Items) == 4
	}, 5*time.Second, 10*time.Millisecond)

	t.Run("with nothing loaded runs startup", func(t *testing.T) {
		fresh := newEngineFixture(t)
		fresh.dir.playlists["pl-start"] = testPlaylist("pl-start", 1)
		fresh.dir.screen = &models.Screen{ID: "screen-1", CurrentPlaylistID: "pl-start"}

		fresh.engine.ReloadPlaylist(context.Background())
		fresh.waitForPlaylist(t, "pl-start")
	})
}

func TestPlayCurrentItemEmitsCurrentAndNext(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	f.dir.playlists["pl-1"] = testPlaylist("pl-1", 3)
	f.engine.LoadPlaylist(ctx, "pl-1")
	f.waitForPlaylist(t, "pl-1")

	change := <-f.changes
	assert.Equal(t, "pl-1", change.PlaylistID)
	assert.Equal(t, 0, change.Index)
	assert.Equal(t, "pl-1-item-a", change.Current.ID)
	assert.Equal(t, "pl-1-item-b", change.Next.ID)
}

func TestEmptyPlaylistFallsBack(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	f.dir.playlists["pl-empty"] = &models.Playlist{ID: "pl-empty", Name: "Empty"}

	f.engine.LoadPlaylist(ctx, "pl-empty")
	require.Eventually(t, func() bool {
		return f.engine.CurrentPlaylistID() == "fallback"
	}, 5*time.Second, 10*time.Millisecond)
}
