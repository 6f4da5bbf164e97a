// Package player implements the playback engine: it owns the current
// playlist and item position, drives advancement and transitions, and picks
// fallback content when live and cached data are both missing.
//
// All state mutations are serialized through the engine's mutex; background
// fetches post their results back through generation-checked methods so a
// slow, superseded load can never overwrite a newer one.
package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/marqueehq/marquee/internal/assets"
	"github.com/marqueehq/marquee/internal/cache"
	"github.com/marqueehq/marquee/internal/directory"
	"github.com/marqueehq/marquee/internal/models"
	"github.com/marqueehq/marquee/internal/schedule"
)

// State is the playback engine's primary state.
type State string

// Engine states. Error is an overlay carried in LastError, not a state.
const (
	StateIdle          State = "idle"
	StateLoading       State = "loading"
	StatePlaying       State = "playing"
	StateTransitioning State = "transitioning"
)

// ItemChange announces the current and next item to the presentation layer.
// Addresses are already resolved through the content cache.
type ItemChange struct {
	PlaylistID string
	Index      int
	Current    models.PlaylistItem
	Next       models.PlaylistItem
	CurrentSrc string
	NextSrc    string
}

// Engine drives playback for a single screen.
type Engine struct {
	screenID  string
	directory directory.Client
	playlists *cache.PlaylistCache
	content   *cache.ContentCache
	logger    *slog.Logger

	mu         sync.Mutex
	state      State
	online     bool
	exhausted  bool
	lastError  string
	current    *models.Playlist
	index      int
	generation uint64
	trTimer    *time.Timer
	updatedAt  time.Time

	// onItem is invoked outside the mutex whenever the current item changes.
	onItem func(ItemChange)

	bg     sync.WaitGroup
	bgCtx  context.Context
	bgStop context.CancelFunc
}

// Options configures an Engine.
type Options struct {
	ScreenID  string
	Directory directory.Client
	Playlists *cache.PlaylistCache
	Content   *cache.ContentCache
	Logger    *slog.Logger
	OnItem    func(ItemChange)
}

// New creates a playback engine in the Idle state.
func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	bgCtx, bgStop := context.WithCancel(context.Background())

	return &Engine{
		screenID:  opts.ScreenID,
		directory: opts.Directory,
		playlists: opts.Playlists,
		content:   opts.Content,
		logger:    opts.Logger,
		state:     StateIdle,
		updatedAt: time.Now(),
		onItem:    opts.OnItem,
		bgCtx:     bgCtx,
		bgStop:    bgStop,
	}
}

// StartPlayback determines the initial playlist by trying, in order, the
// schedule resolver over the screen's rules, the screen's directly assigned
// playlist, and the owning area's playlist. With no assignment anywhere the
// engine stays Idle with an error overlay; when the directory is
// unreachable it degrades to fallback content instead.
func (e *Engine) StartPlayback(ctx context.Context) {
	id, err := e.initialPlaylistID(ctx)
	if err != nil {
		e.logger.Warn("directory unavailable at startup, using fallback content",
			slog.String("error", err.Error()),
		)
		e.setOnline(false)
		gen := e.beginLoad()
		e.loadFallback(ctx, gen)
		return
	}
	e.setOnline(true)

	if id == "" {
		e.mu.Lock()
		e.lastError = models.ErrNoPlaylistAssigned.Error()
		e.state = StateIdle
		e.updatedAt = time.Now()
		e.mu.Unlock()
		e.logger.Warn("no playlist assigned to screen", slog.String("screen_id", e.screenID))
		return
	}

	e.LoadPlaylist(ctx, id)
}

// initialPlaylistID walks the assignment chain. An empty id with nil error
// means the screen genuinely has nothing assigned.
func (e *Engine) initialPlaylistID(ctx context.Context) (string, error) {
	screen, err := e.directory.GetScreen(ctx, e.screenID)
	if err != nil {
		return "", fmt.Errorf("getting screen: %w", err)
	}

	if id := resolveScheduleNow(screen); id != "" {
		return id, nil
	}
	if screen.CurrentPlaylistID != "" {
		return screen.CurrentPlaylistID, nil
	}

	area, err := e.directory.GetArea(ctx, e.screenID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("getting area: %w", err)
	}
	return area.CurrentPlaylistID, nil
}

// LoadPlaylist loads a playlist cache-first: a cache hit plays immediately
// while the live copy refreshes in the background; a miss fetches live and
// falls back to cache, then to fallback content.
func (e *Engine) LoadPlaylist(ctx context.Context, playlistID string) {
	if playlistID == "" {
		return
	}

	gen := e.beginLoad()

	e.logger.Info("loading playlist",
		slog.String("playlist_id", playlistID),
		slog.Uint64("generation", gen),
	)

	cached, _, err := e.playlists.Get(ctx, playlistID)
	if err != nil {
		e.logger.Warn("playlist cache read failed",
			slog.String("playlist_id", playlistID),
			slog.String("error", err.Error()),
		)
	}

	if cached != nil {
		// Optimistic offline-first: play the cached copy now, refresh behind it.
		e.applyPlaylist(ctx, gen, cached)
		e.refreshInBackground(gen, playlistID)
		return
	}

	live, err := e.directory.GetPlaylist(ctx, playlistID)
	if err != nil {
		// A 404 is a directory answer, not an outage: the playlist was
		// deleted or reassigned. Only transport-level failures count as
		// offline.
		e.setOnline(errors.Is(err, models.ErrNotFound))
		e.logger.Warn("live playlist fetch failed",
			slog.String("playlist_id", playlistID),
			slog.String("error", err.Error()),
		)
		e.loadFallback(ctx, gen)
		return
	}
	e.setOnline(true)

	if err := e.playlists.Put(ctx, live); err != nil {
		e.logger.Warn("caching fetched playlist failed",
			slog.String("playlist_id", playlistID),
			slog.String("error", err.Error()),
		)
	}
	e.applyPlaylist(ctx, gen, live)
}

// refreshInBackground fetches the live playlist and refreshes the cache.
// Failures are logged, never surfaced: playback is already underway. The
// generation guard keeps a stale refresh from overwriting the cache after a
// newer load has started.
func (e *Engine) refreshInBackground(gen uint64, playlistID string) {
	e.bg.Add(1)
	go func() {
		defer e.bg.Done()

		live, err := e.directory.GetPlaylist(e.bgCtx, playlistID)
		if err != nil {
			e.setOnline(errors.Is(err, models.ErrNotFound))
			e.logger.Debug("background playlist refresh failed",
				slog.String("playlist_id", playlistID),
				slog.String("error", err.Error()),
			)
			return
		}
		e.setOnline(true)

		if !e.generationCurrent(gen) {
			e.logger.Debug("discarding stale playlist refresh",
				slog.String("playlist_id", playlistID),
				slog.Uint64("generation", gen),
			)
			return
		}

		if err := e.playlists.Put(e.bgCtx, live); err != nil {
			e.logger.Warn("background cache refresh failed",
				slog.String("playlist_id", playlistID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// applyPlaylist installs a loaded playlist as current and starts playing at
// index 0. A stale generation is a no-op. Playlists with no items fall
// through to fallback selection.
func (e *Engine) applyPlaylist(ctx context.Context, gen uint64, playlist *models.Playlist) {
	if len(playlist.Items) == 0 {
		e.logger.Warn("playlist has no items", slog.String("playlist_id", playlist.ID))
		e.loadFallback(ctx, gen)
		return
	}

	e.mu.Lock()
	if gen != e.generation {
		e.mu.Unlock()
		return
	}
	e.current = playlist
	e.index = 0
	e.state = StatePlaying
	e.exhausted = false
	e.lastError = ""
	e.updatedAt = time.Now()
	e.mu.Unlock()

	e.logger.Info("playlist active",
		slog.String("playlist_id", playlist.ID),
		slog.String("name", playlist.Name),
		slog.Int("items", len(playlist.Items)),
	)

	for _, item := range playlist.Items {
		e.content.Preload(item.Content.URL)
		e.content.Preload(item.Content.Thumbnail)
	}

	e.PlayCurrentItem(ctx)
}

// PlayCurrentItem emits the item at the current index together with the
// next item for preloading, and clears any transitioning flag. Sources
// resolve from cached bytes only; a miss emits the remote address and lets
// the download land in the background, so item changes never stall on the
// network.
func (e *Engine) PlayCurrentItem(ctx context.Context) {
	e.mu.Lock()
	if e.current == nil || len(e.current.Items) == 0 {
		e.mu.Unlock()
		return
	}
	if e.state == StateTransitioning {
		e.state = StatePlaying
	}
	e.updatedAt = time.Now()

	playlist := e.current
	index := e.index
	handler := e.onItem
	e.mu.Unlock()

	current := playlist.Items[index]
	next := playlist.Items[(index+1)%len(playlist.Items)]

	change := ItemChange{
		PlaylistID: playlist.ID,
		Index:      index,
		Current:    current,
		Next:       next,
		CurrentSrc: e.content.ResolveCached(ctx, current.Content.URL),
		NextSrc:    e.content.ResolveCached(ctx, next.Content.URL),
	}

	e.logger.Debug("playing item",
		slog.String("playlist_id", playlist.ID),
		slog.Int("index", index),
		slog.String("item_id", current.ID),
		slog.String("type", string(current.Type)),
	)

	if handler != nil {
		handler(change)
	}
}

// SkipToNext enters Transitioning, waits the current item's transition
// delay, then advances modulo the playlist length. Playlists loop
// unconditionally at the engine level. A newer load or another skip cancels
// the pending timer.
func (e *Engine) SkipToNext(ctx context.Context) {
	e.mu.Lock()
	if e.current == nil || len(e.current.Items) == 0 {
		e.mu.Unlock()
		return
	}

	e.cancelTransitionLocked()
	e.state = StateTransitioning
	e.updatedAt = time.Now()

	gen := e.generation
	delay := time.Duration(e.current.Items[e.index].TransitionDelaySeconds()) * time.Second

	e.trTimer = time.AfterFunc(delay, func() {
		e.advance(ctx, gen)
	})
	e.mu.Unlock()
}

// advance completes a transition started by SkipToNext.
func (e *Engine) advance(ctx context.Context, gen uint64) {
	e.mu.Lock()
	if gen != e.generation || e.current == nil || e.state != StateTransitioning {
		e.mu.Unlock()
		return
	}
	e.index = (e.index + 1) % len(e.current.Items)
	e.state = StatePlaying
	e.updatedAt = time.Now()
	e.mu.Unlock()

	e.PlayCurrentItem(ctx)
}

// ReloadPlaylist re-loads the currently loaded playlist, or runs the full
// startup chain when nothing is loaded.
func (e *Engine) ReloadPlaylist(ctx context.Context) {
	e.mu.Lock()
	var id string
	if e.current != nil {
		id = e.current.ID
	}
	e.mu.Unlock()

	if id == "" {
		e.StartPlayback(ctx)
		return
	}
	e.LoadPlaylist(ctx, id)
}

// loadFallback walks the fallback chain: the bundled playlist, then the
// newest cached playlist, then a terminal exhausted error that waits for an
// external trigger.
func (e *Engine) loadFallback(ctx context.Context, gen uint64) {
	fallback, err := e.GetFallbackPlaylist(ctx)
	if err == nil {
		e.logger.Info("falling back", slog.String("playlist_id", fallback.ID))
		e.applyPlaylist(ctx, gen, fallback)
		return
	}

	e.mu.Lock()
	if gen == e.generation {
		e.state = StateIdle
		e.current = nil
		e.exhausted = true
		e.lastError = models.ErrExhausted.Error()
		e.updatedAt = time.Now()
	}
	e.mu.Unlock()
	e.logger.Error("all fallback tiers exhausted, waiting for external trigger")
}

// GetFallbackPlaylist returns what the fallback chain would currently pick:
// the newest cached playlist when any real content survives locally, the
// bundled placeholder otherwise, and models.ErrExhausted when every tier is
// empty.
func (e *Engine) GetFallbackPlaylist(ctx context.Context) (*models.Playlist, error) {
	if newest, err := e.playlists.GetNewest(ctx); err == nil && newest != nil && len(newest.Items) > 0 {
		return newest, nil
	}
	if bundled, err := assets.FallbackPlaylist(); err == nil && len(bundled.Items) > 0 {
		return bundled, nil
	}
	return nil, models.ErrExhausted
}

// CurrentPlaylistID returns the id of the loaded playlist, or "".
func (e *Engine) CurrentPlaylistID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return ""
	}
	return e.current.ID
}

// Exhausted reports whether the engine is in the terminal no-content state.
func (e *Engine) Exhausted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exhausted
}

// State returns a full snapshot of the player state.
func (e *Engine) State() models.PlayerState {
	e.mu.Lock()
	defer e.mu.Unlock()

	state := models.PlayerState{
		IsPlaying:        e.state == StatePlaying || e.state == StateTransitioning,
		IsOnline:         e.online,
		State:            string(e.state),
		CurrentItemIndex: e.index,
		LastError:        e.lastError,
		LastUpdated:      e.updatedAt,
	}
	if e.current != nil {
		state.CurrentPlaylistID = e.current.ID
		state.CurrentPlaylistName = e.current.Name
		state.TotalItems = len(e.current.Items)
	}
	return state
}

// SetOnline records directory reachability for status reporting.
func (e *Engine) SetOnline(online bool) {
	e.setOnline(online)
}

func (e *Engine) setOnline(online bool) {
	e.mu.Lock()
	if e.online != online {
		e.online = online
		e.updatedAt = time.Now()
	}
	e.mu.Unlock()
}

// beginLoad starts a new load generation, cancelling any pending transition.
func (e *Engine) beginLoad() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelTransitionLocked()
	e.generation++
	e.state = StateLoading
	e.updatedAt = time.Now()
	return e.generation
}

func (e *Engine) generationCurrent(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return gen == e.generation
}

func (e *Engine) cancelTransitionLocked() {
	if e.trTimer != nil {
		e.trTimer.Stop()
		e.trTimer = nil
	}
}

// Close cancels pending timers and background fetches and waits for them.
func (e *Engine) Close() {
	e.mu.Lock()
	e.cancelTransitionLocked()
	e.generation++ // invalidate anything still in flight
	e.mu.Unlock()

	e.bgStop()
	e.bg.Wait()
}

// resolveScheduleNow evaluates the screen's schedule rules at the current
// instant without a fallback.
func resolveScheduleNow(screen *models.Screen) string {
	if screen == nil || screen.Schedule == nil {
		return ""
	}
	return schedule.Resolve(time.Now(), screen.Schedule.Rules(), "")
}
