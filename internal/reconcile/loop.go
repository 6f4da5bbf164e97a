// Package reconcile drives the schedule resolver against the latest known
// rules and reloads the player when the derived playlist diverges from the
// playing one. Polling is the correctness backstop for missed change
// notifications; boundary-targeted checks make schedule flips land on time.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/marqueehq/marquee/internal/cache"
	"github.com/marqueehq/marquee/internal/directory"
	"github.com/marqueehq/marquee/internal/models"
	"github.com/marqueehq/marquee/internal/schedule"
	"github.com/robfig/cron/v3"
)

// DefaultInterval is the periodic check cadence while idle.
const DefaultInterval = 20 * time.Second

// boundaryMargin is how far before and after each schedule boundary a
// targeted one-shot check fires, in addition to the check exactly at it.
const boundaryMargin = 5 * time.Second

// Player is the slice of the playback engine the loop drives.
type Player interface {
	StartPlayback(ctx context.Context)
	LoadPlaylist(ctx context.Context, playlistID string)
	ReloadPlaylist(ctx context.Context)
	CurrentPlaylistID() string
	SetOnline(online bool)
}

// Loop reconciles schedule state on a fixed interval, on change
// notifications, and at schedule boundaries.
type Loop struct {
	screenID  string
	directory directory.Client
	player    Player
	playlists *cache.PlaylistCache
	logger    *slog.Logger
	interval  time.Duration

	cron    *cron.Cron
	cronIDs []cron.EntryID

	mu           sync.Mutex
	rules        []models.ScheduleRule
	lastSchedule *models.ScreenSchedule
	assignedID   string

	trigger chan struct{}
	stop    context.CancelFunc
	done    sync.WaitGroup
}

// Options configures a Loop.
type Options struct {
	ScreenID  string
	Directory directory.Client
	Player    Player
	Playlists *cache.PlaylistCache
	Logger    *slog.Logger
	Interval  time.Duration
}

// New creates a reconciliation loop.
func New(opts Options) *Loop {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}

	return &Loop{
		screenID:  opts.ScreenID,
		directory: opts.Directory,
		player:    opts.Player,
		playlists: opts.Playlists,
		logger:    opts.Logger,
		interval:  opts.Interval,
		cron:      cron.New(cron.WithSeconds()),
		trigger:   make(chan struct{}, 1),
	}
}

// Start begins the periodic loop, the change subscription, and the boundary
// cron. It returns immediately; Stop tears everything down.
func (l *Loop) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	l.stop = cancel

	l.refreshScreen(runCtx)
	l.rebuildBoundaries()

	// Boundary sets recur daily on wall-clock local time; rebuild them once
	// a day in case rules carry date-dependent semantics upstream.
	if _, err := l.cron.AddFunc("0 0 0 * * *", l.rebuildBoundaries); err != nil {
		return fmt.Errorf("scheduling daily boundary rebuild: %w", err)
	}
	l.cron.Start()

	events, err := l.directory.Subscribe(runCtx, l.screenID)
	if err != nil {
		return fmt.Errorf("subscribing to change events: %w", err)
	}

	l.done.Add(1)
	go l.run(runCtx, events)

	l.logger.Info("reconciliation loop started",
		slog.String("screen_id", l.screenID),
		slog.Duration("interval", l.interval),
	)
	return nil
}

// Stop halts the loop and waits for it to finish.
func (l *Loop) Stop() {
	if l.stop != nil {
		l.stop()
	}
	cronCtx := l.cron.Stop()
	<-cronCtx.Done()
	l.done.Wait()
}

// Trigger requests an immediate reconciliation check. Coalesces when one is
// already pending.
func (l *Loop) Trigger() {
	select {
	case l.trigger <- struct{}{}:
	default:
	}
}

func (l *Loop) run(ctx context.Context, events <-chan directory.ChangeEvent) {
	defer l.done.Done()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Check(ctx)
		case <-l.trigger:
			l.Check(ctx)
		case event, ok := <-events:
			if !ok {
				return
			}
			l.handleEvent(ctx, event)
		}
	}
}

// Check runs one reconciliation pass. Errors are logged and treated as no
// change detected; the loop must never crash.
func (l *Loop) Check(ctx context.Context) {
	l.refreshScreen(ctx)

	l.mu.Lock()
	rules := l.rules
	fallbackID := l.assignedID
	l.mu.Unlock()

	resolved := schedule.Resolve(time.Now(), rules, fallbackID)
	if resolved == "" {
		return
	}

	current := l.player.CurrentPlaylistID()
	if resolved == current {
		// Idempotent: matching state must not cause a reload or flicker.
		return
	}

	l.logger.Info("schedule resolution diverged, reloading",
		slog.String("current_playlist_id", current),
		slog.String("resolved_playlist_id", resolved),
	)
	l.player.LoadPlaylist(ctx, resolved)
}

// refreshScreen pulls the latest screen document and updates rules, the
// assigned fallback, and boundary crons when the schedule changed shape.
func (l *Loop) refreshScreen(ctx context.Context) {
	screen, err := l.directory.GetScreen(ctx, l.screenID)
	if err != nil {
		l.player.SetOnline(false)
		l.logger.Debug("screen refresh failed, keeping last known rules",
			slog.String("error", err.Error()),
		)
		return
	}
	l.player.SetOnline(true)

	l.mu.Lock()
	scheduleChanged := !reflect.DeepEqual(l.lastSchedule, screen.Schedule)
	l.lastSchedule = screen.Schedule
	l.rules = screen.Schedule.Rules()
	l.assignedID = screen.CurrentPlaylistID
	l.mu.Unlock()

	if scheduleChanged {
		l.rebuildBoundaries()
	}
}

// handleEvent reacts to a change notification from the directory.
func (l *Loop) handleEvent(ctx context.Context, event directory.ChangeEvent) {
	l.logger.Debug("change event received",
		slog.String("type", string(event.Type)),
		slog.String("playlist_id", event.PlaylistID),
	)

	switch event.Type {
	case directory.EventScreenUpdated, directory.EventScheduleUpdated:
		l.mu.Lock()
		previousAssigned := l.assignedID
		l.mu.Unlock()

		l.refreshScreen(ctx)

		l.mu.Lock()
		assigned := l.assignedID
		l.mu.Unlock()

		if assigned != "" && assigned != previousAssigned && assigned != l.player.CurrentPlaylistID() {
			l.player.LoadPlaylist(ctx, assigned)
			return
		}
		l.Check(ctx)

	case directory.EventPlaylistUpdated:
		if event.PlaylistID != "" && event.PlaylistID == l.player.CurrentPlaylistID() {
			// Forced refresh of the playing playlist, not a silent one.
			l.player.LoadPlaylist(ctx, event.PlaylistID)
		}

	case directory.EventPlaylistDeleted:
		if event.PlaylistID == "" {
			return
		}
		if l.playlists != nil {
			if err := l.playlists.Delete(ctx, event.PlaylistID); err != nil {
				l.logger.Warn("dropping deleted playlist from cache failed",
					slog.String("playlist_id", event.PlaylistID),
					slog.String("error", err.Error()),
				)
			}
		}
		if event.PlaylistID == l.player.CurrentPlaylistID() {
			l.player.StartPlayback(ctx)
		}
	}
}

// rebuildBoundaries replaces the targeted boundary checks with entries for
// the current rule set: one 5s before, one exactly at, and one 5s after
// every distinct start or end time.
func (l *Loop) rebuildBoundaries() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, id := range l.cronIDs {
		l.cron.Remove(id)
	}
	l.cronIDs = l.cronIDs[:0]

	boundaries := schedule.Boundaries(l.rules)
	for _, boundary := range boundaries {
		for _, spec := range boundarySpecs(boundary) {
			id, err := l.cron.AddFunc(spec, l.Trigger)
			if err != nil {
				l.logger.Warn("invalid boundary cron spec",
					slog.String("spec", spec),
					slog.String("error", err.Error()),
				)
				continue
			}
			l.cronIDs = append(l.cronIDs, id)
		}
	}

	l.logger.Debug("schedule boundaries rebuilt",
		slog.Int("boundaries", len(boundaries)),
		slog.Int("cron_entries", len(l.cronIDs)),
	)
}

// boundarySpecs returns seconds-precision cron specs for 5s before, exactly
// at, and 5s after a "HH:MM" boundary, wrapping across midnight.
func boundarySpecs(boundary string) []string {
	var hh, mm int
	if _, err := fmt.Sscanf(boundary, "%d:%d", &hh, &mm); err != nil {
		return nil
	}

	at := time.Date(2000, 1, 1, hh, mm, 0, 0, time.UTC)
	before := at.Add(-boundaryMargin)
	after := at.Add(boundaryMargin)

	spec := func(t time.Time) string {
		return fmt.Sprintf("%d %d %d * * *", t.Second(), t.Minute(), t.Hour())
	}
	return []string{spec(before), spec(at), spec(after)}
}
