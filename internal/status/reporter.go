// Package status reports periodic heartbeats for a screen to the directory
// so operators can see which players are alive and what they are showing.
package status

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/marqueehq/marquee/internal/directory"
	"github.com/marqueehq/marquee/internal/models"
	"github.com/marqueehq/marquee/internal/version"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// DefaultInterval is the heartbeat cadence.
const DefaultInterval = time.Minute

// StateFunc returns the current player state snapshot.
type StateFunc func() models.PlayerState

// Reporter periodically pushes a status heartbeat to the directory.
// Delivery failures are logged and retried on the next tick.
type Reporter struct {
	screenID   string
	screenName string
	directory  directory.Client
	state      StateFunc
	logger     *slog.Logger
	interval   time.Duration

	stop context.CancelFunc
	done sync.WaitGroup
}

// Options configures a Reporter.
type Options struct {
	ScreenID   string
	ScreenName string
	Directory  directory.Client
	State      StateFunc
	Logger     *slog.Logger
	Interval   time.Duration
}

// New creates a heartbeat reporter.
func New(opts Options) *Reporter {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}

	return &Reporter{
		screenID:   opts.ScreenID,
		screenName: opts.ScreenName,
		directory:  opts.Directory,
		state:      opts.State,
		logger:     opts.Logger,
		interval:   opts.Interval,
	}
}

// Start begins heartbeating. The first beat is sent immediately.
func (r *Reporter) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	r.stop = cancel

	r.done.Add(1)
	go func() {
		defer r.done.Done()

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.beat(runCtx)
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				r.beat(runCtx)
			}
		}
	}()
}

// Stop halts heartbeating and waits for the loop to finish.
func (r *Reporter) Stop() {
	if r.stop != nil {
		r.stop()
	}
	r.done.Wait()
}

// beat sends one heartbeat.
func (r *Reporter) beat(ctx context.Context) {
	update := r.buildUpdate()
	if err := r.directory.UpdateScreenStatus(ctx, r.screenID, update); err != nil {
		r.logger.Warn("status heartbeat failed",
			slog.String("screen_id", r.screenID),
			slog.String("error", err.Error()),
		)
		return
	}
	r.logger.Debug("status heartbeat sent",
		slog.String("screen_id", r.screenID),
		slog.String("status", update.Status),
	)
}

// buildUpdate assembles the heartbeat payload from player state and host
// metrics. Metric collection failures leave the field zero rather than
// blocking the beat.
func (r *Reporter) buildUpdate() *directory.StatusUpdate {
	state := r.state()

	status := "online"
	if !state.IsOnline {
		status = "offline"
	}

	update := &directory.StatusUpdate{
		Status:            status,
		Name:              r.screenName,
		CurrentPlaylistID: state.CurrentPlaylistID,
		CurrentItemIndex:  state.CurrentItemIndex,
		Version:           version.GetInfo().Version,
	}

	if uptime, err := host.Uptime(); err == nil {
		update.UptimeSeconds = uptime
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		update.MemoryUsedPercent = vm.UsedPercent
	}
	if avg, err := load.Avg(); err == nil {
		update.LoadAverage = avg.Load1
	}

	return update
}
