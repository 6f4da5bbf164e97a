// Package cache implements marquee's offline-first caches: downloaded media
// bytes keyed by remote address, and last-known-good playlist documents.
// Every failure path degrades to the original remote address so a cache
// problem can never abort playback.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/marqueehq/marquee/internal/httpclient"
	"github.com/marqueehq/marquee/internal/models"
	"github.com/marqueehq/marquee/internal/repository"
	"github.com/marqueehq/marquee/internal/storage"
)

// evictWatermark is the fraction of the byte budget eviction shrinks to.
const evictWatermark = 0.7

// evictBatchSize is how many oldest entries are scanned per eviction query.
const evictBatchSize = 32

// ContentCache durably stores downloaded content bytes and serves them as
// local file handles. The bytes live in the database; handle files are
// disposable and recreated from stored bytes on demand.
type ContentCache struct {
	contents  repository.ContentRepository
	playlists repository.PlaylistRepository
	objects   *storage.ObjectStore
	http      *httpclient.Client
	logger    *slog.Logger
	budget    int64

	// mu guards totalBytes and inflight. totalBytes is a running counter
	// kept consistent with store mutations; Stats recomputes from the store.
	mu         sync.Mutex
	totalBytes int64
	inflight   map[string]*inflightDownload

	// preloads tracks fire-and-forget downloads so Close can drain them.
	preloads    sync.WaitGroup
	preloadCtx  context.Context
	preloadStop context.CancelFunc
}

// inflightDownload deduplicates concurrent downloads of the same address.
type inflightDownload struct {
	done   chan struct{}
	handle string
	err    error
}

// ContentCacheOptions configures a ContentCache.
type ContentCacheOptions struct {
	Contents  repository.ContentRepository
	Playlists repository.PlaylistRepository
	Objects   *storage.ObjectStore
	HTTP      *httpclient.Client
	Logger    *slog.Logger
	Budget    int64
}

// NewContentCache creates a content cache and primes the running size
// counter from the durable store.
func NewContentCache(ctx context.Context, opts ContentCacheOptions) (*ContentCache, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.HTTP == nil {
		opts.HTTP = httpclient.NewWithDefaults()
	}

	total, err := opts.Contents.TotalSize(ctx)
	if err != nil {
		return nil, fmt.Errorf("priming cache size counter: %w", err)
	}

	preloadCtx, preloadStop := context.WithCancel(context.Background())

	return &ContentCache{
		contents:    opts.Contents,
		playlists:   opts.Playlists,
		objects:     opts.Objects,
		http:        opts.HTTP,
		logger:      opts.Logger,
		budget:      opts.Budget,
		totalBytes:  total,
		inflight:    make(map[string]*inflightDownload),
		preloadCtx:  preloadCtx,
		preloadStop: preloadStop,
	}, nil
}

// validAddress reports whether address is a fetchable absolute URL.
func validAddress(address string) bool {
	if address == "" {
		return false
	}
	u, err := url.Parse(address)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Resolve maps a remote address to a playable local handle. Empty or
// non-fetchable addresses pass through unchanged. Cached bytes are served
// from the store; a miss triggers a download. Any failure returns the
// original address so the renderer can stream it directly.
func (c *ContentCache) Resolve(ctx context.Context, address string) string {
	if !validAddress(address) {
		return address
	}

	entry, err := c.contents.FindByAddress(ctx, address)
	if err != nil {
		c.logger.Warn("content store read failed, passing address through",
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
		return address
	}

	if entry != nil {
		handle, err := c.objects.Materialize(address, entry.Data)
		if err != nil {
			c.logger.Warn("handle materialization failed, passing address through",
				slog.String("address", address),
				slog.String("error", err.Error()),
			)
			return address
		}
		return handle
	}

	handle, err := c.download(ctx, address)
	if err != nil {
		c.logger.Warn("content download failed, passing address through",
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
		return address
	}
	return handle
}

// ResolveCached is Resolve restricted to already cached bytes. A miss kicks
// off a background download and returns the original address immediately, so
// callers on latency-sensitive paths never wait on the network; the handle is
// picked up on the next resolve once the download lands.
func (c *ContentCache) ResolveCached(ctx context.Context, address string) string {
	if !validAddress(address) {
		return address
	}

	entry, err := c.contents.FindByAddress(ctx, address)
	if err != nil {
		c.logger.Warn("content store read failed, passing address through",
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
		return address
	}
	if entry == nil {
		c.Preload(address)
		return address
	}

	handle, err := c.objects.Materialize(address, entry.Data)
	if err != nil {
		c.logger.Warn("handle materialization failed, passing address through",
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
		return address
	}
	return handle
}

// download fetches the bytes for an address, stores them durably, and
// returns a local handle. Concurrent callers for the same address share one
// fetch. The full body is read before anything is stored, so the cache
// never holds partial content.
func (c *ContentCache) download(ctx context.Context, address string) (string, error) {
	c.mu.Lock()
	if existing, ok := c.inflight[address]; ok {
		c.mu.Unlock()
		select {
		case <-existing.done:
			return existing.handle, existing.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	call := &inflightDownload{done: make(chan struct{})}
	c.inflight[address] = call
	c.mu.Unlock()

	call.handle, call.err = c.fetchAndStore(ctx, address)

	c.mu.Lock()
	delete(c.inflight, address)
	c.mu.Unlock()
	close(call.done)

	return call.handle, call.err
}

func (c *ContentCache) fetchAndStore(ctx context.Context, address string) (string, error) {
	body, contentType, err := c.http.GetBody(ctx, address)
	if err != nil {
		return "", fmt.Errorf("fetching content: %w", err)
	}

	entry := &models.ContentEntry{
		Address:   address,
		Data:      body,
		SizeBytes: int64(len(body)),
		MimeType:  contentType,
		StoredAt:  time.Now().UTC(),
	}

	// Counter and store must move together: replace-by-address means the
	// old entry's size leaves the total as the new one enters.
	c.mu.Lock()
	previous, err := c.contents.FindByAddress(ctx, address)
	if err != nil {
		c.mu.Unlock()
		return "", fmt.Errorf("checking existing entry: %w", err)
	}
	if err := c.contents.Upsert(ctx, entry); err != nil {
		c.mu.Unlock()
		return "", fmt.Errorf("storing content: %w", err)
	}
	if previous != nil {
		c.totalBytes -= previous.SizeBytes
	}
	c.totalBytes += entry.SizeBytes
	c.mu.Unlock()

	handle, err := c.objects.Materialize(address, body)
	if err != nil {
		return "", fmt.Errorf("materializing handle: %w", err)
	}

	c.logger.Debug("content cached",
		slog.String("address", address),
		slog.Int64("size_bytes", entry.SizeBytes),
		slog.String("mime_type", contentType),
	)

	if err := c.EvictIfOverBudget(ctx); err != nil {
		c.logger.Warn("eviction pass failed", slog.String("error", err.Error()))
	}

	return handle, nil
}

// Preload resolves an address in the background. Failures are logged and
// never propagate; this is explicitly best-effort.
func (c *ContentCache) Preload(address string) {
	if !validAddress(address) {
		return
	}

	c.preloads.Add(1)
	go func() {
		defer c.preloads.Done()
		c.Resolve(c.preloadCtx, address)
	}()
}

// EvictIfOverBudget deletes oldest-first entries until the running size is
// at or below the eviction watermark of the budget. Each victim's handle is
// revoked before its store record is removed so a dangling handle never
// outlives its bytes.
func (c *ContentCache) EvictIfOverBudget(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.budget <= 0 || c.totalBytes <= c.budget {
		return nil
	}

	target := int64(float64(c.budget) * evictWatermark)
	c.logger.Info("cache over budget, evicting",
		slog.Int64("total_bytes", c.totalBytes),
		slog.Int64("budget_bytes", c.budget),
		slog.Int64("target_bytes", target),
	)

	for c.totalBytes > target {
		victims, err := c.contents.FindOldest(ctx, evictBatchSize)
		if err != nil {
			return fmt.Errorf("scanning eviction candidates: %w", err)
		}
		if len(victims) == 0 {
			return nil
		}

		for _, victim := range victims {
			if c.totalBytes <= target {
				return nil
			}
			if err := c.objects.Remove(victim.Address); err != nil {
				c.logger.Warn("revoking handle failed",
					slog.String("address", victim.Address),
					slog.String("error", err.Error()),
				)
			}
			if err := c.contents.Delete(ctx, victim.Address); err != nil {
				return fmt.Errorf("evicting entry: %w", err)
			}
			c.totalBytes -= victim.SizeBytes

			c.logger.Debug("evicted content entry",
				slog.String("address", victim.Address),
				slog.Int64("size_bytes", victim.SizeBytes),
			)
		}
	}
	return nil
}

// PurgeAll revokes every outstanding handle, clears both the content and
// playlist stores, and resets the running size. In-flight downloads may
// still complete and repopulate the cache afterwards; purge is best effort
// as of now, not a barrier.
func (c *ContentCache) PurgeAll(ctx context.Context) error {
	if err := c.objects.RemoveAll(); err != nil {
		return fmt.Errorf("revoking handles: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.contents.DeleteAll(ctx); err != nil {
		return fmt.Errorf("clearing content store: %w", err)
	}
	if err := c.playlists.DeleteAll(ctx); err != nil {
		return fmt.Errorf("clearing playlist store: %w", err)
	}
	c.totalBytes = 0

	c.logger.Info("cache purged")
	return nil
}

// Stats reports cache figures computed from the durable store rather than
// the running counter, so it is self-correcting.
func (c *ContentCache) Stats(ctx context.Context) (*models.ContentStats, error) {
	stats, err := c.contents.Stats(ctx)
	if err != nil {
		return nil, err
	}
	playlistCount, err := c.playlists.Count(ctx)
	if err != nil {
		return nil, err
	}
	stats.PlaylistCount = playlistCount
	return stats, nil
}

// TotalBytes returns the in-memory running size counter.
func (c *ContentCache) TotalBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalBytes
}

// Close cancels pending preloads and waits for them to finish.
func (c *ContentCache) Close() {
	c.preloadStop()
	c.preloads.Wait()
}
