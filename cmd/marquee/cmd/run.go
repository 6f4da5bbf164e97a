package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/marqueehq/marquee/internal/cache"
	"github.com/marqueehq/marquee/internal/config"
	"github.com/marqueehq/marquee/internal/database"
	"github.com/marqueehq/marquee/internal/directory"
	internalhttp "github.com/marqueehq/marquee/internal/http"
	"github.com/marqueehq/marquee/internal/http/handlers"
	"github.com/marqueehq/marquee/internal/httpclient"
	"github.com/marqueehq/marquee/internal/observability"
	"github.com/marqueehq/marquee/internal/player"
	"github.com/marqueehq/marquee/internal/reconcile"
	"github.com/marqueehq/marquee/internal/repository"
	"github.com/marqueehq/marquee/internal/status"
	"github.com/marqueehq/marquee/internal/storage"
	"github.com/marqueehq/marquee/internal/version"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the signage player",
	Long: `Run the marquee player for this screen.

The player:
- resolves the active playlist from schedule rules and assignments
- caches playlists and media locally so playback survives outages
- reports status heartbeats to the directory service
- serves a local control API for the renderer and operators`,
	RunE: runPlayer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("screen-id", "", "Screen identifier in the directory service")
	runCmd.Flags().String("directory-url", "", "Directory service base URL")
	runCmd.Flags().String("data-dir", "", "Data directory for cached content")
	runCmd.Flags().String("host", "", "Control API host to bind to")
	runCmd.Flags().Int("port", 0, "Control API port to listen on")

	bindRunFlag("screen.id", "screen-id")
	bindRunFlag("directory.url", "directory-url")
	bindRunFlag("storage.base_dir", "data-dir")
	bindRunFlag("server.host", "host")
	bindRunFlag("server.port", "port")
}

// bindRunFlag binds a viper key to a run command flag, but only applies the
// flag value when it was explicitly set, preserving config/env precedence.
func bindRunFlag(key, flagName string) {
	flag := runCmd.Flags().Lookup(flagName)
	if flag == nil {
		panic(fmt.Sprintf("unknown flag %q", flagName))
	}
	mustBindPFlag(key, flag)
}

// mustBindPFlag binds a viper key to a cobra flag and panics if binding fails.
func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag %q to key %q: %v", flag.Name, key, err))
	}
}

func runPlayer(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	screenID, err := cfg.EnsureScreenID()
	if err != nil {
		return fmt.Errorf("resolving screen id: %w", err)
	}
	logger.Info("starting marquee player",
		slog.String("screen_id", screenID),
		slog.String("version", version.Version),
	)

	// Durable store for cached playlists and content bytes.
	db, err := database.New(cfg.Database, observability.WithComponent(logger, "database"))
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	contentRepo := repository.NewGormContentRepository(db)
	playlistRepo := repository.NewGormPlaylistRepository(db)

	// Sandboxed object directory for served content handles.
	sandbox, err := storage.NewSandbox(cfg.Storage.BaseDir)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	objects, err := storage.NewObjectStore(sandbox)
	if err != nil {
		return fmt.Errorf("initializing object store: %w", err)
	}

	// Separate HTTP clients: content downloads tolerate long transfers,
	// directory calls stay snappy and share one circuit breaker.
	downloadConfig := httpclient.DefaultConfig()
	downloadConfig.Timeout = cfg.Cache.DownloadTimeout
	downloadConfig.RetryAttempts = cfg.Cache.DownloadRetries
	downloadConfig.UserAgent = version.UserAgent()
	downloadConfig.Logger = observability.WithComponent(logger, "downloads")
	downloadClient := httpclient.New(downloadConfig)

	directoryConfig := httpclient.DefaultConfig()
	directoryConfig.Timeout = cfg.Directory.Timeout
	directoryConfig.UserAgent = version.UserAgent()
	directoryConfig.Logger = observability.WithComponent(logger, "directory")
	directoryClient := directory.NewRestClient(directory.Options{
		BaseURL:        cfg.Directory.URL,
		APIKey:         cfg.Directory.APIKey,
		HTTPClient:     httpclient.New(directoryConfig),
		Logger:         observability.WithComponent(logger, "directory"),
		SubscribeRetry: cfg.Directory.SubscribeRetry,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	contentCache, err := cache.NewContentCache(ctx, cache.ContentCacheOptions{
		Contents:  contentRepo,
		Playlists: playlistRepo,
		Objects:   objects,
		HTTP:      downloadClient,
		Logger:    observability.WithComponent(logger, "content-cache"),
		Budget:    cfg.Cache.Budget.Bytes(),
	})
	if err != nil {
		return fmt.Errorf("initializing content cache: %w", err)
	}
	defer contentCache.Close()

	playlistCache := cache.NewPlaylistCache(playlistRepo, contentCache,
		observability.WithComponent(logger, "playlist-cache"))

	// The renderer follows item changes through the log stream.
	engine := player.New(player.Options{
		ScreenID:  screenID,
		Directory: directoryClient,
		Playlists: playlistCache,
		Content:   contentCache,
		Logger:    observability.WithComponent(logger, "player"),
		OnItem: func(change player.ItemChange) {
			logger.Info("item changed",
				slog.String("playlist_id", change.PlaylistID),
				slog.Int("index", change.Index),
				slog.String("item_id", change.Current.ID),
				slog.String("src", change.CurrentSrc),
				slog.String("next_src", change.NextSrc),
			)
		},
	})
	defer engine.Close()

	loop := reconcile.New(reconcile.Options{
		ScreenID:  screenID,
		Directory: directoryClient,
		Player:    engine,
		Playlists: playlistCache,
		Logger:    observability.WithComponent(logger, "reconcile"),
		Interval:  cfg.Player.ReconcileInterval,
	})

	reporter := status.New(status.Options{
		ScreenID:   screenID,
		ScreenName: cfg.Screen.Name,
		Directory:  directoryClient,
		State:      engine.State,
		Logger:     observability.WithComponent(logger, "status"),
		Interval:   cfg.Player.HeartbeatInterval,
	})

	// Control API server.
	server := internalhttp.NewServer(cfg.Server,
		observability.WithComponent(logger, "http"), version.Version)

	healthHandler := handlers.NewHealthHandler(version.Version).WithDB(db)
	healthHandler.Register(server.API())

	playerHandler := handlers.NewPlayerHandler(engine)
	playerHandler.Register(server.API())

	cacheHandler := handlers.NewCacheHandler(contentCache)
	cacheHandler.Register(server.API())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	engine.StartPlayback(ctx)

	if err := loop.Start(ctx); err != nil {
		return fmt.Errorf("starting reconciliation loop: %w", err)
	}
	defer loop.Stop()

	reporter.Start(ctx)
	defer reporter.Stop()

	return server.ListenAndServe(ctx)
}
