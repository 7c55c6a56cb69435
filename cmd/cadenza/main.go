// Package main provides the cadenza playback daemon entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/cadenza-audio/cadenza/internal/api/httpapi"
	"github.com/cadenza-audio/cadenza/internal/app/ads"
	"github.com/cadenza-audio/cadenza/internal/app/audio"
	"github.com/cadenza-audio/cadenza/internal/app/discovery"
	"github.com/cadenza-audio/cadenza/internal/app/listening"
	"github.com/cadenza-audio/cadenza/internal/app/player"
	"github.com/cadenza-audio/cadenza/internal/app/skip"
	"github.com/cadenza-audio/cadenza/internal/domain/account"
	"github.com/cadenza-audio/cadenza/internal/infra/catalog"
	"github.com/cadenza-audio/cadenza/internal/infra/config"
	"github.com/cadenza-audio/cadenza/internal/infra/logger"
	"github.com/cadenza-audio/cadenza/internal/infra/spotify"
	"github.com/cadenza-audio/cadenza/internal/infra/store"
)

var (
	app        = kingpin.New("cadenza", "cadenza audio playback daemon")
	configPath = app.Flag("config", "Path to config file").Default("config/cadenza.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// check command
	checkCmd = app.Command("check", "Validate the config file and exit")
)

func init() {
	// start command (default) - no need to store the command
	app.Command("start", "Start the daemon (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if command == checkCmd.FullCommand() {
		fmt.Println("config OK")
		return
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Daemon error: %v", err)
		os.Exit(1)
	}
}

// run executes the daemon. Using a separate function ensures defer
// statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Durable state store
	var st store.Store
	if cfg.Storage.Path != "" {
		badgerStore, err := store.OpenBadger(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("failed to open state store: %w", err)
		}
		st = badgerStore
	} else {
		zlog.Warn().Msg("No storage path configured, state will not survive restarts")
		st = store.NewMemStore()
	}
	defer func() {
		if err := st.Close(); err != nil {
			zlog.Error().Msgf("Failed to close state store: %v", err)
		}
	}()

	// Listening time and ad schedule
	tracker := listening.NewTracker(st, cfg.Player.AdInterval())
	defer tracker.Close()

	scheduler := ads.NewScheduler(tracker, st)
	if cfg.Ads.CatalogFile != "" {
		if err := scheduler.LoadCatalogFile(cfg.Ads.CatalogFile); err != nil {
			return fmt.Errorf("failed to load ad catalog: %w", err)
		}
		if cfg.Ads.Watch {
			go func() {
				if err := scheduler.WatchCatalogFile(ctx, cfg.Ads.CatalogFile); err != nil {
					zlog.Error().Msgf("Ad catalog watcher stopped: %v", err)
				}
			}()
		}
	}

	// Catalog client
	catalogClient, err := catalog.New(catalog.Config{
		BaseURL: cfg.Catalog.BaseURL,
		Token:   cfg.Catalog.Token,
	})
	if err != nil {
		return fmt.Errorf("failed to create catalog client: %w", err)
	}

	acct := account.StaticSource{Acct: account.Account{
		Authenticated: cfg.Account.Authenticated,
		Premium:       cfg.Account.Premium,
	}}

	// Spotify client, only when a provider needs it
	var spotifyClient discovery.SpotifyClient
	if needsSpotify(cfg) {
		client, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			RefreshToken: cfg.Spotify.RefreshToken,
		})
		if err != nil {
			return fmt.Errorf("failed to create Spotify client: %w", err)
		}
		spotifyClient = client
	}

	// Discovery chain
	var finder player.TrackFinder
	if len(cfg.Discovery.Providers) > 0 {
		chain, err := discovery.NewChainFromConfig(cfg, catalogClient, spotifyClient, acct)
		if err != nil {
			return fmt.Errorf("failed to create discovery chain: %w", err)
		}
		finder = chain
	} else {
		zlog.Warn().Msg("No discovery providers configured, playback will loop within the queue")
	}

	// Audio engine over the simulated element
	element := audio.NewSimElement(0)
	defer element.Close()
	engine := audio.NewEngine(element, cfg.Player.CanPlayTimeout())

	budget := skip.NewBudget(st, cfg.Player.SkipLimit)

	p := player.New(engine, scheduler, tracker, budget, acct, catalogClient, finder, player.Config{
		AdFallbackDuration: cfg.Player.AdFallbackDuration(),
	})
	defer p.Close()
	p.SetVolume(cfg.Player.Volume)

	// HTTP control surface with h2c (HTTP/2 cleartext) support
	api := httpapi.NewServer(p, scheduler)
	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: h2c.NewHandler(api.Routes(), &http2.Server{}),
	}

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Starting control surface: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	// Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Daemon stopped")
	return nil
}

// needsSpotify reports whether any configured discovery provider requires
// Spotify credentials.
func needsSpotify(cfg *config.Config) bool {
	for _, p := range cfg.Discovery.Providers {
		if p.Type == "spotify_playlist" {
			return true
		}
	}
	return false
}
