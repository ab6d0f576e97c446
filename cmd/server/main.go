package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yegors/co-track/internal/aircraft"
	"github.com/yegors/co-track/internal/api"
	"github.com/yegors/co-track/internal/config"
	"github.com/yegors/co-track/internal/lookup"
	"github.com/yegors/co-track/internal/lookup/httpprovider"
	"github.com/yegors/co-track/internal/simulation"
	"github.com/yegors/co-track/internal/stamp"
	"github.com/yegors/co-track/internal/storage/sqlite"
	"github.com/yegors/co-track/internal/tracker"
	"github.com/yegors/co-track/internal/transponder"
	"github.com/yegors/co-track/internal/websocket"
	"github.com/yegors/co-track/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

type options struct {
	configPath string
	logLevel   string
}

func main() {
	var opts options

	rootCmd := &cobra.Command{
		Use:   "co-track",
		Short: "Live aircraft tracker for BaseStation and aircraft JSON feeds",
		Long: `Live aircraft tracker.

Connects to one or more receiver feeds (BaseStation/SBS port 30003 or
newline separated aircraft JSON), keeps a stamped history of every aircraft,
looks up registration and type details, and serves the result over HTTP
and a WebSocket change stream.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the configured log level")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "check-config",
		Short: "Load and validate the configuration, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration OK: %d feed(s), station %.5f,%.5f\n",
				len(cfg.Feeds), cfg.Station.Latitude, cfg.Station.Longitude)
			return nil
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.LoadWithFallback(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	log.Info("Starting co-track",
		logger.String("version", Version),
		logger.String("config_path", opts.configPath),
		logger.Int("feeds", len(cfg.Feeds)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ensure the directory exists
	dbDir := filepath.Dir(cfg.Storage.SQLitePath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return fmt.Errorf("creating database directory %s: %w", dbDir, err)
	}

	store, err := sqlite.Open(cfg.Storage.SQLitePath, log)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()
	log.Info("Using SQLite storage", logger.String("path", cfg.Storage.SQLitePath))

	list := aircraft.NewList(stamp.NewSequencer())

	var netDialer net.Dialer
	dialer := tracker.Dialer(netDialer.DialContext)

	var sim *simulation.Service
	if cfg.Simulation.Enabled {
		sim = simulation.NewService(simulation.Options{
			MaxAircraft: cfg.Simulation.MaxAircraft,
			Interval:    cfg.Simulation.Interval(),
		}, log)
		defer sim.Stop()
		dialer = sim.Dial(dialer)

		station := transponder.Location{Lat: cfg.Station.Latitude, Lon: cfg.Station.Longitude}
		if err := sim.Spawn(station, cfg.Simulation.InitialAircraft); err != nil {
			return fmt.Errorf("spawning simulated aircraft: %w", err)
		}
		log.Info("Simulation enabled",
			logger.Int("aircraft", cfg.Simulation.InitialAircraft),
			logger.Int("max_aircraft", cfg.Simulation.MaxAircraft))
	}

	registry, err := tracker.NewRegistry()
	if err != nil {
		return err
	}
	trackerService := tracker.NewService(tracker.Options{
		Feeds:             cfg.Feeds,
		Retention:         cfg.Storage.Retention(),
		LookupCacheMaxAge: cfg.Lookup.CacheMaxAge(),
		PruneInterval:     cfg.Storage.PruneInterval(),
		Dialer:            dialer,
	}, list, registry, log)

	var archive api.ArchiveReader
	if cfg.Storage.ArchiveChanges {
		a := store.Archive()
		trackerService.SetArchive(a)
		archive = a
	}

	var (
		lookupService *lookup.Service
		awaiter       api.Awaiter
	)
	if cfg.Lookup.Enabled {
		provider := httpprovider.NewClient(cfg.Lookup.BaseURL, cfg.Lookup.APIKey, cfg.Lookup.Timeout(), log)
		cache := store.Lookups()
		lookupService = lookup.NewService(provider, cache, lookup.Options{
			CacheMaxAge:    cfg.Lookup.CacheMaxAge(),
			RequestTimeout: cfg.Lookup.Timeout(),
		}, log)
		if err := lookupService.Start(ctx); err != nil {
			return fmt.Errorf("starting lookup service: %w", err)
		}
		defer lookupService.Stop()

		a := lookup.NewAwaiter(lookupService)
		defer a.Close()
		awaiter = a

		trackerService.SetLookups(lookupService)
		trackerService.SetLookupCache(cache)
		log.Info("Lookups enabled", logger.String("base_url", cfg.Lookup.BaseURL))
	} else {
		log.Info("Lookups disabled in configuration")
	}

	handler := api.NewHandler(list, trackerService, awaiter, archive, cfg.Station, log)
	if sim != nil {
		handler.SetSimulator(sim)
	}

	var stream http.Handler
	if cfg.WebSocket.Enabled {
		wsServer := websocket.NewServer(websocket.Options{
			SendBufferSize: cfg.WebSocket.SendBufferSize,
			WriteTimeout:   time.Duration(cfg.WebSocket.WriteTimeoutSecs) * time.Second,
			PingInterval:   time.Duration(cfg.WebSocket.PingIntervalSecs) * time.Second,
		}, log)
		wsServer.SetMessageHandler(handler)
		go wsServer.Run(ctx)
		trackerService.SetStream(wsServer)
		stream = wsServer
	}

	var static http.Handler
	if cfg.Server.StaticDir != "" {
		s, err := api.NewStaticFileHandler(cfg.Server.StaticDir, log)
		if err != nil {
			return fmt.Errorf("static directory: %w", err)
		}
		static = s
	}

	if err := trackerService.Start(ctx); err != nil {
		return fmt.Errorf("starting tracker: %w", err)
	}

	router := api.NewRouter(handler, stream, static, cfg.Server.CORSAllowedOrigins, log)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal or a listener failure
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("Shutting down", logger.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("HTTP server error", logger.Error(err))
		trackerService.Stop()
		return err
	}

	log.Info("Stopping tracker...")
	trackerService.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	}

	// Closes the stream and the lookup loop, deferred stops follow
	cancel()
	log.Info("Server fully stopped")
	return nil
}
