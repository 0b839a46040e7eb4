package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wirecache/wirecache/internal/logger"
	"github.com/wirecache/wirecache/internal/telemetry"
	"github.com/wirecache/wirecache/pkg/api"
	"github.com/wirecache/wirecache/pkg/cachestore"
	"github.com/wirecache/wirecache/pkg/config"
	"github.com/wirecache/wirecache/pkg/lifecycle"
	"github.com/wirecache/wirecache/pkg/metrics"
	"github.com/wirecache/wirecache/pkg/outbox"
	"github.com/wirecache/wirecache/pkg/update"
	"github.com/wirecache/wirecache/pkg/worker"

	// Import prometheus metrics to register init() functions
	_ "github.com/wirecache/wirecache/pkg/metrics/prometheus"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the wirecache daemon",
	Long: `Start the daemon: open the cache store and offline write queue, install
and activate the configured worker version, and serve the control API.`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	if configFile == "" && !config.DefaultConfigExists() {
		return fmt.Errorf("no configuration file found at %s\n\n"+
			"Initialize one first:\n  wirecache init\n\n"+
			"Or specify a custom config file:\n  wirecache start --config /path/to/config.yaml",
			config.GetDefaultConfigPath())
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "wirecache",
		ServiceVersion: version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "wirecache",
		ServiceVersion: version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.Err(err))
		}
	}()

	logger.Info("Configuration loaded", "source", configSource())
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}

	// Initialize metrics FIRST so the stores pick up their collectors.
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	}

	store, err := cachestore.Open(cfg.Store.Path, cachestore.Options{
		MaxBodySize: cfg.Store.MaxBodySize,
		Metrics:     metrics.NewCacheStoreMetrics(),
	})
	if err != nil {
		return fmt.Errorf("failed to open cache store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("cache store close error", logger.Err(err))
		}
	}()

	ob, err := outbox.Open(cfg.Outbox.Path, metrics.NewOutboxMetrics())
	if err != nil {
		return fmt.Errorf("failed to open outbox: %w", err)
	}
	defer func() {
		if err := ob.Close(); err != nil {
			logger.Error("outbox close error", logger.Err(err))
		}
	}()

	rules, err := cfg.RouterRules()
	if err != nil {
		return fmt.Errorf("invalid routing table: %w", err)
	}

	coordinator := update.NewCoordinator(
		update.Policy(cfg.Update.Policy),
		update.ReloaderFunc(func() {
			logger.Info("Controller changed, clients should reload")
		}),
	)

	w, err := worker.New(worker.Options{
		Cache:   store,
		Fetcher: worker.NewHTTPFetcher(cfg.Origin.Timeout),
		Rules:   rules,
		Outbox:  ob,
		Coordinator: coordinator,
		Manifest: lifecycle.Manifest{
			Version:  cfg.Precache.Version,
			Precache: cfg.Precache.Namespaces,
		},
		StrategyMetrics:  metrics.NewStrategyMetrics(),
		LifecycleMetrics: metrics.NewLifecycleMetrics(),
	})
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}
	logger.Info("Worker created", "id", w.ID().String(), "version", cfg.Precache.Version)

	if err := w.Dispatch(ctx, &worker.Event{Kind: worker.EventInstall}); err != nil {
		return fmt.Errorf("worker install failed: %w", err)
	}
	logger.Info("Worker installed", "state", w.Lifecycle().State().String())

	scheduler := outbox.NewScheduler(ob, w.Deliver, outbox.SchedulerConfig{
		Interval:          cfg.Outbox.ReplayInterval,
		InitialBackoff:    cfg.Outbox.InitialBackoff,
		MaxBackoff:        cfg.Outbox.MaxBackoff,
		BackoffMultiplier: cfg.Outbox.BackoffMultiplier,
	})
	w.OnConnectivityRestored(scheduler.Kick)
	go scheduler.Run(ctx)

	sweeper := cachestore.NewSweeper(store, cachestore.SweeperConfig{
		Interval: cfg.Store.SweepInterval,
	})
	go sweeper.Run(ctx)

	apiServer, err := api.NewServer(api.Config{
		Port:           cfg.API.Port,
		ReadTimeout:    cfg.API.ReadTimeout,
		WriteTimeout:   cfg.API.WriteTimeout,
		IdleTimeout:    cfg.API.IdleTimeout,
		RequestTimeout: cfg.API.RequestTimeout,
		AuthSecret:     cfg.API.AuthSecret,
		TokenTTL:       cfg.API.TokenTTL,
	}, w)
	if err != nil {
		return err
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- apiServer.Start(ctx)
	}()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: metrics.Handler(),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", logger.Err(err))
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Daemon is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()

		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("metrics server shutdown error", logger.Err(err))
			}
		}
		if err := <-serverDone; err != nil {
			logger.Error("API server shutdown error", logger.Err(err))
		}

		// Drain background revalidations before the store closes.
		w.WaitBackground()
		logger.Info("Daemon stopped gracefully")
		return nil

	case err := <-serverDone:
		signal.Stop(sigChan)
		cancel()
		w.WaitBackground()
		if err != nil {
			return fmt.Errorf("API server error: %w", err)
		}
		return nil
	}
}

// configSource returns a description of where the config was loaded from.
func configSource() string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
