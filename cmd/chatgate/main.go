package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatgate/internal/api"
	"chatgate/internal/chat"
	"chatgate/internal/config"
	"chatgate/internal/gate"
	"chatgate/internal/logger"
	"chatgate/internal/models"
	"chatgate/internal/observability"
	"chatgate/internal/stats"
	"chatgate/internal/storage"
	"chatgate/internal/version"
)

var (
	configFile    = flag.String("config", "", "Path to configuration file")
	exampleConfig = flag.String("example-config", "", "Write an example configuration file to this path and exit")
	showVersion   = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	info := version.GetInfo()
	if *showVersion {
		fmt.Println(info.String())
		return
	}
	if *exampleConfig != "" {
		if err := config.SaveExample(*exampleConfig); err != nil {
			slog.Error("Failed to write example configuration", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Example configuration written to %s\n", *exampleConfig)
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging
	log, closer, err := logger.Setup(cfg.Logging, info)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	// Initialize observability (OpenTelemetry)
	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, info)
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	// Initialize storage
	storageInstance, err := storage.NewFactory().Create(cfg.Storage)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer storageInstance.Close()

	// Wrap storage with instrumentation if metrics are enabled
	activeStorage := storageInstance
	if cfg.Metrics.Enabled {
		instrumented, err := observability.NewInstrumentedStorage(storageInstance)
		if err != nil {
			slog.Error("Failed to create instrumented storage", "error", err)
			os.Exit(1)
		}
		activeStorage = instrumented
	}

	devUser, err := seedUsers(context.Background(), activeStorage, cfg)
	if err != nil {
		slog.Error("Failed to seed users", "error", err)
		os.Exit(1)
	}

	clock := gate.SystemClock{}
	chain, statsStore, statsObserver, err := buildChain(cfg, clock)
	if err != nil {
		slog.Error("Failed to build gate chain", "error", err)
		os.Exit(1)
	}
	defer chain.Close()
	if statsStore != nil {
		defer statsStore.Close()
		defer statsObserver.Close()
	}
	slog.Info("Gate chain built", "gates", chain.Gates())

	handlerOpts := []api.HandlerOption{
		api.WithStorage(activeStorage),
		api.WithGateChain(chain, clock),
		api.WithVersion(info),
	}
	if statsStore != nil {
		handlerOpts = append(handlerOpts, api.WithStats(statsStore))
	}
	if devUser != nil {
		handlerOpts = append(handlerOpts, api.WithDevUser(devUser))
	}
	handlers := api.NewHandlers(chat.NewService(activeStorage, clock), handlerOpts...)

	// Setup routes with middleware
	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}
	router := api.SetupRoutes(handlers, cfg, routeOpts...)

	// Start metrics server if enabled
	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, otelProvider)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Starting server", "addr", server.Addr)

		var err error
		if cfg.Server.TLSEnabled {
			if cfg.Server.TLSCertFile == "" || cfg.Server.TLSKeyFile == "" {
				slog.Error("TLS is enabled but cert file or key file is not specified")
				os.Exit(1)
			}
			slog.Info("Starting HTTPS server with TLS")
			err = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			slog.Info("Starting HTTP server")
			err = server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server shutdown complete")
}

// seedUsers creates the configured users. With authentication disabled it
// also returns the dev admin every request will run as.
func seedUsers(ctx context.Context, store storage.Storage, cfg *models.Config) (*models.User, error) {
	if _, err := chat.SeedUsers(ctx, store, cfg.Security.Users); err != nil {
		return nil, err
	}
	if cfg.Security.EnableAuth {
		return nil, nil
	}
	slog.Warn("Authentication is disabled; every request runs as the dev admin")
	return chat.DevUser(ctx, store)
}

// buildChain builds the gate chain and attaches the stats and metrics
// observers. Stats are recorded off the request path by an AsyncObserver;
// the returned store and observer are nil when stats are disabled.
func buildChain(cfg *models.Config, clock gate.Clock) (*gate.Chain, stats.Store, *stats.AsyncObserver, error) {
	chain, err := gate.Build(cfg.Gates, clock)
	if err != nil {
		return nil, nil, nil, err
	}

	var observers []gate.Observer
	var statsStore stats.Store
	var statsObserver *stats.AsyncObserver
	if cfg.Stats.Enabled {
		statsStore, err = stats.New(cfg.Stats)
		if err != nil {
			chain.Close()
			return nil, nil, nil, fmt.Errorf("initialize stats store: %w", err)
		}
		statsObserver = stats.NewAsyncObserver(statsStore, cfg.Stats.BufferSize, 0)
		observers = append(observers, statsObserver)
	}
	if cfg.Metrics.Enabled {
		gateMetrics, err := observability.NewGateMetrics(nil)
		if err != nil {
			chain.Close()
			if statsObserver != nil {
				statsObserver.Close()
				statsStore.Close()
			}
			return nil, nil, nil, fmt.Errorf("initialize gate metrics: %w", err)
		}
		observers = append(observers, gateMetrics)
	}

	return chain.WithObservers(observers...), statsStore, statsObserver, nil
}
