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

	"gatekeeper/internal/api"
	"gatekeeper/internal/config"
	"gatekeeper/internal/detect"
	"gatekeeper/internal/events"
	"gatekeeper/internal/gatekeeper"
	"gatekeeper/internal/logger"
	"gatekeeper/internal/models"
	"gatekeeper/internal/observability"
	"gatekeeper/internal/ratelimit"
	"gatekeeper/internal/revocation"
	"gatekeeper/internal/store"
	"gatekeeper/internal/version"
)

var configFile = flag.String("config", "", "Path to configuration file")

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging
	log, closer, err := logger.Setup(cfg.Logging)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	// Initialize observability (OpenTelemetry)
	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, version.GetInfo())
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

	// Initialize the shared coordination store
	storeInstance, err := store.New(cfg.Store)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer storeInstance.Close()

	// Wrap the store with instrumentation if metrics are enabled
	var activeStore store.Store = storeInstance
	if cfg.Metrics.Enabled {
		instrumented, err := observability.NewInstrumentedStore(storeInstance)
		if err != nil {
			slog.Error("Failed to create instrumented store", "error", err)
			os.Exit(1)
		}
		activeStore = instrumented
	}

	// Initialize the security event sink
	sink, err := events.New(cfg.Events, log)
	if err != nil {
		slog.Error("Failed to initialize event sink", "error", err)
		os.Exit(1)
	}
	defer sink.Close()

	// Initialize pipeline components
	limiter := ratelimit.NewTieredLimiter(activeStore, sink,
		ratelimit.WithLookback(cfg.Security.ViolationLookback),
		ratelimit.WithFailPolicy(cfg.Security.RateLimitFailPolicy),
	)
	registry := revocation.NewRegistry(activeStore, sink)
	tiers := models.NewTierTable(cfg.Security.Tiers, cfg.Security.Routes)

	pipelineOpts := []gatekeeper.PipelineOption{
		gatekeeper.WithTrustedProxies(cfg.Security.TrustedProxies),
		gatekeeper.WithRevocationFailPolicy(cfg.Security.RevocationFailPolicy),
	}
	if cfg.Detector.InspectionEnable {
		pipelineOpts = append(pipelineOpts, gatekeeper.WithDetector(detect.NewDetector(cfg.Detector)))
	}
	if cfg.Security.EnableAuth {
		pipelineOpts = append(pipelineOpts, gatekeeper.WithAuth(gatekeeper.NewHMACVerifier(cfg.Security.SigningSecret)))
	}
	if cfg.Metrics.Enabled {
		meters, err := observability.NewGateMeters()
		if err != nil {
			slog.Error("Failed to create gate meters", "error", err)
			os.Exit(1)
		}
		pipelineOpts = append(pipelineOpts, gatekeeper.WithRecorder(meters))
	}

	pipeline := gatekeeper.NewPipeline(tiers, limiter, registry, sink, pipelineOpts...)

	// Initialize HTTP handlers with the store for health checks
	handlers := api.NewHandlers(pipeline, activeStore)

	// Setup routes with middleware; every route except /health goes through
	// the gate.
	routeOpts := []api.RouteOption{
		api.WithGatekeeper(gatekeeper.Middleware(pipeline)),
	}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}

	router := api.SetupRoutes(handlers, routeOpts...)

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

	// Create a deadline to wait for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown metrics server
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	// Attempt graceful shutdown
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server shutdown complete")
}
