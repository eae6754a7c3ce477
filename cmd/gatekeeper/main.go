package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gatekeeper/internal/alerts"
	"gatekeeper/internal/api"
	"gatekeeper/internal/blocklist"
	"gatekeeper/internal/config"
	"gatekeeper/internal/inspector"
	"gatekeeper/internal/logger"
	"gatekeeper/internal/models"
	"gatekeeper/internal/observability"
	"gatekeeper/internal/patterns"
	"gatekeeper/internal/ratelimit"
	"gatekeeper/internal/tracker"
	"gatekeeper/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to configuration file")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetInfo().String())
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging
	ver := version.GetInfo()
	log, closer, err := logger.Setup(cfg.Logging, ver)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	// Initialize observability (OpenTelemetry)
	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, ver)
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

	// Compile the classification catalog
	catalog, err := patterns.NewCatalog(patterns.Config{
		DisableDefaults: cfg.Security.Patterns.DisableDefaults,
		Paths:           cfg.Security.Patterns.Paths,
		Queries:         cfg.Security.Patterns.Queries,
		UserAgents:      cfg.Security.Patterns.UserAgents,
	})
	if err != nil {
		slog.Error("Failed to compile pattern catalog", "error", err)
		os.Exit(1)
	}
	pathRules, queryRules, uaRules := catalog.RuleCount()
	slog.Info("Pattern catalog compiled",
		"path_rules", pathRules,
		"query_rules", queryRules,
		"user_agent_rules", uaRules,
	)

	// Initialize the violation tracker and restore persisted permanent blocks
	trk := tracker.New(cfg.Security.Tracker)
	defer trk.Close()

	store, err := blocklist.New(context.Background(), cfg.Blocklist)
	if err != nil {
		slog.Error("Failed to initialize blocklist storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := seedPermanentBlocks(context.Background(), trk, store); err != nil {
		slog.Error("Failed to load permanent blocks", "error", err)
		os.Exit(1)
	}

	// Wrap the tracker with instrumentation if metrics are enabled
	var activeTracker tracker.Service = trk
	if cfg.Metrics.Enabled {
		instrumented, err := observability.NewInstrumentedTracker(trk)
		if err != nil {
			slog.Error("Failed to create instrumented tracker", "error", err)
			os.Exit(1)
		}
		activeTracker = instrumented
	}

	// Initialize the alert dispatcher
	var dispatcher *alerts.Dispatcher
	if cfg.Security.Alerts.Enabled {
		transport, err := buildAlertTransport(cfg.Security.Alerts)
		if err != nil {
			slog.Error("Failed to initialize alert transport", "error", err)
			os.Exit(1)
		}
		dispatcher = alerts.NewDispatcher(transport, cfg.Security.Alerts, cfg.Security.Tracker.BlockDuration)
		defer dispatcher.Close()
	}

	// Build the upstream application handler
	application, err := buildUpstream(cfg.Upstream)
	if err != nil {
		slog.Error("Failed to initialize upstream proxy", "error", err)
		os.Exit(1)
	}

	// Initialize HTTP handlers for the gateway's own surface
	handlers := api.NewHandlers(activeTracker, store)

	// Compose the middleware pipeline from configuration
	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}
	if cfg.Security.Headers.Enabled {
		routeOpts = append(routeOpts, api.WithMiddleware(inspector.SecurityHeaders(cfg.Security.Headers)))
	}
	if cfg.Security.Inspection.Enabled {
		var sink inspector.AlertSink
		if dispatcher != nil {
			sink = dispatcher
		}
		volume := inspector.NewVolumeMonitor(cfg.Security.Alerts.HighVolume, sink)
		insp := inspector.New(catalog, activeTracker, sink, volume)
		routeOpts = append(routeOpts, api.WithMiddleware(insp.Middleware))
	}
	if cfg.RateLimit.Enabled {
		counterStore, err := buildCounterStore(cfg.RateLimit)
		if err != nil {
			slog.Error("Failed to initialize rate limit counter store", "error", err)
			os.Exit(1)
		}
		limiter := ratelimit.NewFixedWindowLimiter(counterStore, cfg.RateLimit.Default, cfg.RateLimit.Routes)
		defer limiter.Close()

		routeOpts = append(routeOpts, api.WithMiddleware(ratelimit.Middleware(limiter)))
	}

	router := api.SetupRoutes(handlers, cfg, application, routeOpts...)

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

// seedPermanentBlocks restores the persisted permanent block list into the
// tracker so blocks survive restarts.
func seedPermanentBlocks(ctx context.Context, trk *tracker.Tracker, store blocklist.Store) error {
	entries, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("list permanent blocks: %w", err)
	}
	clients := make([]string, 0, len(entries))
	for _, e := range entries {
		clients = append(clients, e.IP)
	}
	trk.SeedPermanentBlocks(clients)
	if len(clients) > 0 {
		slog.Info("Permanent blocks restored", "count", len(clients))
	}
	return nil
}

// buildAlertTransport creates the configured notification transport.
func buildAlertTransport(cfg models.AlertsConfig) (alerts.Transport, error) {
	switch cfg.Transport {
	case models.AlertTransportWebhook:
		return alerts.NewWebhookTransport(cfg.WebhookURL, cfg.SendTimeout), nil
	case models.AlertTransportLog:
		return alerts.LogTransport{}, nil
	default:
		return nil, fmt.Errorf("unsupported alert transport: %s", cfg.Transport)
	}
}

// buildCounterStore creates the configured rate limit counter store.
func buildCounterStore(cfg models.RateLimitConfig) (ratelimit.CounterStore, error) {
	switch cfg.Store {
	case models.RateLimitStoreRedis:
		return ratelimit.NewRedisCounterStore(cfg.Redis)
	case models.RateLimitStoreMemory:
		return ratelimit.NewMemoryCounterStore(cfg.CleanupInterval), nil
	default:
		return nil, fmt.Errorf("unsupported counter store: %s", cfg.Store)
	}
}

// buildUpstream creates the reverse proxy to the protected application, with
// a bounded transport timeout. A missing target means the gateway serves only
// its own surface.
func buildUpstream(cfg models.UpstreamConfig) (http.Handler, error) {
	if cfg.Target == "" {
		return nil, nil
	}
	target, err := url.Parse(cfg.Target)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream target: %w", err)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.Transport = &http.Transport{
		ResponseHeaderTimeout: cfg.Timeout,
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		slog.Error("upstream request failed", "path", r.URL.Path, "error", err)
		w.WriteHeader(http.StatusBadGateway)
	}
	return proxy, nil
}
