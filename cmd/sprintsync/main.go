package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/strob0t/sprintsync/internal/adapter/githubforge"
	sshttp "github.com/strob0t/sprintsync/internal/adapter/http"
	cfotel "github.com/strob0t/sprintsync/internal/adapter/otel"
	"github.com/strob0t/sprintsync/internal/adapter/postgres"
	"github.com/strob0t/sprintsync/internal/adapter/sse"
	"github.com/strob0t/sprintsync/internal/analytics"
	"github.com/strob0t/sprintsync/internal/config"
	"github.com/strob0t/sprintsync/internal/enrich/ignore"
	"github.com/strob0t/sprintsync/internal/logger"
	"github.com/strob0t/sprintsync/internal/middleware"
	"github.com/strob0t/sprintsync/internal/port/forge"
	"github.com/strob0t/sprintsync/internal/ratelimit"
	"github.com/strob0t/sprintsync/internal/resilience"
	"github.com/strob0t/sprintsync/internal/secrets"
	"github.com/strob0t/sprintsync/internal/syncengine"
	"github.com/strob0t/sprintsync/internal/teamsettings"
)

func main() {
	// Temporary bootstrap logger until config is loaded.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// Replace bootstrap logger with the configured one.
	log, closeLog := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer closeLog.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"pg_max_conns", cfg.Postgres.MaxConns,
	)

	ctx := context.Background()

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	shutdownOTel, err := cfotel.InitTracer(cfotel.OTELConfig{
		Enabled:     cfg.OTEL.Enabled,
		Endpoint:    cfg.OTEL.Endpoint,
		ServiceName: cfg.OTEL.ServiceName,
		Insecure:    cfg.OTEL.Insecure,
		SampleRate:  cfg.OTEL.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}

	var metrics *cfotel.Metrics
	if cfg.OTEL.Enabled {
		metrics, err = cfotel.NewMetrics()
		if err != nil {
			return fmt.Errorf("otel metrics: %w", err)
		}
	}

	st := postgres.NewStore(pool)

	vault, err := secrets.NewVault(secrets.ForgeTokenEnvLoader("SPRINTSYNC_FORGE_TOKEN_"))
	if err != nil {
		return fmt.Errorf("secrets vault: %w", err)
	}

	limiter := ratelimit.New(cfg.Rate.MaxRequestsPerWindow, cfg.Rate.WindowSeconds, cfg.Rate.Reserve)
	if cfg.OTEL.Enabled {
		if err := cfotel.RegisterRateLimiterGauge(limiter); err != nil {
			return fmt.Errorf("otel rate limiter gauge: %w", err)
		}
	}

	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)

	registry := forge.NewRegistry()
	githubforge.Register(registry, cfg.Forge.BaseURL, breaker, limiter, cfg.Forge.CallTimeout, cfg.Forge.RetryAttempts, cfg.Forge.RetryBackoff)

	ignoreFilter, err := loadIgnoreFilter(cfg.Sync.IgnorePatternsFile)
	if err != nil {
		return fmt.Errorf("ignore patterns: %w", err)
	}

	// --- Domain services ---

	resolver := teamsettings.NewResolver(st)

	orchestrator := syncengine.NewOrchestrator(st, limiter,
		syncengine.WithMaxWorkers(cfg.Sync.MaxWorkers),
		syncengine.WithSprintDays(cfg.Sprint.DurationDays),
		syncengine.WithIgnoreFilter(ignoreFilter),
		syncengine.WithClassificationRules(teamsettings.DefaultClassificationRules()),
		syncengine.WithMetrics(metrics),
	)
	dispatcher := syncengine.NewDispatcher(st, registry, orchestrator, resolver, cfg.Sync.MaxConcurrentPerTeam)
	progressStream := sse.New(st, cfg.Sync.ProgressPollInterval, cfg.Sync.ProgressHeartbeat, cfg.Sync.ProgressTimeout)
	probe := syncengine.NewUpdateProbe(st, cfg.Sync.UpdateProbeCacheTTL)
	analyticsEngine := analytics.New(st)

	// --- HTTP ---

	handlers := sshttp.NewHandlers(st, dispatcher, progressStream, probe, analyticsEngine, resolver, registry, vault, cfg.Forge)

	r := chi.NewRouter()
	r.Use(sshttp.CORS(cfg.Server.CORSOrigin))
	r.Use(middleware.RequestID)
	r.Use(sshttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	if cfg.OTEL.Enabled {
		r.Use(cfotel.HTTPMiddleware(cfg.OTEL.ServiceName))
	}

	r.Get("/health", healthHandler)

	sshttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done

	// --- Ordered Graceful Shutdown ---

	// Phase 1: stop accepting new HTTP requests.
	slog.Info("shutdown phase 1: stopping HTTP server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	// Phase 2: flush OTel exporters. The progress stream and any in-flight
	// sync sessions unwind on their own: srv.Shutdown already waited out
	// the streaming handlers, and Orchestrator.Run goroutines are detached
	// per session rather than tied to the HTTP request lifecycle.
	slog.Info("shutdown phase 2: flushing telemetry")
	if err := shutdownOTel(shutdownCtx); err != nil {
		slog.Error("otel shutdown error", "error", err)
	}

	// Phase 3: close the database, last, so in-flight queries can complete.
	slog.Info("shutdown phase 3: closing database pool")
	pool.Close()

	slog.Info("shutdown complete")
	return nil
}

// loadIgnoreFilter builds the commit-enrichment ignore filter from path, or
// an empty filter (dotfiles only) when path is unset.
func loadIgnoreFilter(path string) (*ignore.Filter, error) {
	if path == "" {
		return ignore.New(nil), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ignore.Load(f)
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
