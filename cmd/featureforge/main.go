package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	ffhttp "github.com/Strob0t/FeatureForge/internal/adapter/http"
	ffnats "github.com/Strob0t/FeatureForge/internal/adapter/nats"
	ffotel "github.com/Strob0t/FeatureForge/internal/adapter/otel"
	"github.com/Strob0t/FeatureForge/internal/adapter/postgres"
	"github.com/Strob0t/FeatureForge/internal/adapter/ristretto"
	"github.com/Strob0t/FeatureForge/internal/adapter/ws"
	"github.com/Strob0t/FeatureForge/internal/config"
	"github.com/Strob0t/FeatureForge/internal/logger"
	"github.com/Strob0t/FeatureForge/internal/service"
)

func main() {
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

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"pg_max_conns", cfg.Postgres.MaxConns,
		"step_delay", cfg.Runner.StepDelay,
	)

	ctx := context.Background()

	// --- Telemetry ---
	otelShutdown, err := ffotel.Init(ctx, cfg.Telemetry, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Error("otel shutdown failed", "error", err)
		}
	}()

	metrics, err := ffotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---

	// PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	// Run migrations
	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	// NATS
	queue, err := ffnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	// Diff cache
	diffCache, err := ristretto.New(cfg.Cache.MaxBytes)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer diffCache.Close()

	// --- Services ---
	hub := ws.NewHub()
	store := postgres.NewStore(pool)
	featureSvc := service.NewFeatureService(store, queue, hub, metrics)
	packetSvc := service.NewPacketService(store, queue, hub, diffCache, metrics, cfg.Cache.TTL)
	pipelineSvc := service.NewPipelineService(store, featureSvc, packetSvc, metrics,
		cfg.Runner.StepDelay, cfg.Runner.MaxConcurrent)

	// --- HTTP ---
	handlers := &ffhttp.Handlers{
		Features: featureSvc,
		Packets:  packetSvc,
		Pipeline: pipelineSvc,
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(ffhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(ffhttp.RequestID)
	r.Use(ffhttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(ffotel.HTTPMiddleware(cfg.Logging.Service))

	// Health endpoint with service status
	r.Get("/health", healthHandler(queue, hub))

	// WebSocket endpoint
	r.Get("/ws", hub.HandleWS)

	// API routes
	ffhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// Let in-flight pipeline runs land before dropping connections.
	pipelineSvc.Shutdown()
	if err := queue.Drain(); err != nil {
		slog.Error("nats drain failed", "error", err)
	}
	return nil
}

// healthHandler returns an http.HandlerFunc that reports service health.
func healthHandler(queue *ffnats.Queue, hub *ws.Hub) http.HandlerFunc {
	type healthStatus struct {
		Status        string `json:"status"`
		NATSConnected bool   `json:"nats_connected"`
		WSClients     int    `json:"ws_clients"`
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		status := healthStatus{
			Status:        "ok",
			NATSConnected: queue.IsConnected(),
			WSClients:     hub.ConnCount(),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(status)
	}
}
