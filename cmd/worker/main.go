package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/evura/portal-api/internal/app"
	"github.com/evura/portal-api/internal/config"
	"github.com/evura/portal-api/internal/repository"
	"github.com/evura/portal-api/internal/worker"
	"github.com/evura/portal-api/pkg/logger"
	"github.com/evura/portal-api/pkg/metrics"
)

func newHealthServer(port int, store *repository.Store, registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger := app.NewLogger(cfg.Log).WithFields(map[string]interface{}{"process": "worker"})
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	store, closeStore, err := app.OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal(err, "Failed to open store")
	}
	defer closeStore()

	// Initialize broker
	broker, err := app.OpenBroker(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(err, "Failed to connect notification broker")
	}
	defer broker.Close()

	registry := app.NewRegistry()
	m := metrics.NewMetrics(registry, app.MetricsNamespace)

	dispatcher, err := app.NewDispatcher(cfg, store, broker, logger, m)
	if err != nil {
		logger.Fatal(err, "Failed to build notification dispatcher")
	}
	retention, err := worker.NewRetentionWorker(store.Notifications, store.Audit, worker.RetentionConfig{
		Schedule:         cfg.Retention.Schedule,
		NotificationDays: cfg.Retention.NotificationDays,
		AuditDays:        cfg.Retention.AuditDays,
	}, logger, m)
	if err != nil {
		logger.Fatal(err, "Failed to build retention worker")
	}

	// Setup health check endpoints
	health := newHealthServer(cfg.Server.WorkerPort, store, registry)
	go func() {
		if err := health.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(err, "Health check server failed")
		}
	}()

	run(ctx, logger, dispatcher.Start, func(ctx context.Context) error {
		retention.Start(ctx)
		return nil
	})

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := health.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, "Health server forced to shutdown")
	}
}

// run starts every loop and waits until all have returned.
func run(ctx context.Context, logger *logger.Logger, loops ...func(context.Context) error) {
	var wg sync.WaitGroup
	for _, loop := range loops {
		wg.Add(1)
		go func(loop func(context.Context) error) {
			defer wg.Done()
			if err := loop(ctx); err != nil {
				logger.Error(err, "Worker loop stopped")
			}
		}(loop)
	}
	wg.Wait()
}
