package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/evura/portal-api/internal/app"
	"github.com/evura/portal-api/internal/config"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := app.NewLogger(cfg.Log)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	store, closeStore, err := app.OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal(err, "failed to open store")
	}
	defer closeStore()

	blobs, err := app.OpenBlobStore(cfg.Storage)
	if err != nil {
		logger.Fatal(err, "failed to open upload storage")
	}

	// Initialize notification queue
	broker, err := app.OpenBroker(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(err, "failed to connect notification broker")
	}
	defer broker.Close()

	registry := app.NewRegistry()
	api := app.NewAPI(app.Deps{
		Config:   cfg,
		Store:    store,
		Broker:   broker,
		Blobs:    blobs,
		Logger:   logger,
		Registry: registry,
	})

	var wg sync.WaitGroup
	if cfg.Notification.InlineDispatch {
		dispatcher, err := app.NewDispatcher(cfg, store, broker, logger, api.Metrics)
		if err != nil {
			logger.Fatal(err, "failed to build notification dispatcher")
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := dispatcher.Start(ctx); err != nil {
				logger.Error(err, "notification dispatcher stopped")
			}
		}()
	}

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.Engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		logger.Info("starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(err, "failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, "server forced to shutdown")
	}
	wg.Wait()

	logger.Info("server exited properly")
}
