package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"beacon-chat/internal/api"
	"beacon-chat/internal/logger"
	"beacon-chat/internal/watcher"
)

const shutdownTimeout = 30 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Server.Port = port
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}

	health := watcher.New(a.health, cfg.HealthInterval,
		watcher.WithLogger(log),
		watcher.WithMetrics(a.metrics),
	)

	deps := api.Dependencies{
		Controller: a.controller,
		Health:     health,
		Metrics:    a.metrics,
		Logger:     log,
		StaticDir:  cfg.Server.StaticDir,
		Simulator:  cfg.Simulator.Enabled,
	}
	if a.client != nil {
		deps.Admin = a.client
	}
	router := api.NewRouter(deps)

	// Subscribers are in place, start polling
	health.Start()

	// Event streams never go idle; cancelling their base context lets Shutdown finish
	baseCtx, cancelStreams := context.WithCancel(context.Background())
	defer cancelStreams()

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	server.RegisterOnShutdown(cancelStreams)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting",
			zap.String("port", cfg.Server.Port),
			zap.String("static_dir", cfg.Server.StaticDir))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		log.Info("Server is shutting down", zap.String("signal", sig.String()))
	case err := <-serveErr:
		if err != nil {
			log.Error("Server failed", zap.Error(err))
			a.close(context.Background())
			return fmt.Errorf("server failed: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := health.Shutdown(ctx); err != nil {
		log.Warn("Health watcher did not stop in time", zap.Error(err))
	}
	if err := server.Shutdown(ctx); err != nil {
		log.Warn("Server forced to shutdown", zap.Error(err))
	}
	if err := a.close(ctx); err != nil {
		log.Warn("Shutdown incomplete", zap.Error(err))
	}

	log.Info("Server stopped gracefully")
	return nil
}
