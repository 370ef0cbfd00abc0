package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"beacon-chat/internal/assistant"
	"beacon-chat/internal/chat"
	"beacon-chat/internal/config"
	"beacon-chat/internal/db"
	"beacon-chat/internal/metrics"
	"beacon-chat/internal/models"
	"beacon-chat/internal/simulator"
	"beacon-chat/internal/watcher"
)

// app is the wiring shared by serve and chat
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	database   *db.DB
	client     *assistant.Client
	health     watcher.HealthChecker
	metrics    *metrics.Metrics
	controller *chat.Controller
}

// loadConfig applies the persistent flags on top of config.Load
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if sim, _ := cmd.Flags().GetBool("simulator"); sim {
		cfg.Simulator.Enabled = true
	}
	if path, _ := cmd.Flags().GetString("db"); path != "" {
		cfg.DBPath = path
	}
	return cfg, nil
}

// newApp opens persistence, picks the backend and builds the controller
func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}

	var backend chat.Backend
	if cfg.Simulator.Enabled {
		sim := simulator.New(cfg.Simulator.ChunkInterval, logger)
		backend, a.health = sim, sim
		logger.Info("Simulator enabled", zap.Duration("chunk_interval", cfg.Simulator.ChunkInterval))
	} else {
		a.client = assistant.NewClient(cfg.Backend.URL,
			assistant.WithAPIKey(cfg.Backend.APIKey),
			assistant.WithSessionID(cfg.Backend.SessionID),
			assistant.WithTimeout(cfg.Backend.Timeout),
			assistant.WithLogger(logger),
		)
		backend, a.health = a.client, a.client
		logger.Info("Assistant backend configured", zap.String("url", a.client.BaseURL()))
	}

	storeOpts := []chat.StoreOption{}
	ctrlOpts := []chat.Option{
		chat.WithLogger(logger),
		chat.WithMetrics(a.metrics),
		chat.WithUploadConcurrency(cfg.UploadConcurrency),
	}

	var loaded []models.Conversation
	if cfg.PersistenceEnabled() {
		database, err := db.NewDB(cfg.DBPath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := database.Migrate(); err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		loaded, err = database.LoadConversations()
		if err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to load conversations: %w", err)
		}
		a.database = database
		storeOpts = append(storeOpts, chat.WithPersister(database))
		ctrlOpts = append(ctrlOpts, chat.WithFeedbackRecorder(database))
		logger.Info("Persistence enabled", zap.String("db_path", cfg.DBPath), zap.Int("conversations", len(loaded)))
	} else {
		logger.Info("Persistence disabled")
	}

	store := chat.NewStore(logger, storeOpts...)
	store.Load(loaded)
	a.controller = chat.NewController(store, backend, ctrlOpts...)

	return a, nil
}

// close drains in-flight producers and closes the database
func (a *app) close(ctx context.Context) error {
	var errs []error
	if err := a.controller.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop producers: %w", err))
	}
	if a.database != nil {
		if err := a.database.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
