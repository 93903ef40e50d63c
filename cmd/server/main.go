package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/lumeworks/billing-reconciler/internal/config"
	"github.com/lumeworks/billing-reconciler/internal/infrastructure/database"
	httpServer "github.com/lumeworks/billing-reconciler/internal/infrastructure/http"
	"github.com/lumeworks/billing-reconciler/internal/infrastructure/notify"
	"github.com/lumeworks/billing-reconciler/internal/logger"
	"github.com/lumeworks/billing-reconciler/internal/usecase"
)

func main() {
	// Load .env if present (development convenience)
	_ = godotenv.Load()

	// Bootstrap logger until the configured one is up
	bootLogger := logger.DefaultZapLogger()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		bootLogger.Fatal("Failed to load config", zap.Error(err))
	}

	// Initialize logger
	zapLogger, err := logger.NewZapLogger(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		Development: cfg.Service.Environment == "development",
	})
	if err != nil {
		bootLogger.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer zapLogger.Sync()

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, zapLogger); err != nil {
			zapLogger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	// Run database migrations
	if err := database.Migrate(db, zapLogger); err != nil {
		zapLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize repositories
	repos := database.NewRepositories(db, zapLogger)

	// Post-commit notification dispatcher
	var sink notify.Sink
	if cfg.Notify.RedisAddr != "" {
		redisSink, err := notify.NewRedisSink(
			cfg.Notify.RedisAddr,
			cfg.Notify.RedisPassword,
			cfg.Notify.RedisDB,
			cfg.Notify.Channel,
		)
		if err != nil {
			zapLogger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		sink = redisSink
	} else {
		zapLogger.Warn("No redis address configured, notifications will only be logged")
		sink = notify.NewLogSink(zapLogger)
	}

	dispatcher := notify.NewDispatcher(sink, zapLogger,
		notify.WithQueueSize(cfg.Notify.QueueSize),
		notify.WithMaxAttempts(cfg.Notify.MaxAttempts),
		notify.WithBaseBackoff(cfg.Notify.BaseBackoff),
	)

	// Reconciliation engine
	engine := usecase.NewEngine(repos.Tx, dispatcher, zapLogger,
		usecase.WithTimeout(cfg.Service.ProcessTimeout),
	)
	zapLogger.Info("Reconciliation engine initialized",
		zap.Any("handled_event_types", engine.HandledTypes()))

	// HTTP server
	srv := httpServer.NewServer(cfg, zapLogger, repos, engine)

	go func() {
		if err := srv.Start(); err != nil {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zapLogger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}

	// Drain pending notifications before exiting
	if err := dispatcher.Close(); err != nil {
		zapLogger.Error("Failed to close notification dispatcher", zap.Error(err))
	}

	zapLogger.Info("Shutdown complete")
}
