package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lazychat/internal/config"
	"lazychat/internal/database"
	"lazychat/internal/eventlog"
	"lazychat/internal/logger"
	"lazychat/internal/tracker"
	"lazychat/internal/webhook"
	"lazychat/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	events := eventlog.New(db.DB, time.Duration(cfg.EventLogRetentionDays)*24*time.Hour, nil)
	logger.AddHook(eventlog.NewHook(events, "worker"))

	janitor := worker.NewJanitor(24*time.Hour, nil, logger)
	janitor.Register("event_logs", events)
	janitor.Register("product_snapshots", tracker.NewDBCache(db.DB, tracker.DefaultTTL, nil))

	// Initialize worker
	w := worker.New(cfg, webhook.NewHTTPChannel(cfg.WebhookURL, cfg.TelemetryTimeout, nil), logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	// Start worker
	logger.Info("Starting worker...")
	janitor.Start()
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()
	<-done
	w.Stop()
	janitor.Stop()
}
