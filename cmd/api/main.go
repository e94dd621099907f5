package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lazychat/internal/api"
	"lazychat/internal/config"
	"lazychat/internal/database"
	"lazychat/internal/eventlog"
	"lazychat/internal/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize logger
	appLogger := logger.New(cfg.LogLevel)
	if cfg.LogFile != "" {
		appLogger, err = logger.NewWithFile(cfg.LogLevel, cfg.LogFile)
		if err != nil {
			log.Fatal("Failed to open log file:", err)
		}
	}

	// Initialize database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		appLogger.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Errors also land in the event log
	retention := time.Duration(cfg.EventLogRetentionDays) * 24 * time.Hour
	appLogger.AddHook(eventlog.NewHook(eventlog.New(db.DB, retention, nil), "api"))

	// Initialize API server
	server := api.New(cfg, appLogger, db)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		appLogger.Error("Server shutdown failed: %v", err)
	}
}
