package handler

import (
	"net/http"
	"sync"
	"time"

	"lazychat/internal/api"
	"lazychat/internal/config"
	"lazychat/internal/database"
	"lazychat/internal/eventlog"
	"lazychat/internal/logger"
)

var (
	once    sync.Once
	router  http.Handler
	initErr error
)

// setup builds the API once per function instance. Cold starts pay for the
// migration; warm invocations reuse the router.
func setup() {
	cfg, err := config.Load()
	if err != nil {
		initErr = err
		return
	}

	appLogger := logger.New(cfg.LogLevel)

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		appLogger.Error("Failed to connect to database: %v", err)
		initErr = err
		return
	}

	retention := time.Duration(cfg.EventLogRetentionDays) * 24 * time.Hour
	appLogger.AddHook(eventlog.NewHook(eventlog.New(db.DB, retention, nil), "vercel"))

	server := api.New(cfg, appLogger, db)
	server.StartBackground()
	router = server.GetRouter()
}

// Handler is the Vercel entry point.
func Handler(w http.ResponseWriter, r *http.Request) {
	once.Do(setup)
	if initErr != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"code":"lazychat_unavailable","message":"Service is not configured.","data":{"status":503}}`))
		return
	}

	// Serve the request
	router.ServeHTTP(w, r)
}
