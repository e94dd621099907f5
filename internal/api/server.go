package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"lazychat/internal/api/handlers"
	"lazychat/internal/api/middleware"
	"lazychat/internal/auth"
	"lazychat/internal/catalog"
	"lazychat/internal/clock"
	"lazychat/internal/config"
	"lazychat/internal/connectors/woocommerce"
	"lazychat/internal/credentials"
	"lazychat/internal/database"
	"lazychat/internal/eventlog"
	"lazychat/internal/logger"
	"lazychat/internal/saas"
	"lazychat/internal/settings"
	"lazychat/internal/tracker"
	"lazychat/internal/webhook"
	"lazychat/internal/worker"

	"github.com/gin-gonic/gin"
)

type Server struct {
	config *config.Config
	logger *logger.Logger
	db     *database.Database
	router *gin.Engine
	server *http.Server

	dispatcher *webhook.Dispatcher
	janitor    *worker.Janitor
	closers    []func()
}

func New(cfg *config.Config, logger *logger.Logger, db *database.Database) *Server {
	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(cfg.CORSOrigins))

	s := &Server{
		config: cfg,
		logger: logger,
		db:     db,
		router: router,
	}
	clk := clock.Real()

	// Services
	settingsStore := settings.New(db.DB)
	client := saas.NewClient(saas.Options{
		BaseURL:            cfg.LazyChatAPIURL,
		PluginVersion:      cfg.PluginVersion,
		InteractiveTimeout: cfg.InteractiveTimeout,
		BulkTimeout:        cfg.BulkTimeout,
		TelemetryTimeout:   cfg.TelemetryTimeout,
	}, logger)
	reporter := saas.NewReporter(client, settingsStore, logger)
	store := catalog.New(db.DB, logger)

	s.janitor = worker.NewJanitor(24*time.Hour, clk, logger)
	events := eventlog.New(db.DB, time.Duration(cfg.EventLogRetentionDays)*24*time.Hour, clk)
	s.janitor.Register("event_logs", events)

	changes := tracker.New(store, s.snapshotCache(db, clk), reporter, logger)
	s.dispatcher = webhook.NewDispatcher(s.webhookChannel(), settingsStore, reporter, webhook.Options{
		PluginVersion: cfg.PluginVersion,
		Workers:       cfg.WebhookWorkers,
		QueueSize:     cfg.WebhookQueueSize,
		Timeout:       cfg.TelemetryTimeout,
	}, logger)
	store.SetListener(webhook.NewHooks(s.dispatcher, changes, settingsStore, clk, logger))

	provisioner := credentials.NewProvisioner(db.DB, settingsStore, client, cfg.StoreURL, clk, logger)
	manager := auth.NewManager(client, settingsStore, provisioner, logger)
	connector := woocommerce.New(cfg.StoreURL, cfg.InteractiveTimeout, nil, logger)
	nonces := middleware.NewNonces(cfg.NonceSecret, clk)

	// Initialize handlers
	adminHandler := handlers.NewAdminHandler(manager, settingsStore, client, provisioner, connector, nonces, logger)
	statusHandler := handlers.NewStatusHandler(settingsStore, cfg.PluginVersion, cfg.StoreURL)
	productHandler := handlers.NewProductHandler(store, logger)
	orderHandler := handlers.NewOrderHandler(store, logger)
	customerHandler := handlers.NewCustomerHandler(store, logger)

	// Admin actions
	admin := router.Group("/admin")
	{
		admin.GET("/nonce", adminHandler.Nonce)

		protected := admin.Group("", middleware.RequireNonce(nonces))
		protected.GET("/state", adminHandler.State)
		protected.POST("/actions/:action", adminHandler.Perform)
	}

	// Store REST namespace used by LazyChat
	v1 := router.Group("/wp-json/lazychat/v1", middleware.RESTAuth(settingsStore, provisioner, logger))
	{
		v1.GET("/status", statusHandler.Get)

		products := v1.Group("/products")
		{
			products.GET("", productHandler.List)
			products.GET("/:id", productHandler.Get)
			products.POST("", productHandler.Create)
			products.PUT("/:id", productHandler.Update)
			products.DELETE("/:id", productHandler.Delete)
		}

		orders := v1.Group("/orders")
		{
			orders.GET("", orderHandler.List)
			orders.GET("/:id", orderHandler.Get)
			orders.POST("", orderHandler.Create)
			orders.PUT("/:id/status", orderHandler.UpdateStatus)
		}

		customers := v1.Group("/customers")
		{
			customers.GET("", customerHandler.List)
			customers.GET("/:id", customerHandler.Get)
		}

		v1.GET("/coupons", customerHandler.Coupons)
	}

	return s
}

func (s *Server) snapshotCache(db *database.Database, clk clock.Clock) tracker.Cache {
	if s.config.SnapshotStore == config.SnapshotStoreMemory {
		cache := tracker.NewMemoryCache(tracker.DefaultTTL)
		s.closers = append(s.closers, cache.Close)
		return cache
	}
	cache := tracker.NewDBCache(db.DB, tracker.DefaultTTL, clk)
	s.janitor.Register("product_snapshots", cache)
	return cache
}

func (s *Server) webhookChannel() webhook.Channel {
	if s.config.WebhookTransport == config.TransportKafka {
		ch := webhook.NewKafkaChannel(strings.Split(s.config.KafkaBrokers, ","), s.config.KafkaTopic)
		s.closers = append(s.closers, func() {
			if err := ch.Close(); err != nil {
				s.logger.Warn("Failed to close kafka writer: %v", err)
			}
		})
		return ch
	}
	return webhook.NewHTTPChannel(s.config.WebhookURL, s.config.TelemetryTimeout, nil)
}

// StartBackground starts webhook delivery and the pruning janitor without
// listening, for hosts that serve the router themselves.
func (s *Server) StartBackground() {
	s.dispatcher.Start()
	s.janitor.Start()
}

func (s *Server) Start() error {
	s.StartBackground()

	addr := fmt.Sprintf("%s:%s", s.config.APIHost, s.config.APIPort)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.config.BulkTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server on " + addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	s.dispatcher.Stop()
	s.janitor.Stop()
	for _, closeFn := range s.closers {
		closeFn()
	}
	return err
}

// GetRouter returns the Gin router for Vercel
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
