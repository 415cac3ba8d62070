package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	httpapi "library-lending/internal/api/http"
	"library-lending/internal/cache"
	"library-lending/internal/config"
	"library-lending/internal/jobs"
	"library-lending/internal/logger"
	"library-lending/internal/notification"
	"library-lending/internal/payment"
	"library-lending/internal/repository/postgres"
	"library-lending/internal/scheduler"
	"library-lending/internal/security"
	"library-lending/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	withScheduler := flag.Bool("scheduler", true, "Run the reconciliation jobs in this process")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting library lending server...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress())
	logger.Info("Database configuration", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Database
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	store := postgres.NewStore(db)
	if err := store.Ping(ctx); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		logger.Error("Failed to apply schema", "error", err)
		log.Fatalf("Failed to apply schema: %v", err)
	}
	logger.Info("Database connection established")

	// Initialize Payment Gateway
	gateway, err := payment.NewStripeGateway(cfg.Stripe.SecretKey, nil, cfg.GatewayTimeout())
	if err != nil {
		log.Fatalf("Failed to initialize payment gateway: %v", err)
	}

	// Initialize Intent Guard
	var guard cache.IntentGuard
	if cfg.Redis.Addr != "" {
		redisGuard, err := cache.NewRedisIntentGuard(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Error("Failed to connect to Redis", "addr", cfg.Redis.Addr, "error", err)
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisGuard.Close()
		guard = redisGuard
		logger.Info("Using Redis intent guard", "addr", cfg.Redis.Addr)
	} else {
		guard = cache.NewInMemoryIntentGuard()
		logger.Info("Using in-process intent guard")
	}

	// Initialize Notification Dispatcher
	dispatcher := notification.NewDispatcherFromConfig(cfg)
	// Workers outlive the signal so the deferred Close drains queued notices.
	dispatcher.Start(context.WithoutCancel(ctx))
	defer dispatcher.Close()

	// Initialize Services
	lendingSvc := service.NewLendingService(store, dispatcher, nil)
	paymentSvc := service.NewPaymentService(store, gateway, guard, cfg.Stripe.Currency, nil)
	peopleSvc := service.NewPeopleService(store)

	// Initialize Scheduler
	if *withScheduler {
		cronScheduler, err := scheduler.NewScheduler(jobs.NewJobRunner(store, dispatcher, cfg, nil))
		if err != nil {
			log.Fatalf("Failed to initialize scheduler: %v", err)
		}
		cronScheduler.Start()
		defer cronScheduler.Stop()
	}

	// Set up HTTP server
	router := httpapi.NewRouter(httpapi.Services{
		Lending: lendingSvc,
		Payment: paymentSvc,
		People:  peopleSvc,
	}, security.NewTokenManager(cfg.JWT.Secret), cfg.Stripe.PublishableKey)

	srv := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	// Graceful shutdown
	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	logger.Info("Server stopped")
}
