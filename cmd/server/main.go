package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"taxi/internal/app"
	"taxi/internal/auth"
	"taxi/internal/config"
	"taxi/internal/group"
	"taxi/internal/handler"
	internalRedis "taxi/internal/redis"
	"taxi/internal/repository/postgres"
	"taxi/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
			nrApp = nil
		} else {
			log.Printf("New Relic enabled: app=%s", cfg.NewRelic.AppName)
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := app.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("failed to prepare database: %v", err)
	}
	log.Println("Connected to PostgreSQL")

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	// Background workers live until shutdown.
	runCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	registry, closeBackplane := newRegistry(runCtx, redisClient, cfg)
	defer closeBackplane()

	go group.NewReconciler(registry, cfg.Hub.ReconcileInterval).Run(runCtx)

	server := wireServer(db, redisClient, registry, nrApp, cfg)

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	stopWorkers()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}

	if nrApp != nil {
		nrApp.Shutdown(cfg.Server.ShutdownTimeout)
	}

	log.Println("Server exited")
}

// newRegistry builds the trip group registry, relaying broadcasts through
// Redis when the backplane is enabled. The returned func releases the
// backplane subscription.
func newRegistry(ctx context.Context, redisClient *redis.Client, cfg *config.Config) (*group.Registry, func()) {
	if !cfg.Redis.BackplaneEnabled {
		return group.NewRegistry(nil), func() {}
	}

	backplane := internalRedis.NewGroupBackplane(ctx, redisClient)
	registry := group.NewRegistry(backplane)
	go backplane.Run(ctx, registry.DeliverLocal)
	log.Printf("Trip backplane enabled: instance=%s", backplane.InstanceID())

	return registry, func() {
		if err := backplane.Close(); err != nil {
			log.Printf("failed to close backplane: %v", err)
		}
	}
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(db *sql.DB, redisClient *redis.Client, registry *group.Registry, nrApp *newrelic.Application, cfg *config.Config) *http.Server {
	// Initialize Redis stores.
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)

	// Initialize repositories.
	userRepo := postgres.NewUserRepository(db)
	tripRepo := postgres.NewTripRepository(db)

	// Initialize services.
	tripService := service.NewTripService(tripRepo, userRepo, cacheStore, lockStore)
	authenticator := auth.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)

	// Initialize handlers.
	tripHandler := handler.NewTripHandler(tripService)
	userHandler := handler.NewUserHandler(userRepo)
	taxiHandler := handler.NewTaxiHandler(tripService, registry, nrApp, cfg.Hub)

	router := app.NewRouter(app.RouterDeps{
		TripHandler:    tripHandler,
		UserHandler:    userHandler,
		TaxiHandler:    taxiHandler,
		Authenticator:  authenticator,
		NewRelicApp:    nrApp,
		AllowedOrigins: cfg.Hub.AllowedOrigins,
	})

	// WriteTimeout is left unset: it would cut long-lived WebSocket
	// connections. The write pump sets its own per-frame deadlines.
	return &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}
}
