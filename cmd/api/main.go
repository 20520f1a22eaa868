package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bazaar-api/internal/cache"
	"bazaar-api/internal/config"
	"bazaar-api/internal/engine"
	"bazaar-api/internal/gateway"
	"bazaar-api/internal/handler"
	"bazaar-api/internal/logging"
	"bazaar-api/internal/metrics"
	"bazaar-api/internal/middleware"
	"bazaar-api/internal/notify"
	"bazaar-api/internal/repository"
	"bazaar-api/internal/router"
	"bazaar-api/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	cfg := config.MustLoad()

	logger, err := logging.New(cfg.App.LogLevel, cfg.App.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)
	ctx := context.Background()

	// Listing store
	db, err := openDatabase(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer db.Close()
	listings := repository.NewListingStore(db)
	logger.Info("listing store initialized", zap.String("driver", db.Driver()))

	// Notification store
	var notes repository.NotificationStore
	switch cfg.Notification.Store {
	case "mongodb":
		mongoStore, err := repository.NewMongoNotificationStore(ctx,
			cfg.Notification.MongoURI, cfg.Notification.MongoDatabase, cfg.Notification.MongoCollection, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize MongoDB: %w", err)
		}
		defer mongoStore.Close()
		notes = mongoStore
	default:
		notes = repository.NewNotificationStore(db)
	}
	logger.Info("notification store initialized", zap.String("type", cfg.Notification.Store))

	// Redis is optional. Components configured for it fall back to memory when it is down.
	var redisClient *redis.Client
	if cfg.NeedsRedis() {
		redisClient, err = cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			logger.Warn("redis unavailable, using in-memory backends", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
			logger.Info("redis client initialized", zap.String("addr", cfg.Cache.RedisAddress()))
		}
	}

	var presence gateway.Presence
	if cfg.Presence.Type == "redis" && redisClient != nil {
		presence = gateway.NewRedisPresence(redisClient, cfg.Presence.SessionTTL, logger)
	} else {
		presence = gateway.NewMemoryPresence()
	}

	var catalogCache cache.Cache
	if cfg.Cache.Type == "redis" && redisClient != nil {
		catalogCache = cache.NewRedisCache(redisClient, logger)
	} else {
		catalogCache = cache.NewMemoryCache(time.Minute)
	}
	defer catalogCache.Close()

	ledger, inventory, err := buildGateways(cfg.Gateway)
	if err != nil {
		return err
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Notifications
	dispatcher := notify.New(notes, presence, m, logger)
	async := notify.NewAsync(dispatcher, notify.AsyncConfig{
		Workers:   cfg.Notification.Workers,
		QueueSize: cfg.Notification.QueueSize,
	})

	eng := engine.New(engine.Deps{
		Listings:   listings,
		Ledger:     ledger,
		Inventory:  inventory,
		Identities: presence,
		Notifier:   async,
		Metrics:    m,
		Logger:     logger,
	})

	catalog := service.NewCatalog(eng, catalogCache, cfg.Cache.TTL, logger)
	sessions := service.NewSessionService(presence, dispatcher, logger)

	scheduler := service.NewSweepScheduler(dispatcher, service.SweepConfig{
		Interval:     cfg.Notification.SweepInterval,
		InitialDelay: cfg.Notification.SweepDelay,
	}, logger)
	scheduler.Start()

	// HTTP
	probes := []handler.Probe{{Name: "store", Check: db.PingContext}}
	if redisClient != nil {
		probes = append(probes, handler.Probe{Name: "redis", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}

	r := router.New(router.Config{
		Handler:        handler.New(cfg.App.Name, cfg.App.Version, probes...),
		MarketHandler:  handler.NewMarketHandler(eng, catalog, logger),
		SessionHandler: handler.NewSessionHandler(sessions, dispatcher, logger),
		AdminHandler:   handler.NewAdminHandler(eng, scheduler, cfg.Store.Type, logger),
		AuthMiddleware: middleware.NewAuthMiddleware(middleware.AuthConfig{APIKeys: cfg.App.APIKeys}),
		Gatherer:       registry,
		Logger:         logger,
	})
	if len(cfg.App.APIKeys) == 0 {
		logger.Warn("API_KEYS is empty, host routes are unauthenticated")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Address()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	// In-flight requests are done; let queued notifications land before the stores close.
	scheduler.Stop()
	async.Stop()

	logger.Info("server stopped")
	return nil
}

func openDatabase(ctx context.Context, cfg config.StoreConfig) (*repository.Database, error) {
	var (
		db  *repository.Database
		err error
	)
	switch cfg.Type {
	case "postgres":
		db, err = repository.OpenPostgres(ctx, cfg.PostgresDSN())
	case "mysql":
		db, err = repository.OpenMySQL(ctx, cfg.MySQLDSN())
	default:
		db, err = repository.OpenSQLite(ctx, cfg.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s store: %w", cfg.Type, err)
	}
	return db, nil
}

func buildGateways(cfg config.GatewayConfig) (gateway.Ledger, gateway.Inventory, error) {
	if cfg.Type == "http" {
		ledger := gateway.NewHTTPLedger(gateway.NewClient(cfg.LedgerURL, cfg.APIKey, cfg.Timeout))
		inventory := gateway.NewHTTPInventory(gateway.NewClient(cfg.InventoryURL, cfg.APIKey, cfg.Timeout))
		return ledger, inventory, nil
	}

	balance, err := decimal.NewFromString(cfg.StartingBalance)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid DEV_STARTING_BALANCE %q: %w", cfg.StartingBalance, err)
	}
	return gateway.NewMemoryLedger().WithStartingBalance(balance),
		gateway.NewMemoryInventory(cfg.InventoryCapacity), nil
}
