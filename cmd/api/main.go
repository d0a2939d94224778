package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/foodmarketplace/api/routes"
	"github.com/angelmondragon/foodmarketplace/internal/catalog"
	"github.com/angelmondragon/foodmarketplace/internal/checkout"
	"github.com/angelmondragon/foodmarketplace/internal/storefront"
	"github.com/angelmondragon/foodmarketplace/pkg/config"
	"github.com/angelmondragon/foodmarketplace/pkg/db"
	"github.com/angelmondragon/foodmarketplace/pkg/eventbus"
	"github.com/angelmondragon/foodmarketplace/pkg/instance"
	"github.com/angelmondragon/foodmarketplace/pkg/kvstore"
	"github.com/angelmondragon/foodmarketplace/pkg/logger"
	"github.com/angelmondragon/foodmarketplace/pkg/metrics"
	"github.com/angelmondragon/foodmarketplace/pkg/migrate"
	"github.com/angelmondragon/foodmarketplace/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRun(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, redisClient.Close())
		}()
	}

	store, err := cartStore(cfg, dbClient, redisClient)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opener, err := storefront.NewOpener(storefront.OpenerParams{
		Store:      store,
		Bus:        eventbus.New(logg),
		StorageKey: cfg.Cart.StorageKey,
		LegacyKeys: cfg.Cart.LegacyKeys,
		Logger:     logg,
		Metrics:    metrics.NewCartMetrics(registry),
	})
	if err != nil {
		return err
	}

	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()))
	if err != nil {
		return err
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Orders:       checkout.NewRepository(dbClient.DB()),
		Handoffs:     store,
		Logger:       logg,
		TaxRate:      cfg.Checkout.Tax(),
		OrderPrefix:  cfg.Checkout.OrderPrefix,
		Merchant:     cfg.Checkout.Merchant,
		PaymentDelay: cfg.Checkout.PaymentDelay,
	})
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"cart_backend": cfg.Cart.Backend,
		"admin_routes": cfg.Admin.Enabled(),
		"instance":     instance.GetID(),
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, registry, opener, catalogService, checkoutService),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logg.Info(logCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func cartStore(cfg *config.Config, dbClient *db.Client, redisClient *redis.Client) (kvstore.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Cart.Backend)) {
	case config.CartBackendMemory:
		return kvstore.NewMemory(cfg.Cart.MemoryQuota), nil
	case config.CartBackendRedis:
		if redisClient == nil {
			return nil, errors.New("redis cart backend requires a redis client")
		}
		return kvstore.NewRedis(redisClient, cfg.Cart.KeyTTL), nil
	default:
		return kvstore.NewDB(dbClient.DB()), nil
	}
}
