package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aoinlabs/storefront-backend/api/routes"
	"github.com/aoinlabs/storefront-backend/internal/cart"
	"github.com/aoinlabs/storefront-backend/internal/checkout"
	"github.com/aoinlabs/storefront-backend/internal/products"
	"github.com/aoinlabs/storefront-backend/internal/promotions"
	"github.com/aoinlabs/storefront-backend/pkg/config"
	"github.com/aoinlabs/storefront-backend/pkg/db"
	"github.com/aoinlabs/storefront-backend/pkg/logger"
	"github.com/aoinlabs/storefront-backend/pkg/metrics"
	"github.com/aoinlabs/storefront-backend/pkg/migrate"
	"github.com/aoinlabs/storefront-backend/pkg/outbox"
	"github.com/aoinlabs/storefront-backend/pkg/redis"
)

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
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	cartRepo := cart.NewRepository(dbClient.DB())
	cartService, err := cart.NewService(cartRepo, dbClient, products.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	promoMetrics := metrics.NewPromotionMetrics(prometheus.DefaultRegisterer)
	evaluator, err := promotions.NewHTTPEvaluator(cfg.Promo, promoMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create promotion evaluator", err)
		os.Exit(1)
	}
	sessions, err := promotions.NewSessionStore(redisClient, cfg.Promo.SessionTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create promotion session store", err)
		os.Exit(1)
	}
	promoService, err := promotions.NewService(cartService, evaluator, sessions, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create promotion service", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	checkoutService, err := checkout.NewService(
		cartService,
		cartRepo,
		promoService,
		dbClient,
		outboxService,
		cfg.Checkout,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:          cfg,
			Logger:          logg,
			DB:              dbClient,
			Redis:           redisClient,
			HTTPMetrics:     metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
			Gatherer:        prometheus.DefaultGatherer,
			CartService:     cartService,
			PromoService:    promoService,
			CheckoutService: checkoutService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
