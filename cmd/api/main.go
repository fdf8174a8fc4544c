package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/solespace/solespace-backend/api/controllers"
	"github.com/solespace/solespace-backend/api/routes"
	"github.com/solespace/solespace-backend/internal/address"
	"github.com/solespace/solespace-backend/internal/audit"
	"github.com/solespace/solespace-backend/internal/cart"
	"github.com/solespace/solespace-backend/internal/checkout"
	"github.com/solespace/solespace-backend/internal/orders"
	"github.com/solespace/solespace-backend/internal/payments"
	"github.com/solespace/solespace-backend/internal/products"
	"github.com/solespace/solespace-backend/pkg/config"
	"github.com/solespace/solespace-backend/pkg/db"
	"github.com/solespace/solespace-backend/pkg/logger"
	"github.com/solespace/solespace-backend/pkg/metrics"
	"github.com/solespace/solespace-backend/pkg/migrate"
	"github.com/solespace/solespace-backend/pkg/outbox"
	"github.com/solespace/solespace-backend/pkg/outbox/idempotency"
	"github.com/solespace/solespace-backend/pkg/paymongo"
	"github.com/solespace/solespace-backend/pkg/redis"
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
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

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
		if err := multierr.Combine(redisClient.Close(), dbClient.Close()); err != nil {
			logg.Error(context.Background(), "error closing resources", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps, err := buildDependencies(cfg, logg, dbClient, redisClient, reg)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"paymongo": cfg.PayMongo.Enabled(),
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}

func buildDependencies(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, reg *prometheus.Registry) (routes.Dependencies, error) {
	conn := dbClient.DB()
	checkoutMetrics := metrics.NewCheckoutMetrics(reg)

	productRepo := products.NewRepository(conn)
	orderRepo := orders.NewRepository(conn)
	cartRepo := cart.NewRepository(conn)
	auditRepo := audit.NewRepository(conn)
	publisher := outbox.NewService(outbox.NewRepository(conn), logg)

	productService, err := products.NewService(productRepo)
	if err != nil {
		return routes.Dependencies{}, err
	}
	cartService, err := cart.NewService(cartRepo, productRepo, dbClient, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}
	addressService, err := address.NewService(address.NewRepository(conn), auditRepo, dbClient)
	if err != nil {
		return routes.Dependencies{}, err
	}
	var gateway *paymongo.Client
	var orderOpts []orders.Option
	if cfg.PayMongo.Enabled() {
		gateway, err = paymongo.NewFromConfig(cfg.PayMongo)
		if err != nil {
			return routes.Dependencies{}, err
		}
		orderOpts = append(orderOpts, orders.WithPaymentLinks(gateway))
	}
	orderService, err := orders.NewService(orderRepo, productRepo, auditRepo, dbClient, publisher, checkoutMetrics, orderOpts...)
	if err != nil {
		return routes.Dependencies{}, err
	}
	checkoutService, err := checkout.NewService(checkout.Deps{
		Tx:       dbClient,
		Products: productRepo,
		Orders:   orderRepo,
		Cart:     cartRepo,
		Audit:    auditRepo,
		Outbox:   publisher,
		Numbers:  checkout.NewNumberGenerator(cfg.Checkout.OrderNumberPrefix),
		Metrics:  checkoutMetrics,
		Logger:   logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}
	webhookService, err := payments.NewWebhookService(orderService, checkoutMetrics, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.IdempotencyTTL)
	if err != nil {
		return routes.Dependencies{}, err
	}
	guard, err := payments.NewWebhookGuard(manager, payments.WebhookConsumer)
	if err != nil {
		return routes.Dependencies{}, err
	}

	deps := routes.Dependencies{
		Pingers:  map[string]controllers.Pinger{"db": dbClient, "redis": redisClient},
		Store:    redisClient,
		Gatherer: reg,
		HTTP:     metrics.NewHTTPMetrics(reg),
		Products: productService,
		Cart:     cartService,
		Address:  addressService,
		Checkout: checkoutService,
		Orders:   orderService,
		Webhooks: webhookService,
		// without a gateway the proxy answers 502 instead of keeping the API down
		Links:        payments.NewLinkService(nil, checkoutMetrics, logg),
		WebhookGuard: guard,
	}

	if gateway != nil {
		deps.Links = payments.NewLinkService(gateway, checkoutMetrics, logg)
	}
	if cfg.PayMongo.WebhookSecret != "" {
		verifier, err := paymongo.NewVerifier(cfg.PayMongo.WebhookSecret)
		if err != nil {
			return routes.Dependencies{}, err
		}
		deps.WebhookVerifier = verifier
	} else {
		logg.Warn(context.Background(), "paymongo webhook secret not set; webhook deliveries will be rejected")
	}
	return deps, nil
}
