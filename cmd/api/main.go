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

	"github.com/angelmondragon/helpdesk-billing/api/controllers"
	"github.com/angelmondragon/helpdesk-billing/api/routes"
	"github.com/angelmondragon/helpdesk-billing/internal/billing"
	"github.com/angelmondragon/helpdesk-billing/internal/entitlements"
	"github.com/angelmondragon/helpdesk-billing/internal/guard"
	"github.com/angelmondragon/helpdesk-billing/internal/notifications"
	"github.com/angelmondragon/helpdesk-billing/internal/plans"
	"github.com/angelmondragon/helpdesk-billing/internal/quota"
	subsvc "github.com/angelmondragon/helpdesk-billing/internal/subscriptions"
	"github.com/angelmondragon/helpdesk-billing/internal/tenants"
	"github.com/angelmondragon/helpdesk-billing/internal/usage"
	"github.com/angelmondragon/helpdesk-billing/pkg/config"
	"github.com/angelmondragon/helpdesk-billing/pkg/db"
	"github.com/angelmondragon/helpdesk-billing/pkg/instance"
	"github.com/angelmondragon/helpdesk-billing/pkg/logger"
	"github.com/angelmondragon/helpdesk-billing/pkg/metrics"
	"github.com/angelmondragon/helpdesk-billing/pkg/migrate"
	"github.com/angelmondragon/helpdesk-billing/pkg/redis"
	pkgstripe "github.com/angelmondragon/helpdesk-billing/pkg/stripe"
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
		Format:      cfg.App.LogFormat,
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

	billingRepo := billing.NewRepository(dbClient.DB())
	overrideRepo := entitlements.NewOverrideRepository(dbClient.DB())
	planRepo := plans.NewRepository(dbClient.DB())
	counters := usage.NewGormStore(dbClient.DB())

	dbResolver, err := entitlements.NewResolver(entitlements.ResolverParams{
		Subscriptions: billingRepo,
		Overrides:     overrideRepo,
		FreeDefaults:  cfg.Billing.FreeDefaults,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create entitlement resolver", err)
		os.Exit(1)
	}

	var (
		resolver    entitlements.Resolver    = dbResolver
		invalidator entitlements.Invalidator = entitlements.NoopInvalidator{}
	)
	if cfg.Entitlements.CacheTTL > 0 {
		cached := entitlements.NewCachedResolver(dbResolver, redisClient, cfg.Entitlements.CacheTTL, logg)
		resolver, invalidator = cached, cached
	}

	planService, err := plans.NewService(planRepo, invalidator)
	if err != nil {
		logg.Error(context.Background(), "failed to create plan service", err)
		os.Exit(1)
	}

	overrideService, err := entitlements.NewOverrideService(overrideRepo, invalidator)
	if err != nil {
		logg.Error(context.Background(), "failed to create override service", err)
		os.Exit(1)
	}

	checkout, err := newCheckoutProvider(cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout provider", err)
		os.Exit(1)
	}

	subscriptionService, err := subsvc.NewService(subsvc.ServiceParams{
		BillingRepo:       billingRepo,
		Counters:          counters,
		Plans:             planService,
		Checkout:          checkout,
		Invalidator:       invalidator,
		TransactionRunner: dbClient,
		Logger:            logg,
		DefaultAnchorDay:  cfg.Billing.DefaultAnchorDay,
		DefaultSuccessURL: cfg.Checkout.DefaultSuccessURL,
		DefaultCancelURL:  cfg.Checkout.DefaultCancelURL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription service", err)
		os.Exit(1)
	}

	periods, err := billing.NewManager(billing.ManagerParams{
		Repo:             billingRepo,
		Counters:         counters,
		DB:               dbClient,
		Logger:           logg,
		DefaultAnchorDay: cfg.Billing.DefaultAnchorDay,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create billing period manager", err)
		os.Exit(1)
	}

	enforcer, err := quota.NewEnforcer(quota.Params{
		Resolver: resolver,
		Periods:  periods,
		Store:    counters,
		Capacity: tenants.NewRepository(dbClient.DB()),
		Policy:   quota.Policy(cfg.Billing.QuotaPolicy),
		Logger:   logg,
		Metrics:  metrics.NewQuotaMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create quota enforcer", err)
		os.Exit(1)
	}

	g, err := guard.New(resolver, enforcer)
	if err != nil {
		logg.Error(context.Background(), "failed to create entitlement guard", err)
		os.Exit(1)
	}

	notificationService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
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
		"env":          cfg.App.Env,
		"addr":         addr,
		"instance":     instance.GetID(),
		"quota_policy": cfg.Billing.QuotaPolicy,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Dependencies{
			Config:        cfg,
			Logger:        logg,
			Pingers:       map[string]controllers.Pinger{"postgres": dbClient, "redis": redisClient},
			Idempotency:   redisClient,
			Gatherer:      prometheus.DefaultGatherer,
			Plans:         planService,
			Subscriptions: subscriptionService,
			Resolver:      resolver,
			Overrides:     overrideService,
			Usage:         enforcer,
			Guard:         g,
			Notifications: notificationService,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shutting down gracefully")
	}
}

func newCheckoutProvider(cfg *config.Config, logg *logger.Logger) (subsvc.CheckoutProvider, error) {
	if !cfg.Stripe.Enabled() {
		return subsvc.NewMockCheckout(cfg.Checkout.MockBaseURL), nil
	}
	client, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		return nil, err
	}
	return subsvc.NewStripeCheckout(client)
}
