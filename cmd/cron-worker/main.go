package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/helpdesk-billing/internal/billing"
	"github.com/angelmondragon/helpdesk-billing/internal/cron"
	"github.com/angelmondragon/helpdesk-billing/internal/entitlements"
	"github.com/angelmondragon/helpdesk-billing/internal/notifications"
	"github.com/angelmondragon/helpdesk-billing/internal/quota"
	"github.com/angelmondragon/helpdesk-billing/internal/tenants"
	"github.com/angelmondragon/helpdesk-billing/internal/usage"
	"github.com/angelmondragon/helpdesk-billing/pkg/config"
	"github.com/angelmondragon/helpdesk-billing/pkg/db"
	"github.com/angelmondragon/helpdesk-billing/pkg/instance"
	"github.com/angelmondragon/helpdesk-billing/pkg/logger"
	"github.com/angelmondragon/helpdesk-billing/pkg/metrics"
	"github.com/angelmondragon/helpdesk-billing/pkg/migrate"
	pkgpubsub "github.com/angelmondragon/helpdesk-billing/pkg/pubsub"
	"github.com/angelmondragon/helpdesk-billing/pkg/redis"
)

const (
	sinkRedis  = "redis"
	sinkStore  = "store"
	sinkPubSub = "pubsub"
)

func main() {
	once := flag.Bool("once", false, "run every job a single time and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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
	notificationRepo := notifications.NewRepository(dbClient.DB())
	counters := usage.NewGormStore(dbClient.DB())

	manager, err := billing.NewManager(billing.ManagerParams{
		Repo:             billingRepo,
		Counters:         counters,
		DB:               dbClient,
		Logger:           logg,
		DefaultAnchorDay: cfg.Billing.DefaultAnchorDay,
		BatchSize:        cfg.Cron.BatchSize,
	})
	must(logg, "failed to create billing period manager", err)

	resolver, err := entitlements.NewResolver(entitlements.ResolverParams{
		Subscriptions: billingRepo,
		Overrides:     entitlements.NewOverrideRepository(dbClient.DB()),
		FreeDefaults:  cfg.Billing.FreeDefaults,
	})
	must(logg, "failed to create entitlement resolver", err)

	quotaMetrics := metrics.NewQuotaMetrics(prometheus.DefaultRegisterer)
	enforcer, err := quota.NewEnforcer(quota.Params{
		Resolver: resolver,
		Periods:  manager,
		Store:    counters,
		Capacity: tenants.NewRepository(dbClient.DB()),
		Policy:   quota.Policy(cfg.Billing.QuotaPolicy),
		Logger:   logg,
		Metrics:  quotaMetrics,
	})
	must(logg, "failed to create quota enforcer", err)

	sink, closeSink, err := buildSink(cfg, logg, redisClient, notificationRepo)
	must(logg, "failed to configure quota alert sinks", err)
	defer closeSink()

	scheduler, err := notifications.NewScheduler(notifications.SchedulerParams{
		Tenants:   billingRepo,
		Resolver:  resolver,
		Usage:     enforcer,
		Sink:      sink,
		Logger:    logg,
		Metrics:   quotaMetrics,
		BatchSize: cfg.Cron.BatchSize,
	})
	must(logg, "failed to create quota alert scheduler", err)

	jobMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	rollover, err := cron.NewPeriodRolloverJob(cron.PeriodRolloverJobParams{Logger: logg, Manager: manager, Metrics: jobMetrics})
	must(logg, "failed to create period rollover job", err)
	retention, err := cron.NewUsageRetentionJob(cron.UsageRetentionJobParams{
		Logger:    logg,
		Store:     counters,
		Metrics:   jobMetrics,
		Retention: time.Duration(cfg.Cron.UsageRetention) * 24 * time.Hour,
	})
	must(logg, "failed to create usage retention job", err)
	sweep, err := cron.NewQuotaSweepJob(cron.QuotaSweepJobParams{Logger: logg, Scheduler: scheduler, Metrics: jobMetrics})
	must(logg, "failed to create quota sweep job", err)
	cleanup, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		Repository: notificationRepo,
		Metrics:    jobMetrics,
		Retention:  cfg.Notifications.RetentionDays,
	})
	must(logg, "failed to create notification cleanup job", err)

	periodService := newService(logg, redisClient, jobMetrics, "billing-periods", cfg.Cron.RolloverInterval, rollover, retention)
	alertService := newService(logg, redisClient, jobMetrics, "quota-alerts", cfg.Cron.SweepInterval, sweep, cleanup)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	logg.Info(logg.WithField(ctx, "once", *once), "starting cron worker")

	group, groupCtx := errgroup.WithContext(ctx)
	for _, svc := range []*cron.Service{periodService, alertService} {
		run := svc.Run
		if *once {
			run = svc.RunOnce
		}
		group.Go(func() error { return run(groupCtx) })
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func newService(logg *logger.Logger, redisClient *redis.Client, jobMetrics *metrics.CronJobMetrics, name string, interval time.Duration, jobs ...cron.Job) *cron.Service {
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(name), 0)
	must(logg, "failed to create cron lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Name:     name,
		Logger:   logg,
		Registry: cron.NewRegistry(jobs...),
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: interval,
	})
	must(logg, "failed to create cron service", err)
	return service
}

// buildSink fans out to every configured sink; the returned func releases
// the Pub/Sub client when one was opened.
func buildSink(cfg *config.Config, logg *logger.Logger, redisClient *redis.Client, repo notifications.Repository) (notifications.Sink, func(), error) {
	closer := func() {}
	var sinks []notifications.Sink

	if cfg.Notifications.SinkEnabled(sinkRedis) {
		sinks = append(sinks, notifications.NewRedisSink(redisClient))
	}
	if cfg.Notifications.SinkEnabled(sinkStore) {
		sinks = append(sinks, notifications.NewStoreSink(repo))
	}
	if cfg.Notifications.SinkEnabled(sinkPubSub) {
		client, err := pkgpubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return nil, closer, err
		}
		closer = func() {
			if err := client.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}
		pubsubSink, err := notifications.NewPubSubSink(client.QuotaAlertPublisher())
		if err != nil {
			closer()
			return nil, func() {}, err
		}
		sinks = append(sinks, pubsubSink)
	}

	if len(sinks) == 0 {
		logg.Warn(context.Background(), "no quota alert sinks configured, persisting in-app only")
		sinks = append(sinks, notifications.NewStoreSink(repo))
	}
	return notifications.NewFanoutSink(sinks...), closer, nil
}

func must(logg *logger.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
