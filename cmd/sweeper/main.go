package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/payoutcore-backend/internal/cron"
	"github.com/angelmondragon/payoutcore-backend/internal/ledger"
	"github.com/angelmondragon/payoutcore-backend/internal/sweeper"
	"github.com/angelmondragon/payoutcore-backend/pkg/config"
	"github.com/angelmondragon/payoutcore-backend/pkg/db"
	"github.com/angelmondragon/payoutcore-backend/pkg/logger"
	"github.com/angelmondragon/payoutcore-backend/pkg/metrics"
	"github.com/angelmondragon/payoutcore-backend/pkg/migrate"
	"github.com/angelmondragon/payoutcore-backend/pkg/redis"
	"github.com/angelmondragon/payoutcore-backend/pkg/stripe"
)

const (
	cronLockKey  = "sweeper-cron"
	sweepLockKey = "sweeper"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "sweeper"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "sweeper"

	logg = logger.New(logger.Options{
		ServiceName: "sweeper",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
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

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	ledgerRepo := ledger.NewRepository(dbClient.DB())
	ledgerSvc, err := ledger.NewService(ledgerRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	params := sweeper.Params{
		Config:     sweeper.ConfigFrom(cfg.Sweep, cfg.Stripe),
		Processor:  stripeClient,
		Repository: ledgerRepo,
		Ledger:     ledgerSvc,
		Metrics:    metrics.NewSweepMetrics(prometheus.DefaultRegisterer),
		Logger:     logg,
	}
	serviceParams := cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(),
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Sweep.Interval,
	}

	if cfg.Redis.Enabled() {
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

		cronLock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(cronLockKey), cfg.Sweep.LockTTL)
		if err != nil {
			logg.Error(context.Background(), "failed to create cron lock", err)
			os.Exit(1)
		}
		sweepLock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(sweepLockKey), cfg.Sweep.LockTTL)
		if err != nil {
			logg.Error(context.Background(), "failed to create sweep lock", err)
			os.Exit(1)
		}
		serviceParams.Lock = cronLock
		params.Lock = sweepLock
	} else {
		logg.Warn(context.Background(), "redis not configured; running without a cross-instance lock")
	}

	sweep, err := sweeper.New(params)
	if err != nil {
		logg.Error(context.Background(), "failed to create sweeper", err)
		os.Exit(1)
	}
	job, err := cron.NewSweepJob(cron.SweepJobParams{Logger: logg, Sweeper: sweep})
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep job", err)
		os.Exit(1)
	}
	serviceParams.Registry.Register(job)

	service, err := cron.NewService(serviceParams)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"interval":    cfg.Sweep.Interval.String(),
		"misrouted":   sweep.MisroutedConfigured(),
	})
	logg.Info(ctx, "starting sweeper")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "sweeper stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "sweeper shutting down gracefully")
}
