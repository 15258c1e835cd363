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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/payoutcore-backend/api/routes"
	"github.com/angelmondragon/payoutcore-backend/internal/audit"
	"github.com/angelmondragon/payoutcore-backend/internal/cron"
	"github.com/angelmondragon/payoutcore-backend/internal/ledger"
	"github.com/angelmondragon/payoutcore-backend/internal/payouts"
	"github.com/angelmondragon/payoutcore-backend/internal/processor"
	"github.com/angelmondragon/payoutcore-backend/internal/sweeper"
	"github.com/angelmondragon/payoutcore-backend/internal/verification"
	"github.com/angelmondragon/payoutcore-backend/pkg/config"
	"github.com/angelmondragon/payoutcore-backend/pkg/db"
	"github.com/angelmondragon/payoutcore-backend/pkg/logger"
	"github.com/angelmondragon/payoutcore-backend/pkg/metrics"
	"github.com/angelmondragon/payoutcore-backend/pkg/migrate"
	"github.com/angelmondragon/payoutcore-backend/pkg/paypal"
	"github.com/angelmondragon/payoutcore-backend/pkg/redis"
	"github.com/angelmondragon/payoutcore-backend/pkg/stripe"
)

const (
	sweepLockKey    = "sweeper"
	shutdownTimeout = 20 * time.Second
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		requireResource(ctx, logg, "redis", err)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(ctx, "redis not configured; idempotency replay and shared rate limits disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	payoutMetrics := metrics.NewPayoutMetrics(registry)
	sweepMetrics := metrics.NewSweepMetrics(registry)

	var proc processor.Processor
	if cfg.Stripe.Configured() {
		stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
		requireResource(ctx, logg, "stripe", err)
		proc = stripeClient
	} else {
		logg.Warn(ctx, "stripe not configured; processor channels and the sweeper are disabled")
	}

	var payPal payouts.PayPalSender
	if cfg.PayPal.Configured() {
		client, err := paypal.NewClient(ctx, cfg.PayPal, logg)
		requireResource(ctx, logg, "paypal", err)
		payPal = client
	}

	ledgerRepo := ledger.NewRepository(dbClient.DB())
	ledgerSvc, err := ledger.NewService(ledgerRepo, dbClient)
	requireResource(ctx, logg, "ledger service", err)

	auditStore, err := audit.NewStore(ctx, cfg.Audit.MaxEntries, audit.NewRepository(dbClient.DB()), logg)
	requireResource(ctx, logg, "audit ledger", err)

	policies, err := payouts.LoadPolicies(cfg.Payout.PolicyFile)
	requireResource(ctx, logg, "payout policy", err)

	orchestrator, err := payouts.NewOrchestrator(payouts.NewHandlers(payouts.HandlerDeps{
		Processor: proc,
		Ledger:    ledgerSvc,
		PayPal:    payPal,
		Currency:  cfg.Stripe.Currency,
	}), payouts.OrchestratorOptions{
		MaxRetries: cfg.Payout.MaxRetries,
		BaseDelay:  cfg.Payout.BaseDelay,
		HintOnly:   cfg.Payout.HintOnly,
		Policy:     payouts.NewPolicyEnforcer(policies),
		Metrics:    payoutMetrics,
		Logger:     logg,
	})
	requireResource(ctx, logg, "payout orchestrator", err)

	payoutService, err := payouts.NewService(payouts.ServiceConfig{
		MinUnits:                  cfg.Payout.MinUnits,
		Currency:                  cfg.Stripe.Currency,
		DefaultDestinationAccount: cfg.Stripe.DestinationAccount,
		RequestTimeout:            cfg.Payout.RequestTimeout,
	}, verification.NewEngine(cfg.Payout.ConversionRate), orchestrator, auditStore, payoutMetrics, logg)
	requireResource(ctx, logg, "payout service", err)

	deps := routes.Dependencies{
		DB:       dbClient,
		Redis:    redisClient,
		CashOut:  payoutService,
		Audit:    auditStore,
		Revenue:  ledgerSvc,
		Gatherer: registry,
	}

	if proc != nil {
		params := sweeper.Params{
			Config:     sweeper.ConfigFrom(cfg.Sweep, cfg.Stripe),
			Processor:  proc,
			Repository: ledgerRepo,
			Ledger:     ledgerSvc,
			State:      sweeper.NewState(),
			Metrics:    sweepMetrics,
			Logger:     logg,
		}
		if redisClient != nil {
			lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(sweepLockKey), cfg.Sweep.LockTTL)
			requireResource(ctx, logg, "sweep lock", err)
			params.Lock = lock
		}
		sweep, err := sweeper.New(params)
		requireResource(ctx, logg, "sweeper", err)
		deps.Sweeper = sweep
		deps.SweepState = sweep.State()
	}

	addr := ":" + cfg.App.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"channels": fmt.Sprint(orchestrator.Channels()),
	})
	logg.Info(ctx, "starting api server")

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
		logg.Info(shutdownCtx, "api server shut down gracefully")
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
