package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/payoutcore-backend/api/controllers"
	"github.com/angelmondragon/payoutcore-backend/api/middleware"
	"github.com/angelmondragon/payoutcore-backend/internal/sweeper"
	pkgAuth "github.com/angelmondragon/payoutcore-backend/pkg/auth"
	"github.com/angelmondragon/payoutcore-backend/pkg/config"
	"github.com/angelmondragon/payoutcore-backend/pkg/logger"
	"github.com/angelmondragon/payoutcore-backend/pkg/redis"
)

// Dependencies are the services the HTTP surface dispatches to. Redis,
// SweepState and Gatherer are optional.
type Dependencies struct {
	DB         controllers.Pinger
	Redis      *redis.Client
	CashOut    controllers.CashOutService
	Audit      controllers.AuditReader
	Sweeper    controllers.SweepRunner
	SweepState *sweeper.State
	Revenue    controllers.RevenueRecorder
	Gatherer   prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.AllowedOrigins),
	)

	// Typed nil clients must not reach the interface-typed middleware.
	var (
		idempotencyStore redis.IdempotencyStore
		windowStore      middleware.WindowStore
		redisPinger      controllers.Pinger
	)
	if deps.Redis != nil {
		idempotencyStore = deps.Redis
		windowStore = deps.Redis
		redisPinger = deps.Redis
	}

	trustedProxies, err := middleware.ParseTrustedProxies(cfg.HTTP.TrustedProxies)
	if err != nil && logg != nil {
		logg.Error(context.Background(), "ignoring trusted proxies; limiting by peer address", err)
	}
	cashoutLimiter := middleware.NewRateLimiter(middleware.RateLimitPolicy{
		Name:              "cashout",
		RequestsPerMinute: cfg.HTTP.CashoutRatePerMinute,
		Burst:             cfg.HTTP.CashoutBurst,
		TrustedProxies:    trustedProxies,
	}, windowStore, logg)

	r.Get("/health", controllers.Health(controllers.HealthDeps{
		Config:  cfg,
		DB:      deps.DB,
		Redis:   redisPinger,
		Sweeper: deps.SweepState,
	}, logg))

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.With(
		cashoutLimiter.Middleware,
		middleware.Idempotency(idempotencyStore, cfg.Redis.IdempotencyTTL, logg),
	).Post("/cashout", controllers.CashOut(deps.CashOut, logg))

	r.Get("/transactions", controllers.Transactions(deps.Audit, logg))
	r.Get("/transactions/stats", controllers.TransactionStats(deps.Audit, logg))

	r.Group(func(r chi.Router) {
		r.Use(middleware.OperatorAuth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(cfg.JWT, pkgAuth.RoleOperator, logg))
		r.Post("/usd-sweep", controllers.USDSweep(deps.Sweeper, logg))
		r.Post("/transfer-accounts", controllers.TransferAccounts(deps.Sweeper, logg))
		r.Post("/revenue-entries", controllers.RecordRevenue(deps.Revenue, logg))
	})

	return r
}
