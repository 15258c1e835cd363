package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/payoutcore-backend/api/responses"
	"github.com/angelmondragon/payoutcore-backend/internal/sweeper"
	"github.com/angelmondragon/payoutcore-backend/pkg/config"
	"github.com/angelmondragon/payoutcore-backend/pkg/logger"
)

const healthPingTimeout = 2 * time.Second

// Pinger is satisfied by the database and Redis clients.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthDeps are the collaborators the health route reports on. Redis and
// Sweeper may be nil.
type HealthDeps struct {
	Config  *config.Config
	DB      Pinger
	Redis   Pinger
	Sweeper *sweeper.State
}

// Health reports configuration and dependency status. It never calls the
// payment processor.
func Health(deps HealthDeps, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()

		cfg := deps.Config
		if cfg == nil {
			cfg = &config.Config{}
		}

		status := "ok"
		database := checkDependency(ctx, deps.DB, logg, "database")
		if database == "error" {
			status = "degraded"
		}
		redisStatus := checkDependency(ctx, deps.Redis, logg, "redis")
		if redisStatus == "error" {
			status = "degraded"
		}

		body := map[string]any{
			"status":                status,
			"env":                   cfg.App.Env,
			"processor":             configured(cfg.Stripe.Configured()),
			"paypal":                configured(cfg.PayPal.Configured()),
			"destinationConfigured": cfg.Stripe.DestinationAccount != "",
			"misroutedConfigured":   cfg.Sweep.MisroutedAccountID != "",
			"database":              database,
			"redis":                 redisStatus,
		}
		if deps.Sweeper != nil {
			body["sweeper"] = deps.Sweeper.Snapshot()
		}

		code := http.StatusOK
		if status != "ok" {
			code = http.StatusServiceUnavailable
		}
		responses.WriteJSON(w, code, body)
	}
}

func checkDependency(ctx context.Context, p Pinger, logg *logger.Logger, name string) string {
	if p == nil {
		return "disabled"
	}
	if err := p.Ping(ctx); err != nil {
		if logg != nil {
			logg.Error(logg.WithField(ctx, "dependency", name), "health check failed", err)
		}
		return "error"
	}
	return "ok"
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "not_configured"
}
