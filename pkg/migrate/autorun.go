package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/payoutcore-backend/pkg/config"
	"github.com/angelmondragon/payoutcore-backend/pkg/db"
	"github.com/angelmondragon/payoutcore-backend/pkg/db/models"
	"github.com/angelmondragon/payoutcore-backend/pkg/logger"
)

// MaybeRunDev executes migrations automatically when the app is running in dev mode and
// the feature flag is enabled. SQLite databases are migrated from the gorm models since
// the goose files target Postgres.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	if cfg.FeatureFlags.UseSQLite {
		ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "path": cfg.DB.SQLitePath})
		logg.Info(ctx, "running gorm auto-migrate (sqlite dev auto-run)")
		if err := AutoMigrateModels(ctx, client); err != nil {
			return err
		}
		logg.Info(ctx, "gorm auto-migrate completed")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	meta := map[string]any{"env": cfg.App.Env, "dir": DefaultDir}
	ctx = logg.WithFields(ctx, meta)
	logg.Info(ctx, "running Goose migrations (dev auto-run)")

	if err := Run(ctx, sqlDB, DefaultDir, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "Goose migrations completed")
	return nil
}

// AutoMigrateModels creates the payout tables from the gorm models.
func AutoMigrateModels(ctx context.Context, client *db.Client) error {
	if err := client.DB().WithContext(ctx).AutoMigrate(
		&models.AuditEntry{},
		&models.RevenueLedgerEntry{},
		&models.TransferRetry{},
	); err != nil {
		return fmt.Errorf("auto-migrate models: %w", err)
	}
	return nil
}
