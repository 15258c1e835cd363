package audit

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/angelmondragon/payoutcore-backend/pkg/db/models"
)

// Repository persists audit entries.
type Repository interface {
	Insert(ctx context.Context, entry *models.AuditEntry) error
	TrimTo(ctx context.Context, keep int) error
	ListNewest(ctx context.Context, limit int) ([]models.AuditEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an audit repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, entry *models.AuditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// TrimTo deletes everything older than the newest keep rows.
func (r *repository) TrimTo(ctx context.Context, keep int) error {
	if keep <= 0 {
		return nil
	}
	var cutoff models.AuditEntry
	err := r.db.WithContext(ctx).
		Select("id").
		Order("id DESC").
		Offset(keep - 1).
		Limit(1).
		Take(&cutoff).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Where("id < ?", cutoff.ID).
		Delete(&models.AuditEntry{}).Error
}

// ListNewest returns up to limit rows, newest first.
func (r *repository) ListNewest(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	var rows []models.AuditEntry
	query := r.db.WithContext(ctx).Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
