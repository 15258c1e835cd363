package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/payoutcore-backend/pkg/db/models"
	"github.com/angelmondragon/payoutcore-backend/pkg/enums"
)

// ErrInvalidTransition is returned when a revenue status change would move a
// row backwards.
var ErrInvalidTransition = errors.New("invalid revenue ledger transition")

// Repository manages persistence for revenue ledger rows and transfer retries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateRevenueEntry(ctx context.Context, entry *models.RevenueLedgerEntry) error
	FindRevenueByHoldID(ctx context.Context, holdID string) (*models.RevenueLedgerEntry, error)
	ListRevenueByStatus(ctx context.Context, status enums.RevenueLedgerStatus, minAmountCents int64, limit int) ([]models.RevenueLedgerEntry, error)
	CountRevenueByStatus(ctx context.Context, status enums.RevenueLedgerStatus, minAmountCents int64) (int64, error)
	TransitionRevenue(ctx context.Context, id uuid.UUID, from, to enums.RevenueLedgerStatus, update RevenueUpdate) (bool, error)
	RecordRevenueError(ctx context.Context, id uuid.UUID, status enums.RevenueLedgerStatus, message string) error

	CreateTransferRetry(ctx context.Context, retry *models.TransferRetry) error
	ListRetryable(ctx context.Context, maxRetryCount, limit int) ([]models.TransferRetry, error)
	CountEscalated(ctx context.Context, maxRetryCount int) (int64, error)
	CompleteTransferRetry(ctx context.Context, id uuid.UUID, reference string, at time.Time) (bool, error)
	RecordRetryFailure(ctx context.Context, id uuid.UUID, message string, at time.Time, rotateKey bool) error
}

// RevenueUpdate carries the columns written alongside a status transition.
type RevenueUpdate struct {
	ExternalReferenceID string
	ProcessedAt         time.Time
}

var retryableStatuses = []enums.TransferRetryStatus{
	enums.TransferRetryStatusFailed,
	enums.TransferRetryStatusPending,
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateRevenueEntry(ctx context.Context, entry *models.RevenueLedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindRevenueByHoldID(ctx context.Context, holdID string) (*models.RevenueLedgerEntry, error) {
	var entry models.RevenueLedgerEntry
	if err := r.db.WithContext(ctx).Where("hold_id = ?", holdID).First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) ListRevenueByStatus(ctx context.Context, status enums.RevenueLedgerStatus, minAmountCents int64, limit int) ([]models.RevenueLedgerEntry, error) {
	var entries []models.RevenueLedgerEntry
	query := r.db.WithContext(ctx).
		Where("status = ?", status).
		Where("amount_cents >= ?", minAmountCents).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) CountRevenueByStatus(ctx context.Context, status enums.RevenueLedgerStatus, minAmountCents int64) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.RevenueLedgerEntry{}).
		Where("status = ?", status).
		Where("amount_cents >= ?", minAmountCents).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// TransitionRevenue moves a row from one status to the next only while it is
// still in the expected status. It reports false when another writer got there
// first.
func (r *repository) TransitionRevenue(ctx context.Context, id uuid.UUID, from, to enums.RevenueLedgerStatus, update RevenueUpdate) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	values := map[string]any{
		"status":     to,
		"last_error": nil,
	}
	if update.ExternalReferenceID != "" {
		values["external_reference_id"] = update.ExternalReferenceID
	}
	if !update.ProcessedAt.IsZero() {
		values["processed_at"] = update.ProcessedAt
	}

	res := r.db.WithContext(ctx).
		Model(&models.RevenueLedgerEntry{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RecordRevenueError stores the last failure without touching the status.
func (r *repository) RecordRevenueError(ctx context.Context, id uuid.UUID, status enums.RevenueLedgerStatus, message string) error {
	return r.db.WithContext(ctx).
		Model(&models.RevenueLedgerEntry{}).
		Where("id = ? AND status = ?", id, status).
		Update("last_error", message).Error
}

func (r *repository) CreateTransferRetry(ctx context.Context, retry *models.TransferRetry) error {
	return r.db.WithContext(ctx).Create(retry).Error
}

func (r *repository) ListRetryable(ctx context.Context, maxRetryCount, limit int) ([]models.TransferRetry, error) {
	var retries []models.TransferRetry
	query := r.db.WithContext(ctx).
		Where("status IN ?", retryableStatuses).
		Where("retry_count < ?", maxRetryCount).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&retries).Error; err != nil {
		return nil, err
	}
	return retries, nil
}

// CountEscalated counts unfinished retries that reached the ceiling and need
// manual intervention.
func (r *repository) CountEscalated(ctx context.Context, maxRetryCount int) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.TransferRetry{}).
		Where("status IN ?", retryableStatuses).
		Where("retry_count >= ?", maxRetryCount).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repository) CompleteTransferRetry(ctx context.Context, id uuid.UUID, reference string, at time.Time) (bool, error) {
	values := map[string]any{
		"status":          enums.TransferRetryStatusCompleted,
		"retry_count":     gorm.Expr("retry_count + 1"),
		"last_attempt_at": at,
		"last_error":      nil,
	}
	if reference != "" {
		values["external_reference_id"] = reference
	}
	res := r.db.WithContext(ctx).
		Model(&models.TransferRetry{}).
		Where("id = ? AND status IN ?", id, retryableStatuses).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RecordRetryFailure bumps the retry counter and keeps the status as is.
// rotateKey moves the row to a fresh idempotency key for its next attempt.
func (r *repository) RecordRetryFailure(ctx context.Context, id uuid.UUID, message string, at time.Time, rotateKey bool) error {
	values := map[string]any{
		"retry_count":     gorm.Expr("retry_count + 1"),
		"last_attempt_at": at,
		"last_error":      message,
	}
	if rotateKey {
		values["key_attempt"] = gorm.Expr("key_attempt + 1")
	}
	return r.db.WithContext(ctx).
		Model(&models.TransferRetry{}).
		Where("id = ? AND status IN ?", id, retryableStatuses).
		Updates(values).Error
}
