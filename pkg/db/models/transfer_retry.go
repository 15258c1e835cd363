package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/payoutcore-backend/pkg/enums"
)

// TransferRetry is a transfer that still has to reach the destination account.
// KeyAttempt is the attempt that owns the current processor idempotency key;
// it only moves forward after the processor definitively rejected a transfer.
type TransferRetry struct {
	ID                   uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	AmountCents          int64                     `gorm:"column:amount_cents;not null"`
	Currency             string                    `gorm:"column:currency;type:varchar(8);not null;default:'usd'"`
	Status               enums.TransferRetryStatus `gorm:"column:status;type:varchar(16);not null;index"`
	RetryCount           int                       `gorm:"column:retry_count;not null;default:0"`
	KeyAttempt           int                       `gorm:"column:key_attempt;not null;default:1"`
	DestinationAccountID *string                   `gorm:"column:destination_account_id"`
	ExternalReferenceID  *string                   `gorm:"column:external_reference_id"`
	SourceRevenueEntryID *uuid.UUID                `gorm:"column:source_revenue_entry_id;type:uuid"`
	LastError            *string                   `gorm:"column:last_error"`
	LastAttemptAt        *time.Time                `gorm:"column:last_attempt_at"`
	CreatedAt            time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

func (TransferRetry) TableName() string { return "transfer_retries" }

func (r *TransferRetry) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
