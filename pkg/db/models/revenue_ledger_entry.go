package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/payoutcore-backend/pkg/enums"
)

// RevenueLedgerEntry is revenue waiting to be moved to the destination
// account, or a payment hold waiting to be confirmed.
type RevenueLedgerEntry struct {
	ID                   uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	AmountCents          int64                     `gorm:"column:amount_cents;not null"`
	Currency             string                    `gorm:"column:currency;type:varchar(8);not null;default:'usd'"`
	Status               enums.RevenueLedgerStatus `gorm:"column:status;type:varchar(32);not null;index"`
	DestinationAccountID *string                   `gorm:"column:destination_account_id"`
	ExternalReferenceID  *string                   `gorm:"column:external_reference_id"`
	HoldID               *string                   `gorm:"column:hold_id;uniqueIndex"`
	CorrelationID        *string                   `gorm:"column:correlation_id"`
	LastError            *string                   `gorm:"column:last_error"`
	CreatedAt            time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
	ProcessedAt          *time.Time                `gorm:"column:processed_at"`
}

func (RevenueLedgerEntry) TableName() string { return "revenue_ledger_entries" }

func (e *RevenueLedgerEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
