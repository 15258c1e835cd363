package models

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/payoutcore-backend/pkg/enums"
)

// AuditEntry is the persisted form of one cash-out outcome.
type AuditEntry struct {
	ID            uint              `gorm:"column:id;primaryKey;autoIncrement"`
	CorrelationID string            `gorm:"column:correlation_id;type:varchar(64);not null;index"`
	RequesterID   string            `gorm:"column:requester_id;type:varchar(128);not null"`
	AmountCents   int64             `gorm:"column:amount_cents;not null"`
	Units         int64             `gorm:"column:units;not null"`
	Channel       string            `gorm:"column:channel;type:varchar(32);not null"`
	Status        enums.AuditStatus `gorm:"column:status;type:varchar(16);not null"`
	ErrorMessage  *string           `gorm:"column:error_message"`
	Verification  json.RawMessage   `gorm:"column:verification;type:jsonb"`
	CreatedAt     time.Time         `gorm:"column:created_at;not null"`
}

func (AuditEntry) TableName() string { return "payout_audit_entries" }
