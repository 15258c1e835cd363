package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/payoutcore-backend/pkg/db"
	"github.com/angelmondragon/payoutcore-backend/pkg/db/models"
	"github.com/angelmondragon/payoutcore-backend/pkg/enums"
)

// TxRunner runs fn inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines the ledger writes shared by the cash-out flow and the
// sweeper.
type Service interface {
	RecordRevenue(ctx context.Context, input RecordRevenueInput) (*models.RevenueLedgerEntry, error)
	RecordHold(ctx context.Context, input RecordHoldInput) (*models.RevenueLedgerEntry, error)
	FulfilHold(ctx context.Context, entry models.RevenueLedgerEntry, at time.Time) (bool, error)
}

type service struct {
	repo Repository
	tx   TxRunner
}

// RecordRevenueInput is revenue credited by an external collaborator that the
// sweeper should transfer to the destination account.
type RecordRevenueInput struct {
	AmountCents          int64  `json:"amount_cents"`
	Currency             string `json:"currency"`
	DestinationAccountID string `json:"destination_account_id"`
	ExternalReferenceID  string `json:"external_reference_id"`
}

// RecordHoldInput captures the payment hold opened by the contact channel.
type RecordHoldInput struct {
	HoldID               string `json:"hold_id"`
	AmountCents          int64  `json:"amount_cents"`
	Currency             string `json:"currency"`
	DestinationAccountID string `json:"destination_account_id"`
	CorrelationID        string `json:"correlation_id"`
}

// NewService wires a ledger service with the provided repository and
// transaction runner.
func NewService(repo Repository, tx TxRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("ledger transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) RecordRevenue(ctx context.Context, input RecordRevenueInput) (*models.RevenueLedgerEntry, error) {
	if input.AmountCents <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	entry := &models.RevenueLedgerEntry{
		AmountCents:          input.AmountCents,
		Currency:             normalizeCurrency(input.Currency),
		Status:               enums.RevenueLedgerStatusPending,
		DestinationAccountID: optionalString(input.DestinationAccountID),
		ExternalReferenceID:  optionalString(input.ExternalReferenceID),
	}
	if err := s.repo.CreateRevenueEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// RecordHold inserts a payment_hold_created row. Recording the same hold twice
// returns the existing row.
func (s *service) RecordHold(ctx context.Context, input RecordHoldInput) (*models.RevenueLedgerEntry, error) {
	holdID := strings.TrimSpace(input.HoldID)
	if holdID == "" {
		return nil, fmt.Errorf("hold id is required")
	}
	if input.AmountCents <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	entry := &models.RevenueLedgerEntry{
		AmountCents:          input.AmountCents,
		Currency:             normalizeCurrency(input.Currency),
		Status:               enums.RevenueLedgerStatusPaymentHoldCreated,
		HoldID:               &holdID,
		DestinationAccountID: optionalString(input.DestinationAccountID),
		CorrelationID:        optionalString(input.CorrelationID),
	}
	if err := s.repo.CreateRevenueEntry(ctx, entry); err != nil {
		if !db.IsUniqueViolation(err, "") {
			return nil, err
		}
		existing, findErr := s.repo.FindRevenueByHoldID(ctx, holdID)
		if findErr != nil {
			return nil, errors.Join(err, findErr)
		}
		return existing, nil
	}
	return entry, nil
}

// FulfilHold marks a confirmed hold fulfilled and queues a pending transfer
// retry for its funds in the same transaction. It reports false when the row
// was no longer waiting on the hold.
func (s *service) FulfilHold(ctx context.Context, entry models.RevenueLedgerEntry, at time.Time) (bool, error) {
	var fulfilled bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.TransitionRevenue(ctx, entry.ID,
			enums.RevenueLedgerStatusPaymentHoldCreated,
			enums.RevenueLedgerStatusFulfilled,
			RevenueUpdate{ProcessedAt: at},
		)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		sourceID := entry.ID
		retry := &models.TransferRetry{
			AmountCents:          entry.AmountCents,
			Currency:             normalizeCurrency(entry.Currency),
			Status:               enums.TransferRetryStatusPending,
			DestinationAccountID: entry.DestinationAccountID,
			SourceRevenueEntryID: &sourceID,
		}
		if err := repo.CreateTransferRetry(ctx, retry); err != nil {
			return err
		}
		fulfilled = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return fulfilled, nil
}

func normalizeCurrency(value string) string {
	if v := strings.ToLower(strings.TrimSpace(value)); v != "" {
		return v
	}
	return "usd"
}

func optionalString(value string) *string {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	return &v
}
