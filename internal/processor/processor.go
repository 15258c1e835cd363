// Package processor defines the payment processor contract the payout core
// depends on. Implementations live in pkg/stripe; tests use in-memory fakes.
package processor

import (
	"context"
	"fmt"
)

// Payout methods accepted by CreatePayout.
const (
	PayoutMethodInstant  = "instant"
	PayoutMethodStandard = "standard"
)

// Hold states reported by GetHold and ConfirmHold.
const (
	HoldStatusRequiresPaymentMethod = "requires_payment_method"
	HoldStatusRequiresConfirmation  = "requires_confirmation"
	HoldStatusRequiresAction        = "requires_action"
	HoldStatusProcessing            = "processing"
	HoldStatusSucceeded             = "succeeded"
	HoldStatusCanceled              = "canceled"
)

// Processor is the set of processor operations used by the orchestrator and
// the sweeper. Every mutating call carries an idempotency key.
type Processor interface {
	CreateTransfer(ctx context.Context, in TransferInput) (*Transfer, error)
	CreatePayout(ctx context.Context, in PayoutInput) (*Payout, error)
	RetrieveAccount(ctx context.Context, accountID string) (*Account, error)
	ListExternalAccounts(ctx context.Context, accountID string) ([]ExternalAccount, error)
	CreateHold(ctx context.Context, in HoldInput) (*Hold, error)
	GetHold(ctx context.Context, holdID string) (*Hold, error)
	ConfirmHold(ctx context.Context, holdID, idempotencyKey string) (*Hold, error)
	AvailableBalance(ctx context.Context, accountID, currency string) (int64, error)
}

type TransferInput struct {
	AmountCents    int64
	Currency       string
	Destination    string
	SourceAccount  string
	Description    string
	IdempotencyKey string
	Metadata       map[string]string
}

type Transfer struct {
	ID          string
	AmountCents int64
	Destination string
}

type PayoutInput struct {
	AmountCents      int64
	Currency         string
	Method           string
	ConnectedAccount string
	IdempotencyKey   string
	Metadata         map[string]string
}

type Payout struct {
	ID          string
	Status      string
	Method      string
	AmountCents int64
}

type Account struct {
	ID               string
	PayoutsEnabled   bool
	TransfersActive  bool
	InstantEligible  bool
	ExternalAccounts []ExternalAccount
}

type ExternalAccount struct {
	ID              string
	Type            string
	Last4           string
	Currency        string
	SupportsInstant bool
}

type HoldInput struct {
	AmountCents    int64
	Currency       string
	ContactEmail   string
	Description    string
	IdempotencyKey string
	Metadata       map[string]string
}

type Hold struct {
	ID          string
	Status      string
	AmountCents int64
	Currency    string
}

// Confirmable reports whether ConfirmHold may move the hold forward.
func (h *Hold) Confirmable() bool {
	return h != nil && h.Status == HoldStatusRequiresConfirmation
}

// Succeeded reports whether the hold captured funds.
func (h *Hold) Succeeded() bool {
	return h != nil && h.Status == HoldStatusSucceeded
}

// Error is a processor failure with the SDK details flattened out so callers
// can classify it without importing the SDK.
type Error struct {
	Op         string
	StatusCode int
	Code       string
	Type       string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%d %s)", e.Op, e.Message, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("%s: %s (%d)", e.Op, e.Message, e.StatusCode)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
