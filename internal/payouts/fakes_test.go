package payouts

import (
	"context"
	"sync"
	"time"

	"github.com/angelmondragon/payoutcore-backend/internal/audit"
	"github.com/angelmondragon/payoutcore-backend/internal/ledger"
	"github.com/angelmondragon/payoutcore-backend/internal/processor"
	"github.com/angelmondragon/payoutcore-backend/pkg/db/models"
	"github.com/angelmondragon/payoutcore-backend/pkg/enums"
	"github.com/angelmondragon/payoutcore-backend/pkg/paypal"
)

type fakeProcessor struct {
	mu sync.Mutex

	transferFn func(in processor.TransferInput) (*processor.Transfer, error)
	payoutFn   func(in processor.PayoutInput) (*processor.Payout, error)
	accountFn  func(id string) (*processor.Account, error)
	holdFn     func(in processor.HoldInput) (*processor.Hold, error)

	transfers []processor.TransferInput
	payouts   []processor.PayoutInput
	holds     []processor.HoldInput
	calls     int
}

func (f *fakeProcessor) CreateTransfer(ctx context.Context, in processor.TransferInput) (*processor.Transfer, error) {
	f.mu.Lock()
	f.calls++
	f.transfers = append(f.transfers, in)
	f.mu.Unlock()
	if f.transferFn != nil {
		return f.transferFn(in)
	}
	return &processor.Transfer{ID: "tr_" + in.IdempotencyKey, AmountCents: in.AmountCents, Destination: in.Destination}, nil
}

func (f *fakeProcessor) CreatePayout(ctx context.Context, in processor.PayoutInput) (*processor.Payout, error) {
	f.mu.Lock()
	f.calls++
	f.payouts = append(f.payouts, in)
	f.mu.Unlock()
	if f.payoutFn != nil {
		return f.payoutFn(in)
	}
	return &processor.Payout{ID: "po_" + in.Method, Status: "pending", Method: in.Method, AmountCents: in.AmountCents}, nil
}

func (f *fakeProcessor) RetrieveAccount(ctx context.Context, accountID string) (*processor.Account, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.accountFn != nil {
		return f.accountFn(accountID)
	}
	return &processor.Account{ID: accountID, PayoutsEnabled: true, TransfersActive: true, InstantEligible: true}, nil
}

func (f *fakeProcessor) ListExternalAccounts(ctx context.Context, accountID string) ([]processor.ExternalAccount, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return []processor.ExternalAccount{{ID: "ba_1", Type: "bank_account", Last4: "6789", Currency: "usd"}}, nil
}

func (f *fakeProcessor) CreateHold(ctx context.Context, in processor.HoldInput) (*processor.Hold, error) {
	f.mu.Lock()
	f.calls++
	f.holds = append(f.holds, in)
	f.mu.Unlock()
	if f.holdFn != nil {
		return f.holdFn(in)
	}
	return &processor.Hold{ID: "pi_hold", Status: processor.HoldStatusRequiresConfirmation, AmountCents: in.AmountCents, Currency: in.Currency}, nil
}

func (f *fakeProcessor) GetHold(ctx context.Context, holdID string) (*processor.Hold, error) {
	return &processor.Hold{ID: holdID, Status: processor.HoldStatusRequiresConfirmation}, nil
}

func (f *fakeProcessor) ConfirmHold(ctx context.Context, holdID, idempotencyKey string) (*processor.Hold, error) {
	return &processor.Hold{ID: holdID, Status: processor.HoldStatusSucceeded}, nil
}

func (f *fakeProcessor) AvailableBalance(ctx context.Context, accountID, currency string) (int64, error) {
	return 0, nil
}

func (f *fakeProcessor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeLedger struct {
	holds []ledger.RecordHoldInput
	err   error
}

func (f *fakeLedger) RecordRevenue(ctx context.Context, input ledger.RecordRevenueInput) (*models.RevenueLedgerEntry, error) {
	return &models.RevenueLedgerEntry{AmountCents: input.AmountCents, Status: enums.RevenueLedgerStatusPending}, nil
}

func (f *fakeLedger) RecordHold(ctx context.Context, input ledger.RecordHoldInput) (*models.RevenueLedgerEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.holds = append(f.holds, input)
	holdID := input.HoldID
	return &models.RevenueLedgerEntry{AmountCents: input.AmountCents, Status: enums.RevenueLedgerStatusPaymentHoldCreated, HoldID: &holdID}, nil
}

func (f *fakeLedger) FulfilHold(ctx context.Context, entry models.RevenueLedgerEntry, at time.Time) (bool, error) {
	return true, nil
}

type fakePayPal struct {
	inputs []paypal.EmailPayoutInput
	err    error
}

func (f *fakePayPal) CreateEmailPayout(ctx context.Context, in paypal.EmailPayoutInput) (*paypal.PayoutBatch, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &paypal.PayoutBatch{BatchID: "batch_1", BatchStatus: "PENDING"}, nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
	err     error
}

func (f *fakeAudit) Append(ctx context.Context, entry audit.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return f.err
}

// scriptedHandler returns queued outcomes in order and repeats the last one.
type scriptedHandler struct {
	identity bool
	outcomes []Outcome
	calls    int
}

func (h *scriptedHandler) Identity(req Request) (string, bool) {
	if !h.identity {
		return "", false
	}
	return "id", true
}

func (h *scriptedHandler) Attempt(ctx context.Context, req Request) Outcome {
	h.calls++
	if len(h.outcomes) == 0 {
		return Outcome{ExternalReferenceIDs: []string{"ok"}}
	}
	idx := h.calls - 1
	if idx >= len(h.outcomes) {
		idx = len(h.outcomes) - 1
	}
	return h.outcomes[idx]
}
