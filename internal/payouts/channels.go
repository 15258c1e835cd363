package payouts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/payoutcore-backend/internal/ledger"
	"github.com/angelmondragon/payoutcore-backend/internal/processor"
	"github.com/angelmondragon/payoutcore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/payoutcore-backend/pkg/errors"
	"github.com/angelmondragon/payoutcore-backend/pkg/paypal"
)

var errIdentityMissing = errors.New("payout channel identity missing")

// ChannelHandler performs one attempt on a payout rail.
type ChannelHandler interface {
	// Identity returns the destination or contact the channel pays, and false
	// when the request does not carry one.
	Identity(req Request) (string, bool)
	Attempt(ctx context.Context, req Request) Outcome
}

// PayPalSender is the PayPal surface the paypal channel needs.
type PayPalSender interface {
	CreateEmailPayout(ctx context.Context, in paypal.EmailPayoutInput) (*paypal.PayoutBatch, error)
}

// Handlers maps each channel to its handler.
type Handlers map[enums.PayoutChannel]ChannelHandler

// HandlerDeps carries what the built-in handlers call into.
type HandlerDeps struct {
	Processor processor.Processor
	Ledger    ledger.Service
	PayPal    PayPalSender
	Currency  string
}

// NewHandlers builds the handler table. The paypal channel is only present
// when a PayPal client is supplied.
func NewHandlers(deps HandlerDeps) Handlers {
	handlers := Handlers{}
	if deps.Processor != nil {
		handlers[enums.PayoutChannelInstant] = &instantHandler{proc: deps.Processor, currency: deps.Currency}
		handlers[enums.PayoutChannelStandard] = &standardHandler{proc: deps.Processor, currency: deps.Currency}
		handlers[enums.PayoutChannelContactHold] = &contactHoldHandler{
			proc:     deps.Processor,
			ledger:   deps.Ledger,
			currency: deps.Currency,
		}
	}
	if deps.PayPal != nil {
		handlers[enums.PayoutChannelPayPal] = &paypalHandler{client: deps.PayPal, currency: deps.Currency}
	}
	return handlers
}

// transferFunded is implemented by handlers whose payout is funded by the
// shared per-request transfer.
type transferFunded interface {
	fundedByTransfer() bool
}

func fundedByTransfer(h ChannelHandler) bool {
	tf, ok := h.(transferFunded)
	return ok && tf.fundedByTransfer()
}

func destinationIdentity(req Request) (string, bool) {
	dest := strings.TrimSpace(req.DestinationAccountID)
	return dest, dest != ""
}

func contactIdentity(req Request) (string, bool) {
	email := strings.TrimSpace(req.ContactEmail)
	return email, email != ""
}

// transferThenPayout moves the funds to the connected account and pays them
// out with the given method. The transfer key is shared by instant and
// standard so a fallback reuses the first transfer.
func transferThenPayout(ctx context.Context, proc processor.Processor, req Request, currency string, channel enums.PayoutChannel, method string) Outcome {
	dest, _ := destinationIdentity(req)
	tr, err := proc.CreateTransfer(ctx, processor.TransferInput{
		AmountCents:    req.AmountCents,
		Currency:       currencyFor(req, currency),
		Destination:    dest,
		Description:    fmt.Sprintf("cash-out %s", req.CorrelationID),
		IdempotencyKey: transferKey(req.CorrelationID),
		Metadata:       attemptMetadata(req, channel),
	})
	if err != nil {
		return Outcome{Err: err}
	}

	po, err := proc.CreatePayout(ctx, processor.PayoutInput{
		AmountCents:      req.AmountCents,
		Currency:         currencyFor(req, currency),
		Method:           method,
		ConnectedAccount: dest,
		IdempotencyKey:   payoutKey(req.CorrelationID, channel),
		Metadata:         attemptMetadata(req, channel),
	})
	if err != nil {
		return Outcome{ExternalReferenceIDs: []string{tr.ID}, TransferID: tr.ID, Err: err}
	}
	return Outcome{ExternalReferenceIDs: []string{tr.ID, po.ID}, TransferID: tr.ID}
}

type instantHandler struct {
	proc     processor.Processor
	currency string
}

func (h *instantHandler) fundedByTransfer() bool { return true }

func (h *instantHandler) Identity(req Request) (string, bool) {
	return destinationIdentity(req)
}

func (h *instantHandler) Attempt(ctx context.Context, req Request) Outcome {
	dest, _ := destinationIdentity(req)
	acct, err := h.proc.RetrieveAccount(ctx, dest)
	if err != nil {
		return Outcome{Err: err}
	}
	if !acct.PayoutsEnabled || !acct.InstantEligible {
		return Outcome{Err: &processor.Error{
			Op:         "instant payout",
			StatusCode: 400,
			Code:       "instant_payouts_unsupported",
			Message:    fmt.Sprintf("account %s cannot receive instant payouts", dest),
		}}
	}
	return transferThenPayout(ctx, h.proc, req, h.currency, enums.PayoutChannelInstant, processor.PayoutMethodInstant)
}

type standardHandler struct {
	proc     processor.Processor
	currency string
}

func (h *standardHandler) fundedByTransfer() bool { return true }

func (h *standardHandler) Identity(req Request) (string, bool) {
	return destinationIdentity(req)
}

func (h *standardHandler) Attempt(ctx context.Context, req Request) Outcome {
	dest, _ := destinationIdentity(req)
	externals, err := h.proc.ListExternalAccounts(ctx, dest)
	if err != nil {
		return Outcome{Err: err}
	}
	if len(externals) == 0 {
		return Outcome{Err: &processor.Error{
			Op:         "standard payout",
			StatusCode: 400,
			Code:       "no_account",
			Message:    fmt.Sprintf("account %s has no external account", dest),
		}}
	}
	return transferThenPayout(ctx, h.proc, req, h.currency, enums.PayoutChannelStandard, processor.PayoutMethodStandard)
}

type contactHoldHandler struct {
	proc     processor.Processor
	ledger   ledger.Service
	currency string
}

func (h *contactHoldHandler) Identity(req Request) (string, bool) {
	return contactIdentity(req)
}

func (h *contactHoldHandler) Attempt(ctx context.Context, req Request) Outcome {
	email, _ := contactIdentity(req)
	hold, err := h.proc.CreateHold(ctx, processor.HoldInput{
		AmountCents:    req.AmountCents,
		Currency:       currencyFor(req, h.currency),
		ContactEmail:   email,
		Description:    fmt.Sprintf("cash-out %s", req.CorrelationID),
		IdempotencyKey: holdKey(req.CorrelationID),
		Metadata:       attemptMetadata(req, enums.PayoutChannelContactHold),
	})
	if err != nil {
		return Outcome{Err: err}
	}
	refs := []string{hold.ID}

	if h.ledger == nil {
		return Outcome{ExternalReferenceIDs: refs, Err: pkgerrors.New(pkgerrors.CodeConfiguration, "hold ledger not configured")}
	}
	// the hold key makes a retry return the same hold, so a failed insert is
	// safe to retry
	if _, err := h.ledger.RecordHold(ctx, ledger.RecordHoldInput{
		HoldID:               hold.ID,
		AmountCents:          req.AmountCents,
		Currency:             currencyFor(req, h.currency),
		DestinationAccountID: req.DestinationAccountID,
		CorrelationID:        req.CorrelationID,
	}); err != nil {
		return Outcome{ExternalReferenceIDs: refs, Err: pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment hold")}
	}
	return Outcome{ExternalReferenceIDs: refs}
}

type paypalHandler struct {
	client   PayPalSender
	currency string
}

func (h *paypalHandler) Identity(req Request) (string, bool) {
	return contactIdentity(req)
}

func (h *paypalHandler) Attempt(ctx context.Context, req Request) Outcome {
	email, _ := contactIdentity(req)
	batch, err := h.client.CreateEmailPayout(ctx, paypal.EmailPayoutInput{
		AmountCents:    req.AmountCents,
		Currency:       strings.ToUpper(currencyFor(req, h.currency)),
		ReceiverEmail:  email,
		Note:           fmt.Sprintf("cash-out %s", req.CorrelationID),
		IdempotencyKey: paypalKey(req.CorrelationID),
	})
	if err != nil {
		return Outcome{Err: err}
	}
	return Outcome{ExternalReferenceIDs: []string{batch.BatchID}}
}

func currencyFor(req Request, fallback string) string {
	if c := strings.TrimSpace(req.Currency); c != "" {
		return strings.ToLower(c)
	}
	if fallback != "" {
		return strings.ToLower(fallback)
	}
	return "usd"
}

func attemptMetadata(req Request, channel enums.PayoutChannel) map[string]string {
	meta := make(map[string]string, len(req.Metadata)+3)
	for k, v := range req.Metadata {
		meta[k] = v
	}
	meta["correlation_id"] = req.CorrelationID
	meta["requester_id"] = req.RequesterID
	meta["channel"] = channel.String()
	return meta
}
