package paypal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/payoutcore-backend/internal/processor"
	"github.com/angelmondragon/payoutcore-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/payoutcore-backend/pkg/errors"
	"github.com/angelmondragon/payoutcore-backend/pkg/logger"
)

var (
	errCredentialsRequired = errors.New("paypal client id and secret are required")
	errReceiverRequired    = errors.New("paypal receiver email is required")
)

// Client sends single-item email payouts through the PayPal Payouts API.
type Client struct {
	sdk          *paypal.Client
	emailSubject string
	logger       *logger.Logger

	mu         sync.Mutex
	authorized bool
}

// EmailPayoutInput describes one payout to a PayPal account identified by email.
type EmailPayoutInput struct {
	AmountCents    int64
	Currency       string
	ReceiverEmail  string
	Note           string
	IdempotencyKey string
}

// PayoutBatch is the PayPal batch created for a payout.
type PayoutBatch struct {
	BatchID     string
	BatchStatus string
}

// NewClient builds the PayPal wrapper. The access token is fetched lazily on
// the first payout so boot does not depend on PayPal reachability.
func NewClient(ctx context.Context, cfg config.PayPalConfig, logg *logger.Logger) (*Client, error) {
	if !cfg.Configured() {
		return nil, errCredentialsRequired
	}
	base := paypal.APIBaseSandBox
	if cfg.IsLive() {
		base = paypal.APIBaseLive
	}
	return newClientWithBase(ctx, cfg, base, logg)
}

func newClientWithBase(ctx context.Context, cfg config.PayPalConfig, base string, logg *logger.Logger) (*Client, error) {
	sdk, err := paypal.NewClient(strings.TrimSpace(cfg.ClientID), strings.TrimSpace(cfg.ClientSecret), base)
	if err != nil {
		return nil, fmt.Errorf("init paypal client: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "base_url", base), "paypal client initialized")
	}
	return &Client{sdk: sdk, emailSubject: cfg.EmailSubject, logger: logg}, nil
}

func (c *Client) ensureToken(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.authorized {
		return nil
	}
	if _, err := c.sdk.GetAccessToken(ctx); err != nil {
		return mapPayPalError(err, "get access token")
	}
	c.authorized = true
	return nil
}

// CreateEmailPayout creates a payout batch with one EMAIL item. The
// idempotency key becomes the sender batch id, which PayPal deduplicates.
func (c *Client) CreateEmailPayout(ctx context.Context, in EmailPayoutInput) (*PayoutBatch, error) {
	if strings.TrimSpace(in.ReceiverEmail) == "" {
		return nil, errReceiverRequired
	}
	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "USD"
	}
	payout := paypal.Payout{
		SenderBatchHeader: &paypal.SenderBatchHeader{
			SenderBatchID: in.IdempotencyKey,
			EmailSubject:  c.emailSubject,
		},
		Items: []paypal.PayoutItem{{
			RecipientType: "EMAIL",
			Receiver:      in.ReceiverEmail,
			Amount: &paypal.AmountPayout{
				Currency: currency,
				Value:    decimal.New(in.AmountCents, -2).StringFixed(2),
			},
			Note:         in.Note,
			SenderItemID: in.IdempotencyKey,
		}},
	}

	c.log(ctx, "request", "create_payout", map[string]any{"amount_cents": in.AmountCents, "currency": currency})
	resp, err := c.sdk.CreatePayout(ctx, payout)
	if err != nil {
		c.log(ctx, "error", "create_payout", map[string]any{"error": err.Error()})
		return nil, mapPayPalError(err, "create payout")
	}

	batch := &PayoutBatch{}
	if resp != nil && resp.BatchHeader != nil {
		batch.BatchID = resp.BatchHeader.PayoutBatchID
		batch.BatchStatus = resp.BatchHeader.BatchStatus
	}
	c.log(ctx, "response", "create_payout", map[string]any{"batch_id": batch.BatchID, "status": batch.BatchStatus})
	return batch, nil
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{"operation": op, "phase": phase, "provider": "paypal"}
	for k, v := range fields {
		logFields[k] = v
	}
	ctx = c.logger.WithFields(ctx, logFields)
	if phase == "error" {
		c.logger.Error(ctx, fmt.Sprintf("paypal %s", op), errors.New(fmt.Sprint(fields["error"])))
		return
	}
	c.logger.Info(ctx, fmt.Sprintf("paypal %s", phase))
}

func mapPayPalError(err error, op string) error {
	var apiErr *paypal.ErrorResponse
	if errors.As(err, &apiErr) {
		status := 0
		if apiErr.Response != nil {
			status = apiErr.Response.StatusCode
		}
		perr := &processor.Error{
			Op:         op,
			StatusCode: status,
			Code:       strings.ToLower(apiErr.Name),
			Message:    apiErr.Message,
			Err:        err,
		}
		return pkgerrors.Wrap(codeForStatus(status), perr, fmt.Sprintf("paypal %s failed", op))
	}
	perr := &processor.Error{Op: op, Message: err.Error(), Err: err}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, perr, fmt.Sprintf("paypal %s failed", op))
}

func codeForStatus(status int) pkgerrors.Code {
	switch {
	case status == 401:
		return pkgerrors.CodeUnauthorized
	case status == 403:
		return pkgerrors.CodeForbidden
	case status == 429:
		return pkgerrors.CodeRateLimit
	case status >= 400 && status < 500:
		return pkgerrors.CodeProcessor
	default:
		return pkgerrors.CodeDependency
	}
}
