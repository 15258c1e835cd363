package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/account"
	"github.com/stripe/stripe-go/v84/balance"
	"github.com/stripe/stripe-go/v84/payout"
	"github.com/stripe/stripe-go/v84/transfer"

	"github.com/angelmondragon/payoutcore-backend/internal/processor"
)

// CreateTransfer moves platform funds (or a connected account's funds when
// SourceAccount is set) to the destination account.
func (c *Client) CreateTransfer(ctx context.Context, in processor.TransferInput) (*processor.Transfer, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(in.AmountCents),
		Currency:    stripe.String(c.currencyOr(in.Currency)),
		Destination: stripe.String(in.Destination),
	}
	params.Context = ctx
	if in.Description != "" {
		params.Description = stripe.String(in.Description)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}
	if in.SourceAccount != "" {
		params.SetStripeAccount(in.SourceAccount)
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}

	c.log(ctx, "request", "create_transfer", map[string]any{
		"amount_cents":   in.AmountCents,
		"destination":    in.Destination,
		"source_account": in.SourceAccount,
	})
	tr, err := transfer.New(params)
	if err != nil {
		c.log(ctx, "error", "create_transfer", map[string]any{"error": err.Error()})
		return nil, mapStripeError(err, "create transfer")
	}
	c.log(ctx, "response", "create_transfer", map[string]any{"transfer_id": tr.ID})
	return &processor.Transfer{ID: tr.ID, AmountCents: tr.Amount, Destination: in.Destination}, nil
}

// CreatePayout pays out a connected account's balance to its external account.
func (c *Client) CreatePayout(ctx context.Context, in processor.PayoutInput) (*processor.Payout, error) {
	method := strings.TrimSpace(in.Method)
	if method == "" {
		method = processor.PayoutMethodStandard
	}
	params := &stripe.PayoutParams{
		Amount:   stripe.Int64(in.AmountCents),
		Currency: stripe.String(c.currencyOr(in.Currency)),
		Method:   stripe.String(method),
	}
	params.Context = ctx
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}
	if in.ConnectedAccount != "" {
		params.SetStripeAccount(in.ConnectedAccount)
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}

	c.log(ctx, "request", "create_payout", map[string]any{
		"amount_cents": in.AmountCents,
		"method":       method,
		"account":      in.ConnectedAccount,
	})
	po, err := payout.New(params)
	if err != nil {
		c.log(ctx, "error", "create_payout", map[string]any{"error": err.Error()})
		return nil, mapStripeError(err, "create payout")
	}
	c.log(ctx, "response", "create_payout", map[string]any{"payout_id": po.ID, "status": string(po.Status)})
	return &processor.Payout{
		ID:          po.ID,
		Status:      string(po.Status),
		Method:      method,
		AmountCents: po.Amount,
	}, nil
}

// accountPayload is the subset of the account object the payout core reads.
type accountPayload struct {
	ID             string `json:"id"`
	PayoutsEnabled bool   `json:"payouts_enabled"`
	Capabilities   struct {
		Transfers string `json:"transfers"`
	} `json:"capabilities"`
	ExternalAccounts struct {
		Data []externalAccountPayload `json:"data"`
	} `json:"external_accounts"`
}

type externalAccountPayload struct {
	ID                     string   `json:"id"`
	Object                 string   `json:"object"`
	Last4                  string   `json:"last4"`
	Currency               string   `json:"currency"`
	AvailablePayoutMethods []string `json:"available_payout_methods"`
}

func (p accountPayload) toAccount() *processor.Account {
	acct := &processor.Account{
		ID:              p.ID,
		PayoutsEnabled:  p.PayoutsEnabled,
		TransfersActive: p.Capabilities.Transfers == "active",
	}
	for _, ext := range p.ExternalAccounts.Data {
		mapped := processor.ExternalAccount{
			ID:       ext.ID,
			Type:     ext.Object,
			Last4:    ext.Last4,
			Currency: ext.Currency,
		}
		for _, m := range ext.AvailablePayoutMethods {
			if m == processor.PayoutMethodInstant {
				mapped.SupportsInstant = true
				acct.InstantEligible = true
			}
		}
		acct.ExternalAccounts = append(acct.ExternalAccounts, mapped)
	}
	return acct
}

func (c *Client) fetchAccount(ctx context.Context, accountID, op string) (*accountPayload, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx

	c.log(ctx, "request", op, map[string]any{"account": accountID})
	acct, err := account.GetByID(accountID, params)
	if err != nil {
		c.log(ctx, "error", op, map[string]any{"error": err.Error()})
		return nil, mapStripeError(err, strings.ReplaceAll(op, "_", " "))
	}

	payload := accountPayload{ID: acct.ID, PayoutsEnabled: acct.PayoutsEnabled}
	if acct.LastResponse != nil && len(acct.LastResponse.RawJSON) > 0 {
		if err := json.Unmarshal(acct.LastResponse.RawJSON, &payload); err != nil {
			return nil, fmt.Errorf("decode stripe account: %w", err)
		}
	}
	c.log(ctx, "response", op, map[string]any{
		"account":         payload.ID,
		"payouts_enabled": payload.PayoutsEnabled,
	})
	return &payload, nil
}

// RetrieveAccount returns the capabilities of a connected account.
func (c *Client) RetrieveAccount(ctx context.Context, accountID string) (*processor.Account, error) {
	payload, err := c.fetchAccount(ctx, accountID, "retrieve_account")
	if err != nil {
		return nil, err
	}
	return payload.toAccount(), nil
}

// ListExternalAccounts returns the bank accounts and cards attached to a
// connected account.
func (c *Client) ListExternalAccounts(ctx context.Context, accountID string) ([]processor.ExternalAccount, error) {
	payload, err := c.fetchAccount(ctx, accountID, "list_external_accounts")
	if err != nil {
		return nil, err
	}
	return payload.toAccount().ExternalAccounts, nil
}

type balancePayload struct {
	Available []struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	} `json:"available"`
}

// AvailableBalance returns the available balance in cents for the currency.
// An empty accountID reads the platform balance.
func (c *Client) AvailableBalance(ctx context.Context, accountID, currency string) (int64, error) {
	params := &stripe.BalanceParams{}
	params.Context = ctx
	if accountID != "" {
		params.SetStripeAccount(accountID)
	}

	c.log(ctx, "request", "available_balance", map[string]any{"account": accountID})
	bal, err := balance.Get(params)
	if err != nil {
		c.log(ctx, "error", "available_balance", map[string]any{"error": err.Error()})
		return 0, mapStripeError(err, "available balance")
	}

	var payload balancePayload
	if bal.LastResponse != nil && len(bal.LastResponse.RawJSON) > 0 {
		if err := json.Unmarshal(bal.LastResponse.RawJSON, &payload); err != nil {
			return 0, fmt.Errorf("decode stripe balance: %w", err)
		}
	}

	want := c.currencyOr(currency)
	var total int64
	for _, amt := range payload.Available {
		if strings.EqualFold(amt.Currency, want) {
			total += amt.Amount
		}
	}
	c.log(ctx, "response", "available_balance", map[string]any{"account": accountID, "amount_cents": total})
	return total, nil
}
