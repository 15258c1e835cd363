package stripe

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"

	"github.com/angelmondragon/payoutcore-backend/internal/processor"
)

// CreateHold opens a payment intent addressed to the contact email. The intent
// is left unconfirmed; the sweeper confirms it later.
func (c *Client) CreateHold(ctx context.Context, in processor.HoldInput) (*processor.Hold, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(in.AmountCents),
		Currency:           stripe.String(c.currencyOr(in.Currency)),
		ReceiptEmail:       stripe.String(in.ContactEmail),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx
	if in.Description != "" {
		params.Description = stripe.String(in.Description)
	}
	if c.holdPaymentMethod != "" {
		params.PaymentMethod = stripe.String(c.holdPaymentMethod)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}
	params.AddMetadata("contact_email", in.ContactEmail)
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}

	c.log(ctx, "request", "create_hold", map[string]any{
		"amount_cents":  in.AmountCents,
		"contact_email": in.ContactEmail,
	})
	pi, err := paymentintent.New(params)
	if err != nil {
		c.log(ctx, "error", "create_hold", map[string]any{"error": err.Error()})
		return nil, mapStripeError(err, "create hold")
	}
	c.log(ctx, "response", "create_hold", map[string]any{"hold_id": pi.ID, "status": string(pi.Status)})
	return holdFromIntent(pi), nil
}

// GetHold reads the current state of a hold.
func (c *Client) GetHold(ctx context.Context, holdID string) (*processor.Hold, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	c.log(ctx, "request", "get_hold", map[string]any{"hold_id": holdID})
	pi, err := paymentintent.Get(holdID, params)
	if err != nil {
		c.log(ctx, "error", "get_hold", map[string]any{"error": err.Error()})
		return nil, mapStripeError(err, "get hold")
	}
	c.log(ctx, "response", "get_hold", map[string]any{"hold_id": pi.ID, "status": string(pi.Status)})
	return holdFromIntent(pi), nil
}

// ConfirmHold confirms a hold that is waiting for confirmation.
func (c *Client) ConfirmHold(ctx context.Context, holdID, idempotencyKey string) (*processor.Hold, error) {
	params := &stripe.PaymentIntentConfirmParams{}
	params.Context = ctx
	if c.holdPaymentMethod != "" {
		params.PaymentMethod = stripe.String(c.holdPaymentMethod)
	}
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	c.log(ctx, "request", "confirm_hold", map[string]any{"hold_id": holdID})
	pi, err := paymentintent.Confirm(holdID, params)
	if err != nil {
		c.log(ctx, "error", "confirm_hold", map[string]any{"error": err.Error()})
		return nil, mapStripeError(err, "confirm hold")
	}
	c.log(ctx, "response", "confirm_hold", map[string]any{"hold_id": pi.ID, "status": string(pi.Status)})
	return holdFromIntent(pi), nil
}

func holdFromIntent(pi *stripe.PaymentIntent) *processor.Hold {
	if pi == nil {
		return nil
	}
	return &processor.Hold{
		ID:          pi.ID,
		Status:      string(pi.Status),
		AmountCents: pi.Amount,
		Currency:    string(pi.Currency),
	}
}
