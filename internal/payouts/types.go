package payouts

import (
	"fmt"

	"github.com/angelmondragon/payoutcore-backend/pkg/enums"
)

// Request is one cash-out as the orchestrator sees it: already validated and
// converted to processor cents.
type Request struct {
	CorrelationID        string
	RequesterID          string
	Units                int64
	AmountCents          int64
	Currency             string
	ChannelHint          enums.PayoutChannel
	DestinationAccountID string
	ContactEmail         string
	Metadata             map[string]string
}

// Attempt records one call against one channel. Skipped marks a channel
// abandoned before any processor call.
type Attempt struct {
	Channel              enums.PayoutChannel  `json:"channel"`
	AttemptNumber        int                  `json:"attempt_number"`
	Outcome              enums.AttemptOutcome `json:"outcome"`
	ExternalReferenceIDs []string             `json:"external_reference_ids,omitempty"`
	ErrorClass           enums.ErrorClass     `json:"error_class,omitempty"`
	Error                string               `json:"error,omitempty"`
	Skipped              bool                 `json:"skipped,omitempty"`
}

// Result is the final answer for a request. It is never mutated after
// Execute returns.
type Result struct {
	Success              bool                `json:"success"`
	ChannelUsed          enums.PayoutChannel `json:"channel_used,omitempty"`
	ExternalReferenceIDs []string            `json:"external_reference_ids,omitempty"`
	ErrorMessage         string              `json:"error_message,omitempty"`
	Attempts             []Attempt           `json:"attempts"`
	CorrelationID        string              `json:"correlation_id"`
	// TransferReference is set once a channel moved funds to the destination
	// account. Only channels that reuse that transfer may run afterwards.
	TransferReference string `json:"transfer_reference,omitempty"`
}

// LastAttempted returns the channel of the final attempt that reached a
// handler, or "" when nothing was attempted.
func (r Result) LastAttempted() enums.PayoutChannel {
	for i := len(r.Attempts) - 1; i >= 0; i-- {
		if !r.Attempts[i].Skipped {
			return r.Attempts[i].Channel
		}
	}
	return ""
}

// Outcome is what a channel handler reports for a single attempt.
type Outcome struct {
	ExternalReferenceIDs []string
	// TransferID is the transfer the attempt created, even when a later step
	// of the same attempt failed.
	TransferID string
	Err        error
}

// Succeeded reports whether the attempt went through.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

func transferKey(correlationID string) string {
	return fmt.Sprintf("cashout:%s:transfer", correlationID)
}

func payoutKey(correlationID string, channel enums.PayoutChannel) string {
	return fmt.Sprintf("cashout:%s:payout:%s", correlationID, channel)
}

func holdKey(correlationID string) string {
	return fmt.Sprintf("cashout:%s:hold", correlationID)
}

func paypalKey(correlationID string) string {
	return fmt.Sprintf("cashout:%s:paypal", correlationID)
}
