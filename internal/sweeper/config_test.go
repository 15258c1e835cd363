package sweeper

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/payoutcore-backend/pkg/config"
)

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.SweepConfig{
		MisroutedAccountID: "acct_misrouted",
		MisroutedMinCents:  500,
		MinTransferCents:   200,
		PendingBatch:       7,
		RetryBatch:         3,
		HoldBatch:          4,
		MaxRetryCount:      6,
		ProcessorRPS:       2.5,
	}, config.StripeConfig{DestinationAccount: "acct_dest", Currency: "usd"})

	assert.Equal(t, Config{
		DestinationAccountID: "acct_dest",
		MisroutedAccountID:   "acct_misrouted",
		MisroutedMinCents:    500,
		MinTransferCents:     200,
		PendingBatch:         7,
		RetryBatch:           3,
		HoldBatch:            4,
		MaxRetryCount:        6,
		Currency:             "usd",
		ProcessorRPS:         2.5,
	}, cfg)
}
