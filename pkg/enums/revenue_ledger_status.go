package enums

import "fmt"

// RevenueLedgerStatus maps to revenue_ledger_entries.status.
type RevenueLedgerStatus string

const (
	RevenueLedgerStatusPending            RevenueLedgerStatus = "pending"
	RevenueLedgerStatusTransferred        RevenueLedgerStatus = "transferred"
	RevenueLedgerStatusFailed             RevenueLedgerStatus = "failed"
	RevenueLedgerStatusPaymentHoldCreated RevenueLedgerStatus = "payment_hold_created"
	RevenueLedgerStatusFulfilled          RevenueLedgerStatus = "fulfilled"
)

var validRevenueLedgerStatuses = []RevenueLedgerStatus{
	RevenueLedgerStatusPending,
	RevenueLedgerStatusTransferred,
	RevenueLedgerStatusFailed,
	RevenueLedgerStatusPaymentHoldCreated,
	RevenueLedgerStatusFulfilled,
}

// String implements fmt.Stringer.
func (v RevenueLedgerStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is known.
func (v RevenueLedgerStatus) IsValid() bool {
	for _, candidate := range validRevenueLedgerStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseRevenueLedgerStatus converts raw input into a RevenueLedgerStatus.
func ParseRevenueLedgerStatus(value string) (RevenueLedgerStatus, error) {
	for _, candidate := range validRevenueLedgerStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid revenue ledger status %q", value)
}

// CanTransitionTo reports whether a row may move from v to next. Statuses only
// move forward: pending to transferred or failed, and a payment hold to
// fulfilled.
func (v RevenueLedgerStatus) CanTransitionTo(next RevenueLedgerStatus) bool {
	switch v {
	case RevenueLedgerStatusPending:
		return next == RevenueLedgerStatusTransferred || next == RevenueLedgerStatusFailed
	case RevenueLedgerStatusPaymentHoldCreated:
		return next == RevenueLedgerStatusFulfilled
	default:
		return false
	}
}
