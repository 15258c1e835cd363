package enums

import "fmt"

// TransferRetryStatus maps to transfer_retries.status.
type TransferRetryStatus string

const (
	TransferRetryStatusFailed    TransferRetryStatus = "failed"
	TransferRetryStatusPending   TransferRetryStatus = "pending"
	TransferRetryStatusCompleted TransferRetryStatus = "completed"
)

var validTransferRetryStatuses = []TransferRetryStatus{
	TransferRetryStatusFailed,
	TransferRetryStatusPending,
	TransferRetryStatusCompleted,
}

// String implements fmt.Stringer.
func (v TransferRetryStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is known.
func (v TransferRetryStatus) IsValid() bool {
	for _, candidate := range validTransferRetryStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseTransferRetryStatus converts raw input into a TransferRetryStatus.
func ParseTransferRetryStatus(value string) (TransferRetryStatus, error) {
	for _, candidate := range validTransferRetryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transfer retry status %q", value)
}
