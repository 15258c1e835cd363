package enums

import "fmt"

// AuditStatus records how a cash-out request ended.
type AuditStatus string

const (
	AuditStatusSuccess  AuditStatus = "success"
	AuditStatusFailed   AuditStatus = "failed"
	AuditStatusRejected AuditStatus = "rejected"
)

var validAuditStatuses = []AuditStatus{
	AuditStatusSuccess,
	AuditStatusFailed,
	AuditStatusRejected,
}

// String implements fmt.Stringer.
func (v AuditStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is known.
func (v AuditStatus) IsValid() bool {
	for _, candidate := range validAuditStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseAuditStatus converts raw input into a AuditStatus.
func ParseAuditStatus(value string) (AuditStatus, error) {
	for _, candidate := range validAuditStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit status %q", value)
}
