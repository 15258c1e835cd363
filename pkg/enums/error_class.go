package enums

import "fmt"

// ErrorClass buckets a failed attempt so the orchestrator can decide between
// retrying the channel and moving on.
type ErrorClass string

const (
	ErrorClassNone               ErrorClass = ""
	ErrorClassInvalidRequest     ErrorClass = "invalid_request"
	ErrorClassAuthFailure        ErrorClass = "auth_failure"
	ErrorClassRateLimited        ErrorClass = "rate_limited"
	ErrorClassDestinationInvalid ErrorClass = "destination_invalid"
	ErrorClassConfiguration      ErrorClass = "configuration"
	ErrorClassPolicyLimit        ErrorClass = "policy_limit"
	ErrorClassNetwork            ErrorClass = "network"
	ErrorClassTimeout            ErrorClass = "timeout"
	ErrorClassUnavailable        ErrorClass = "unavailable"
)

var validErrorClasses = []ErrorClass{
	ErrorClassInvalidRequest,
	ErrorClassAuthFailure,
	ErrorClassRateLimited,
	ErrorClassDestinationInvalid,
	ErrorClassConfiguration,
	ErrorClassPolicyLimit,
	ErrorClassNetwork,
	ErrorClassTimeout,
	ErrorClassUnavailable,
}

// String implements fmt.Stringer.
func (v ErrorClass) String() string {
	return string(v)
}

// IsValid reports whether the value is known.
func (v ErrorClass) IsValid() bool {
	for _, candidate := range validErrorClasses {
		if candidate == v {
			return true
		}
	}
	return false
}

// IsTransient reports whether a failure of this class may succeed on retry.
func (v ErrorClass) IsTransient() bool {
	switch v {
	case ErrorClassNetwork, ErrorClassTimeout, ErrorClassUnavailable:
		return true
	default:
		return false
	}
}

// ParseErrorClass converts raw input into an ErrorClass.
func ParseErrorClass(value string) (ErrorClass, error) {
	for _, candidate := range validErrorClasses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid error class %q", value)
}
