package enums

import "fmt"

// AttemptOutcome is the result of a single channel attempt.
type AttemptOutcome string

const (
	AttemptOutcomeSuccess          AttemptOutcome = "success"
	AttemptOutcomeRetryableFailure AttemptOutcome = "retryable_failure"
	AttemptOutcomeTerminalFailure  AttemptOutcome = "terminal_failure"
)

var validAttemptOutcomes = []AttemptOutcome{
	AttemptOutcomeSuccess,
	AttemptOutcomeRetryableFailure,
	AttemptOutcomeTerminalFailure,
}

// String implements fmt.Stringer.
func (v AttemptOutcome) String() string {
	return string(v)
}

// IsValid reports whether the value is known.
func (v AttemptOutcome) IsValid() bool {
	for _, candidate := range validAttemptOutcomes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseAttemptOutcome converts raw input into a AttemptOutcome.
func ParseAttemptOutcome(value string) (AttemptOutcome, error) {
	for _, candidate := range validAttemptOutcomes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid attempt outcome %q", value)
}
