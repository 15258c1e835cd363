package enums

import "fmt"

// PayoutChannel names a payout rail the orchestrator can dispatch to.
type PayoutChannel string

const (
	PayoutChannelInstant     PayoutChannel = "instant"
	PayoutChannelStandard    PayoutChannel = "standard"
	PayoutChannelContactHold PayoutChannel = "contact_hold"
	PayoutChannelPayPal      PayoutChannel = "paypal"
)

var validPayoutChannels = []PayoutChannel{
	PayoutChannelInstant,
	PayoutChannelStandard,
	PayoutChannelContactHold,
	PayoutChannelPayPal,
}

// String implements fmt.Stringer.
func (v PayoutChannel) String() string {
	return string(v)
}

// IsValid reports whether the value is known.
func (v PayoutChannel) IsValid() bool {
	for _, candidate := range validPayoutChannels {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParsePayoutChannel converts raw input into a PayoutChannel.
func ParsePayoutChannel(value string) (PayoutChannel, error) {
	for _, candidate := range validPayoutChannels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout channel %q", value)
}

// RequiresContact reports whether the channel is addressed by contact email
// rather than by a connected destination account.
func (v PayoutChannel) RequiresContact() bool {
	return v == PayoutChannelContactHold || v == PayoutChannelPayPal
}
