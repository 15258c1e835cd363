package enums

import "testing"

func TestErrorClassTransience(t *testing.T) {
	transient := []ErrorClass{ErrorClassNetwork, ErrorClassTimeout, ErrorClassUnavailable}
	for _, c := range transient {
		if !c.IsTransient() {
			t.Fatalf("expected %s to be transient", c)
		}
	}
	terminal := []ErrorClass{
		ErrorClassInvalidRequest,
		ErrorClassAuthFailure,
		ErrorClassRateLimited,
		ErrorClassDestinationInvalid,
		ErrorClassConfiguration,
		ErrorClassPolicyLimit,
	}
	for _, c := range terminal {
		if c.IsTransient() {
			t.Fatalf("expected %s to be terminal", c)
		}
	}
}

func TestParsePayoutChannel(t *testing.T) {
	got, err := ParsePayoutChannel("contact_hold")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.RequiresContact() {
		t.Fatalf("contact_hold should require a contact email")
	}
	if PayoutChannelInstant.RequiresContact() {
		t.Fatalf("instant should be addressed by account")
	}
	if _, err := ParsePayoutChannel("wire"); err == nil {
		t.Fatal("expected unknown channel to fail")
	}
}

func TestRevenueLedgerStatusValues(t *testing.T) {
	if !RevenueLedgerStatusPaymentHoldCreated.IsValid() {
		t.Fatal("payment_hold_created should be valid")
	}
	if _, err := ParseRevenueLedgerStatus("refunded"); err == nil {
		t.Fatal("expected refunded to be rejected")
	}
}

func TestRevenueLedgerStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to RevenueLedgerStatus
		want     bool
	}{
		{RevenueLedgerStatusPending, RevenueLedgerStatusTransferred, true},
		{RevenueLedgerStatusPending, RevenueLedgerStatusFailed, true},
		{RevenueLedgerStatusPaymentHoldCreated, RevenueLedgerStatusFulfilled, true},
		{RevenueLedgerStatusTransferred, RevenueLedgerStatusPending, false},
		{RevenueLedgerStatusFulfilled, RevenueLedgerStatusPaymentHoldCreated, false},
		{RevenueLedgerStatusFailed, RevenueLedgerStatusTransferred, false},
		{RevenueLedgerStatusPending, RevenueLedgerStatusFulfilled, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Fatalf("%s -> %s: expected %v got %v", tc.from, tc.to, tc.want, got)
		}
	}
}
