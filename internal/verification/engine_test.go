package verification

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestVerifyExactAmountsAreValid(t *testing.T) {
	engine := NewEngine(100)
	for _, units := range []int64{0, 1, 99, 100, 101, 12345, 1 << 40} {
		supplied := decimal.NewFromInt(units).Div(decimal.NewFromInt(100))
		res := engine.Verify(units, supplied)
		if !res.IsValid {
			t.Fatalf("units=%d supplied=%s expected valid, got %+v", units, supplied, res)
		}
		if !res.Discrepancy.IsZero() {
			t.Fatalf("units=%d expected zero discrepancy, got %s", units, res.Discrepancy)
		}
	}
}

func TestVerifyScenarioOneDollar(t *testing.T) {
	res := NewEngine(100).Verify(100, decimal.RequireFromString("1.00"))
	if !res.IsValid {
		t.Fatalf("expected valid result, got %+v", res)
	}
	if !res.ExpectedAmount.Equal(decimal.RequireFromString("1.00")) {
		t.Fatalf("expected 1.00, got %s", res.ExpectedAmount)
	}
}

func TestVerifyRejectsDiscrepancyAboveOneCent(t *testing.T) {
	engine := NewEngine(100)
	tests := []struct {
		name     string
		units    int64
		supplied string
		valid    bool
	}{
		{name: "exactly one cent over", units: 100, supplied: "1.01", valid: true},
		{name: "exactly one cent under", units: 100, supplied: "0.99", valid: true},
		{name: "just over tolerance", units: 100, supplied: "1.0101", valid: false},
		{name: "two cents under", units: 100, supplied: "0.98", valid: false},
		{name: "inflated", units: 500, supplied: "50.00", valid: false},
		{name: "zero units zero amount", units: 0, supplied: "0", valid: true},
		{name: "zero units with amount", units: 0, supplied: "0.02", valid: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := engine.Verify(tt.units, decimal.RequireFromString(tt.supplied))
			if res.IsValid != tt.valid {
				t.Fatalf("expected valid=%v, got %+v", tt.valid, res)
			}
			if !tt.valid && !res.Discrepancy.IsPositive() {
				t.Fatalf("expected positive discrepancy, got %s", res.Discrepancy)
			}
		})
	}
}

func TestVerifyNegativeUnitsInvalid(t *testing.T) {
	res := NewEngine(100).Verify(-100, decimal.RequireFromString("-1.00"))
	if res.IsValid {
		t.Fatalf("negative units must be invalid, got %+v", res)
	}
}

func TestNewEngineFallsBackToDefaultRate(t *testing.T) {
	if got := NewEngine(0).Rate(); got != DefaultConversionRate {
		t.Fatalf("expected default rate, got %d", got)
	}
	if got := NewEngine(-5).Rate(); got != DefaultConversionRate {
		t.Fatalf("expected default rate, got %d", got)
	}
}

func TestAmountCentsRoundsHalfUp(t *testing.T) {
	engine := NewEngine(1000)
	cases := map[int64]int64{
		1000: 100,
		5:    1,
		4:    0,
		1234: 123,
		1235: 124,
	}
	for units, want := range cases {
		if got := engine.AmountCents(units); got != want {
			t.Fatalf("units=%d expected %d cents, got %d", units, want, got)
		}
	}
	if got := engine.Amount(1235).String(); got != "1.24" {
		t.Fatalf("expected 1.24, got %s", got)
	}
}
