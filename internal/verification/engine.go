// Package verification checks that a caller-supplied cash amount matches the
// amount implied by a unit balance at the configured conversion rate.
package verification

import (
	"github.com/shopspring/decimal"
)

const DefaultConversionRate int64 = 100

// Tolerance is the largest discrepancy still accepted as valid.
var Tolerance = decimal.New(1, -2)

// Result is the outcome of one verification.
type Result struct {
	Units          int64           `json:"units"`
	ExpectedAmount decimal.Decimal `json:"expectedAmount"`
	SuppliedAmount decimal.Decimal `json:"suppliedAmount"`
	Discrepancy    decimal.Decimal `json:"discrepancy"`
	IsValid        bool            `json:"isValid"`
}

// Engine converts units to currency at a fixed rate.
type Engine struct {
	rate decimal.Decimal
}

// NewEngine builds an engine for the given units-per-currency-unit rate. A
// non-positive rate falls back to DefaultConversionRate.
func NewEngine(rate int64) *Engine {
	if rate <= 0 {
		rate = DefaultConversionRate
	}
	return &Engine{rate: decimal.NewFromInt(rate)}
}

// Rate returns the units-per-currency-unit rate in use.
func (e *Engine) Rate() int64 {
	return e.rate.IntPart()
}

// Expected returns units / rate without rounding.
func (e *Engine) Expected(units int64) decimal.Decimal {
	return decimal.NewFromInt(units).Div(e.rate)
}

// Verify compares supplied against the expected amount for units. Negative
// units are reported invalid.
func (e *Engine) Verify(units int64, supplied decimal.Decimal) Result {
	expected := e.Expected(units)
	discrepancy := supplied.Sub(expected).Abs()
	return Result{
		Units:          units,
		ExpectedAmount: expected,
		SuppliedAmount: supplied,
		Discrepancy:    discrepancy,
		IsValid:        units >= 0 && discrepancy.LessThanOrEqual(Tolerance),
	}
}

// AmountCents converts units into processor cents, rounding half up.
func (e *Engine) AmountCents(units int64) int64 {
	return e.Expected(units).Shift(2).Round(0).IntPart()
}

// Amount returns the expected amount rounded to the cent.
func (e *Engine) Amount(units int64) decimal.Decimal {
	return e.Expected(units).Round(2)
}
