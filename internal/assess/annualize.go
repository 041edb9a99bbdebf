// Package assess implements the means assessment eligibility engine:
// annualization, section aggregation, household weighting, result
// determination and the orchestrator that composes them. Every function
// here is a pure transform over immutable inputs; nothing in this package
// blocks or retries.
package assess

import (
	"github.com/shopspring/decimal"

	"github.com/openjustice-uk/kestrel/internal/domain"
)

// Annualize converts a periodic amount to its annual equivalent:
// amount * multiplier(frequency), rounded to 2 decimal places half-up.
//
// Rounding happens exactly once, here at the point of annualization.
// Aggregation never re-rounds, so rounding error cannot compound across
// detail lines.
//
// Negative amounts and unrecognized frequency codes are contract errors;
// they are never defaulted.
func Annualize(amount decimal.Decimal, freq domain.Frequency) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, domain.NegativeAmount(amount)
	}

	mult, ok := freq.Multiplier()
	if !ok {
		return decimal.Zero, domain.UnknownFrequency(freq)
	}

	return amount.Mul(decimal.NewFromInt(mult)).Round(2), nil
}
