// Package commission computes the trading commission charged on a fill
// (spec.md §4.7, §6).
package commission

import "github.com/ejlayer/backtest-exec/internal/money"

// Calculator is the CommissionCalculator collaborator.
type Calculator interface {
	Calculate(symbol string, quantity int64, price money.Decimal, fx money.Decimal, currency string) money.Decimal
}

// BasisPoints charges a flat rate in basis points of notional value
// (price × quantity × fx), converted to the account currency.
type BasisPoints struct {
	RateBp    money.Decimal
	Precision int32
}

// NewBasisPoints builds a BasisPoints calculator charging rateBp basis
// points of notional, rounding the result to precision decimal places.
func NewBasisPoints(rateBp float64, precision int32) BasisPoints {
	return BasisPoints{RateBp: money.NewFromFloat(rateBp), Precision: precision}
}

func (b BasisPoints) Calculate(symbol string, quantity int64, price money.Decimal, fx money.Decimal, currency string) money.Decimal {
	notional := price.Mul(money.NewFromInt(quantity)).Mul(fx)
	rate := b.RateBp.Div(money.NewFromInt(10000))
	return notional.Mul(rate).Round(b.Precision)
}
