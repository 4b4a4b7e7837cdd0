// Package money implements fixed-point price and cash arithmetic for the
// execution engine. Binary floats are never used for prices or account
// balances: every value is backed by github.com/shopspring/decimal, the
// same library the retrieval pack's other trading bots (web3guy0-polybot,
// 0xtitan6-polymarket-mm) use for on-chain and exchange price math.
package money

import "github.com/shopspring/decimal"

// Decimal wraps decimal.Decimal with the precision-preserving operations the
// engine needs. The zero value is a valid zero amount.
type Decimal struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Decimal{d: decimal.Zero}

// NewFromFloat builds a Decimal from a float64 literal (test fixtures,
// config defaults). Never use this to round-trip an already-fixed-point
// value computed elsewhere — prefer NewFromString.
func NewFromFloat(f float64) Decimal {
	return Decimal{d: decimal.NewFromFloat(f)}
}

// NewFromString parses a decimal literal such as "1.1002".
func NewFromString(s string) (Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{d: d}, nil
}

// NewFromInt builds a Decimal from an integer quantity.
func NewFromInt(i int64) Decimal {
	return Decimal{d: decimal.NewFromInt(i)}
}

// Add returns x+y, rounded to precision decimal places.
func (x Decimal) Add(y Decimal, precision int32) Decimal {
	return Decimal{d: x.d.Add(y.d).Round(precision)}
}

// Sub returns x-y, rounded to precision decimal places.
func (x Decimal) Sub(y Decimal, precision int32) Decimal {
	return Decimal{d: x.d.Sub(y.d).Round(precision)}
}

// Mul returns x*y unrounded; callers round explicitly at the point a value
// becomes a price or cash amount (Round).
func (x Decimal) Mul(y Decimal) Decimal {
	return Decimal{d: x.d.Mul(y.d)}
}

// Div returns x/y rounded to decimal.DivisionPrecision places (16 by
// default); callers round explicitly where the result becomes a price.
func (x Decimal) Div(y Decimal) Decimal {
	return Decimal{d: x.d.Div(y.d)}
}

// Neg returns -x.
func (x Decimal) Neg() Decimal { return Decimal{d: x.d.Neg()} }

// Round rounds x to the given number of decimal places.
func (x Decimal) Round(precision int32) Decimal {
	return Decimal{d: x.d.Round(precision)}
}

// Lt, Gt, Le, Ge, Eq compare the unrounded underlying values, per spec.md
// §3: comparisons must not silently lose precision against a rounded copy.
func (x Decimal) Lt(y Decimal) bool { return x.d.LessThan(y.d) }
func (x Decimal) Gt(y Decimal) bool { return x.d.GreaterThan(y.d) }
func (x Decimal) Le(y Decimal) bool { return x.d.LessThanOrEqual(y.d) }
func (x Decimal) Ge(y Decimal) bool { return x.d.GreaterThanOrEqual(y.d) }
func (x Decimal) Eq(y Decimal) bool { return x.d.Equal(y.d) }
func (x Decimal) IsZero() bool      { return x.d.IsZero() }
func (x Decimal) IsNegative() bool  { return x.d.IsNegative() }

// Float64 returns the nearest float64 representation, for metrics export
// and logging only — never for matching or bookkeeping decisions.
func (x Decimal) Float64() float64 {
	f, _ := x.d.Float64()
	return f
}

// String renders the decimal using its natural (unrounded) precision.
func (x Decimal) String() string { return x.d.String() }

// MarshalJSON / UnmarshalJSON delegate to the wrapped decimal.Decimal so
// Decimal can appear directly in event payloads.
func (x Decimal) MarshalJSON() ([]byte, error) { return x.d.MarshalJSON() }

func (x *Decimal) UnmarshalJSON(b []byte) error {
	return x.d.UnmarshalJSON(b)
}
