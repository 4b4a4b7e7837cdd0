package domain

import (
	"time"

	"github.com/ejlayer/backtest-exec/internal/money"
)

// Tick is a single bid/ask quote for a symbol at a point in time. Immutable
// once constructed (spec.md §3). Prices are fixed-point (money.Decimal);
// the instrument's PricePrecision governs rounding wherever a Tick's
// prices are combined (e.g. Mid).
type Tick struct {
	Symbol    string
	Bid       money.Decimal
	Ask       money.Decimal
	Timestamp time.Time
}

// Mid returns the midpoint of bid/ask rounded to precision decimal places
// (spec.md §4.6). rollover.Applier computes its mid from the rate snapshot
// itself and does not call this.
func (t Tick) Mid(precision int32) money.Decimal {
	sum := t.Bid.Add(t.Ask, precision+2)
	return sum.Div(money.NewFromInt(2)).Round(precision)
}
