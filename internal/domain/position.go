package domain

import "github.com/ejlayer/backtest-exec/internal/money"

// MarketPosition is the directional stance of a Position.
type MarketPosition string

const (
	Long  MarketPosition = "LONG"
	Short MarketPosition = "SHORT"
	Flat  MarketPosition = "FLAT"
)

// EntryDirectionFor returns the Side that opened a position with the given
// MarketPosition: a LONG position was opened by a BUY, a SHORT by a SELL.
func EntryDirectionFor(mp MarketPosition) Side {
	if mp == Short {
		return Sell
	}
	return Buy
}

// Position is a held quantity in one symbol, opened by a specific order.
type Position struct {
	ID               string
	Symbol           string
	MarketPosition   MarketPosition
	Quantity         int64
	AverageOpenPrice money.Decimal
	// EntryDirection is the Side of the order that opened this position.
	// A fill whose Side differs from EntryDirection closes (or reduces) it
	// (spec.md §4.3′).
	EntryDirection Side
}
