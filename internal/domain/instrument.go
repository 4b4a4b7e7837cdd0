package domain

import "github.com/ejlayer/backtest-exec/internal/money"

// SecurityType distinguishes FX instruments (subject to rollover interest)
// from everything else.
type SecurityType string

const (
	SecurityFX    SecurityType = "FX"
	SecurityOther SecurityType = "OTHER"
)

// Instrument is immutable per-symbol metadata: tick size, precision, trade
// size bounds, and minimum stop/limit distances (spec.md §3).
type Instrument struct {
	Symbol         string
	QuoteCurrency  string
	SecurityType   SecurityType
	TickSize       money.Decimal
	PricePrecision int32
	MinTradeSize   int64
	MaxTradeSize   int64
	// MinStopTicks / MinLimitTicks are distances expressed in ticks; the
	// engine converts them to price distances via TickSize (see
	// Instrument.MinStopDistance / MinLimitDistance).
	MinStopTicks  int64
	MinLimitTicks int64
}

// MinStopDistance returns the minimum stop distance as a price, i.e.
// MinStopTicks * TickSize.
func (i Instrument) MinStopDistance() money.Decimal {
	return i.TickSize.Mul(money.NewFromInt(i.MinStopTicks)).Round(i.PricePrecision)
}

// MinLimitDistance returns the minimum limit distance as a price.
func (i Instrument) MinLimitDistance() money.Decimal {
	return i.TickSize.Mul(money.NewFromInt(i.MinLimitTicks)).Round(i.PricePrecision)
}

// Slippage returns the per-fill slippage unit for this instrument, which
// spec.md §3 defines as equal to the tick size.
func (i Instrument) Slippage() money.Decimal {
	return i.TickSize
}

// Catalog is a read-only lookup of Instrument by symbol (the "Instrument
// catalog" external collaborator from spec.md §1).
type Catalog struct {
	bySymbol map[string]Instrument
}

// NewCatalog builds a Catalog from a slice of instruments.
func NewCatalog(instruments ...Instrument) *Catalog {
	c := &Catalog{bySymbol: make(map[string]Instrument, len(instruments))}
	for _, inst := range instruments {
		c.bySymbol[inst.Symbol] = inst
	}
	return c
}

// Get returns the Instrument for symbol and whether it was found.
func (c *Catalog) Get(symbol string) (Instrument, bool) {
	inst, ok := c.bySymbol[symbol]
	return inst, ok
}
