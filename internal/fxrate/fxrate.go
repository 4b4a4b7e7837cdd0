// Package fxrate resolves exchange rates between currencies from a
// snapshot of bid/ask rate maps keyed by 6-letter BASE+QUOTE symbols
// (spec.md §4.8).
package fxrate

import (
	"fmt"
	"sort"

	"github.com/ejlayer/backtest-exec/internal/money"
)

// PriceType selects which side of a quoted rate to use.
type PriceType string

const (
	Bid PriceType = "BID"
	Ask PriceType = "ASK"
	Mid PriceType = "MID"
)

// Snapshot is a point-in-time set of quoted currency-pair rates. Keys are
// 6-letter symbols, e.g. "EURUSD" means 1 EUR = rate USD.
type Snapshot struct {
	Bid map[string]money.Decimal
	Ask map[string]money.Decimal
}

// Calculator is the ExchangeRateCalculator collaborator (spec.md §6).
type Calculator interface {
	GetRate(from, to string, priceType PriceType, snap Snapshot) (money.Decimal, error)
}

// Resolver is the default Calculator: it resolves a rate directly from the
// snapshot, by inversion, by triangulation through a common quote currency,
// or returns 1 when from == to.
type Resolver struct{}

func NewResolver() Resolver { return Resolver{} }

func quote(snap Snapshot, priceType PriceType, symbol string) (money.Decimal, bool) {
	switch priceType {
	case Bid:
		v, ok := snap.Bid[symbol]
		return v, ok
	case Ask:
		v, ok := snap.Ask[symbol]
		return v, ok
	case Mid:
		bid, okBid := snap.Bid[symbol]
		ask, okAsk := snap.Ask[symbol]
		if !okBid || !okAsk {
			return money.Decimal{}, false
		}
		return bid.Add(ask, 10).Div(money.NewFromInt(2)), true
	default:
		return money.Decimal{}, false
	}
}

// GetRate resolves from_currency -> to_currency at the given price type.
// Resolution order: identity (from == to), direct quote "FROMTO", inverse
// quote "TOFROM", then triangulation through every other currency that
// appears as either leg of a quoted symbol in the snapshot.
func (Resolver) GetRate(from, to string, priceType PriceType, snap Snapshot) (money.Decimal, error) {
	if from == to {
		return money.NewFromInt(1), nil
	}

	if v, ok := quote(snap, priceType, from+to); ok {
		return v, nil
	}
	if v, ok := quote(snap, priceType, to+from); ok {
		if v.IsZero() {
			return money.Decimal{}, fmt.Errorf("fxrate: zero inverse rate for %s%s", to, from)
		}
		return money.NewFromInt(1).Div(v), nil
	}

	for _, bridge := range bridgeCurrencies(snap) {
		if bridge == from || bridge == to {
			continue
		}
		legA, okA := quote(snap, priceType, from+bridge)
		if !okA {
			legA, okA = invert(snap, priceType, bridge+from)
		}
		legB, okB := quote(snap, priceType, bridge+to)
		if !okB {
			legB, okB = invert(snap, priceType, to+bridge)
		}
		if okA && okB {
			return legA.Mul(legB), nil
		}
	}

	return money.Decimal{}, fmt.Errorf("fxrate: no route from %s to %s", from, to)
}

func invert(snap Snapshot, priceType PriceType, symbol string) (money.Decimal, bool) {
	v, ok := quote(snap, priceType, symbol)
	if !ok || v.IsZero() {
		return money.Decimal{}, false
	}
	return money.NewFromInt(1).Div(v), true
}

// bridgeCurrencies extracts the set of 3-letter currency codes appearing in
// any quoted symbol, as candidate triangulation legs. Iterated in sorted
// order so GetRate's route choice is deterministic across runs.
func bridgeCurrencies(snap Snapshot) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(sym string) {
		if len(sym) != 6 {
			return
		}
		for _, cur := range []string{sym[:3], sym[3:]} {
			if !seen[cur] {
				seen[cur] = true
				out = append(out, cur)
			}
		}
	}
	for sym := range snap.Bid {
		add(sym)
	}
	for sym := range snap.Ask {
		add(sym)
	}
	sort.Strings(out)
	return out
}
