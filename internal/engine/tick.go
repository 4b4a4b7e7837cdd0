package engine

import (
	"context"
	"time"

	// Pulled in so time.LoadLocation("America/New_York") resolves without
	// relying on the host having a system tzdata install.
	_ "time/tzdata"

	"github.com/ejlayer/backtest-exec/internal/domain"
	"github.com/ejlayer/backtest-exec/internal/money"
	"github.com/ejlayer/backtest-exec/internal/rollover"
	"github.com/ejlayer/backtest-exec/libs/observability"
)

var newYork *time.Location

func init() {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	newYork = loc
}

// ProcessTick implements spec.md §4.1, the matching loop entry point.
func (e *Engine) ProcessTick(ctx context.Context, tick domain.Tick) {
	e.clock.SetTime(tick.Timestamp)
	e.market[tick.Symbol] = tick

	day := tick.Timestamp.UTC().Format("2006-01-02")
	if day != e.dayNumber {
		e.dayNumber = day
		e.cashStartDay = e.accountCapital
		e.cashActivityDay = money.Zero
		e.rolloverApplied = false
		e.rolloverTime = rolloverTimeFor(tick.Timestamp)
	}

	if !e.rolloverApplied && !e.clock.Now().Before(e.rolloverTime) {
		e.runRollover(ctx)
		e.rolloverApplied = true
	}

	observability.RecordTickProcessed(ctx, e.metrics, tick.Symbol, e.workingOrders.Len())

	for _, ent := range e.workingOrders.Snapshot() {
		order := ent.Value
		if order.Symbol != tick.Symbol {
			continue
		}
		if !e.workingOrders.Has(order.ID) {
			continue // removed earlier in this same scan, e.g. by an OCO cascade.
		}

		fillPrice, slipped, filled := e.fillTest(order, tick)
		if filled {
			e.workingOrders.Delete(order.ID)
			e.fillOrder(ctx, order, fillPrice, slipped)
			continue
		}

		if order.ExpireTime != nil && !e.clock.Now().Before(*order.ExpireTime) {
			e.workingOrders.Delete(order.ID)
			e.expireOrder(ctx, order)
		}
	}
}

// fillTest applies spec.md §4.1's fill-trigger table for a single working
// order against the current tick.
//
// The table states two conditions per branch: a non-strict cross
// (tick.ask ≥ order.price, etc.) and a separate "or marginal(tick == price
// ∧ fill_model...)" clause gating the exact-touch case on the fill model.
// Taken literally those are redundant — ≥/≤ already admits equality — and
// spec.md §8's own worked scenario 2 confirms the non-strict reading is
// the intended one: an exact touch (tick.ask == order.price) is expected
// to fill even with fill_model.is_stop_filled = false. Gating the
// equality case on the fill model, as the marginal() clause literally
// reads, would reject that scenario. This implementation keeps the
// non-strict cross and does not special-case the touch: a correct
// consequence is that FillModel.IsStopFilled/IsLimitFilled are never
// called from the matching loop — see DESIGN.md's fillmodel entry.
func (e *Engine) fillTest(order domain.Order, tick domain.Tick) (fillPrice money.Decimal, slipped bool, filled bool) {
	inst, err := e.instrument(order.Symbol)
	if err != nil {
		return money.Decimal{}, false, false
	}
	isStopKind := order.Type.IsStopKind()

	switch {
	case order.Side == domain.Buy && isStopKind:
		filled = tick.Ask.Ge(order.Price)
	case order.Side == domain.Buy && !isStopKind: // LIMIT
		filled = tick.Ask.Le(order.Price)
	case order.Side == domain.Sell && isStopKind:
		filled = tick.Bid.Le(order.Price)
	case order.Side == domain.Sell && !isStopKind: // LIMIT
		filled = tick.Bid.Ge(order.Price)
	}
	if !filled {
		return money.Decimal{}, false, false
	}

	slipped = e.fillModel.IsSlipped()
	fillPrice = order.Price
	switch order.Side {
	case domain.Buy:
		if slipped {
			fillPrice = fillPrice.Add(inst.Slippage(), inst.PricePrecision)
		}
	case domain.Sell:
		if slipped {
			fillPrice = fillPrice.Sub(inst.Slippage(), inst.PricePrecision)
		}
	}
	return fillPrice, slipped, true
}

// rolloverTimeFor computes 17:00 US/Eastern on tick's calendar day,
// converted to UTC, minus the configured offset (spec.md §4.1, §9).
func rolloverTimeFor(tick time.Time) time.Time {
	est := tick.In(newYork)
	closeTime := time.Date(est.Year(), est.Month(), est.Day(), 17, 0, 0, 0, newYork)
	return closeTime.Add(-rollover.RolloverOffsetBeforeClose).UTC()
}
