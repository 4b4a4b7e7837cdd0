package engine

import (
	"context"

	"github.com/ejlayer/backtest-exec/internal/domain"
	"github.com/ejlayer/backtest-exec/internal/events"
	"github.com/ejlayer/backtest-exec/internal/fxrate"
	"github.com/ejlayer/backtest-exec/internal/money"
	"github.com/ejlayer/backtest-exec/internal/rollover"
	"github.com/ejlayer/backtest-exec/libs/observability"
)

// fillOrder implements spec.md §4.3′ `_fill_order`. Positions are keyed by
// order.PositionID (the strategy-assigned position identifier carried on
// every order belonging to the same bracket), not by the filling order's
// own id — "existing position for this order id" in the source is read as
// "for this position".
func (e *Engine) fillOrder(ctx context.Context, order domain.Order, fillPrice money.Decimal, slipped bool) {
	inst, err := e.instrument(order.Symbol)
	if err != nil {
		panic("engine: fillOrder: " + err.Error())
	}

	existing, found, posErr := e.store.GetPositionForOrder(order.PositionID)
	found = found && posErr == nil
	closes := found && existing.MarketPosition != domain.Flat && existing.EntryDirection != order.Side

	if closes {
		e.adjustAccount(ctx, order, fillPrice, existing)
	}

	e.emit(ctx, events.Event{Kind: events.KindOrderFilled, OrderFilled: &events.OrderFilledEvent{
		OrderID:          order.ID,
		ExecutionID:      "E-" + order.ID,
		PositionIDBroker: "ET-" + order.ID,
		Symbol:           order.Symbol,
		Side:             string(order.Side),
		Quantity:         order.Quantity,
		FillPrice:        fillPrice,
		Currency:         inst.QuoteCurrency,
		Slipped:          slipped,
	}})
	latency := e.clock.Now().Sub(order.AcceptedAt)
	slippageBps := 0.0
	if slipped {
		slippageBps = inst.Slippage().Div(fillPrice).Mul(money.NewFromInt(10_000)).Float64()
	}
	observability.RecordFill(ctx, e.metrics, order.Symbol, string(order.Side), slipped, latency, slippageBps)

	order.State = domain.Filled
	e.store.PutOrder(order)
	e.applyPositionFill(order, fillPrice, inst.PricePrecision, existing, found, closes)

	e.checkOCO(ctx, order.ID)

	if children, ok := e.atomicChildren.Get(order.ID); ok {
		for _, child := range children {
			if child.State.IsTerminal() {
				continue
			}
			e.processOrder(ctx, child)
		}
		e.cleanUpChildren(order.ID)
	}
}

// applyPositionFill opens, grows, reduces, closes, or flips the position
// associated with order.PositionID. This bookkeeping is not spelled out in
// spec.md beyond "closes (or partially reduces) that position" — the exact
// averaging/flip rules below follow the single-net-position-per-symbol
// convention every retail FX/CFD execution engine in the retrieval pack
// uses (see DESIGN.md).
func (e *Engine) applyPositionFill(order domain.Order, fillPrice money.Decimal, precision int32, existing domain.Position, found, closes bool) {
	if !found || existing.MarketPosition == domain.Flat {
		e.store.PutPosition(order.PositionID, domain.Position{
			ID:               order.PositionID,
			Symbol:           order.Symbol,
			MarketPosition:   marketPositionFor(order.Side),
			Quantity:         order.Quantity,
			AverageOpenPrice: fillPrice,
			EntryDirection:   order.Side,
		})
		return
	}

	if !closes {
		// Same-direction fill: grow the position, re-averaging the open price.
		newQty := existing.Quantity + order.Quantity
		weighted := existing.AverageOpenPrice.Mul(money.NewFromInt(existing.Quantity)).
			Add(fillPrice.Mul(money.NewFromInt(order.Quantity)), precision+4)
		avg := weighted.Div(money.NewFromInt(newQty)).Round(precision)
		existing.Quantity = newQty
		existing.AverageOpenPrice = avg
		e.store.PutPosition(order.PositionID, existing)
		return
	}

	remaining := existing.Quantity - order.Quantity
	switch {
	case remaining > 0:
		existing.Quantity = remaining
		e.store.PutPosition(order.PositionID, existing)
	case remaining == 0:
		e.store.DeletePosition(order.PositionID)
	default: // flipped through to the opposite side.
		e.store.PutPosition(order.PositionID, domain.Position{
			ID:               order.PositionID,
			Symbol:           order.Symbol,
			MarketPosition:   marketPositionFor(order.Side),
			Quantity:         -remaining,
			AverageOpenPrice: fillPrice,
			EntryDirection:   order.Side,
		})
	}
}

func marketPositionFor(side domain.Side) domain.MarketPosition {
	if side == domain.Sell {
		return domain.Short
	}
	return domain.Long
}

// adjustAccount implements spec.md §4.7.
func (e *Engine) adjustAccount(ctx context.Context, order domain.Order, fillPrice money.Decimal, position domain.Position) {
	inst, err := e.instrument(order.Symbol)
	if err != nil {
		panic("engine: adjustAccount: " + err.Error())
	}

	priceType := fxrate.Ask
	if order.Side == domain.Sell {
		priceType = fxrate.Bid
	}
	fx, err := e.rateCalc.GetRate(inst.QuoteCurrency, e.cfg.AccountCurrency, priceType, e.rateSnapshot())
	if err != nil {
		panic("engine: adjustAccount: " + err.Error())
	}

	precision := e.cfg.PricePrecision + 4
	qty := money.NewFromInt(order.Quantity)
	var pnl money.Decimal
	switch position.MarketPosition {
	case domain.Long:
		pnl = fillPrice.Sub(position.AverageOpenPrice, precision).Mul(qty).Mul(fx)
	case domain.Short:
		pnl = position.AverageOpenPrice.Sub(fillPrice, precision).Mul(qty).Mul(fx)
	default:
		panic("engine: adjustAccount: cannot compute pnl for a FLAT position")
	}

	comm := e.commission.Calculate(order.Symbol, order.Quantity, fillPrice, fx, inst.QuoteCurrency)
	e.totalCommissions = e.totalCommissions.Sub(comm, precision)
	netPnl := pnl.Sub(comm, precision)

	if e.cfg.FrozenAccount {
		return
	}
	e.accountCapital = e.accountCapital.Add(netPnl, e.cfg.PricePrecision)
	e.cashActivityDay = e.cashActivityDay.Add(netPnl, e.cfg.PricePrecision)
	e.emitAccountState(ctx)
}

// runRollover implements spec.md §4.6. The `!frozen_account` guard applies
// to the capital change and its AccountStateEvent only — total_rollover
// still accumulates either way (spec.md §9, OPEN-Q-2; see DESIGN.md).
func (e *Engine) runRollover(ctx context.Context) {
	open := e.store.GetPositionsOpen()
	positions := make([]rollover.Position, 0, len(open))
	for _, p := range open {
		qty := p.Quantity
		if p.MarketPosition == domain.Short {
			qty = -qty
		}
		positions = append(positions, rollover.Position{Symbol: p.Symbol, Quantity: qty})
	}

	start := e.clock.Now()
	amount, err := e.rolloverApplier.Run(ctx, positions, e.rateSnapshot(), e.cfg.AccountCurrency, e.clock.Now())
	observability.RecordRolloverRun(ctx, e.clock.Now().Sub(start), len(positions), err)
	if err != nil {
		// Environmental gap (spec.md §7): missing market/rate data for an
		// open position is logged and skipped, not fatal.
		observability.LogRollover(ctx, e.accountID, 0, err)
		return
	}

	e.totalRollover = e.totalRollover.Add(amount, e.cfg.PricePrecision+4)
	observability.LogRollover(ctx, e.accountID, amount.Float64(), nil)
	e.metrics.RolloverTotal.Set(e.totalRollover.Float64())

	if e.cfg.FrozenAccount {
		return
	}
	e.accountCapital = e.accountCapital.Add(amount, e.cfg.PricePrecision)
	e.cashActivityDay = e.cashActivityDay.Add(amount, e.cfg.PricePrecision)
	e.emitAccountState(ctx)
}
