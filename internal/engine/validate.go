package engine

import (
	"github.com/ejlayer/backtest-exec/internal/domain"
	"github.com/ejlayer/backtest-exec/internal/violation"
)

// validatePrice implements spec.md §4.5. Returns nil when the order's price
// is acceptable (including every MARKET order, which carries no price).
func (e *Engine) validatePrice(order domain.Order) *violation.Violation {
	if order.Type == domain.Market {
		return nil
	}

	tick, ok := e.market[order.Symbol]
	if !ok {
		v := violation.New(violation.CodeNoMarket, "no market")
		return &v
	}
	inst, err := e.instrument(order.Symbol)
	if err != nil {
		v := violation.New(violation.CodeNoMarket, "%v", err)
		return &v
	}

	isStopKind := order.Type.IsStopKind()

	switch {
	case order.Side == domain.Buy && isStopKind:
		min := tick.Ask.Add(inst.MinStopDistance(), inst.PricePrecision)
		if order.Price.Lt(min) {
			v := violation.New(violation.CodeMinStopDistance,
				"BUY %s price %s below ask %s + min stop distance", order.Type, order.Price, tick.Ask)
			return &v
		}
	case order.Side == domain.Buy && !isStopKind: // LIMIT
		max := tick.Bid.Sub(inst.MinLimitDistance(), inst.PricePrecision)
		if order.Price.Gt(max) {
			v := violation.New(violation.CodeMinLimitDistance,
				"BUY %s price %s above bid %s - min limit distance", order.Type, order.Price, tick.Bid)
			return &v
		}
	case order.Side == domain.Sell && isStopKind:
		max := tick.Bid.Sub(inst.MinStopDistance(), inst.PricePrecision)
		if order.Price.Gt(max) {
			v := violation.New(violation.CodeMinStopDistance,
				"SELL %s price %s above bid %s - min stop distance", order.Type, order.Price, tick.Bid)
			return &v
		}
	case order.Side == domain.Sell && !isStopKind: // LIMIT
		min := tick.Ask.Add(inst.MinLimitDistance(), inst.PricePrecision)
		if order.Price.Lt(min) {
			v := violation.New(violation.CodeMinLimitDistance,
				"SELL %s price %s below ask %s + min limit distance", order.Type, order.Price, tick.Ask)
			return &v
		}
	}
	return nil
}
