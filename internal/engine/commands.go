package engine

import (
	"context"

	"github.com/ejlayer/backtest-exec/internal/domain"
	"github.com/ejlayer/backtest-exec/internal/events"
	"github.com/ejlayer/backtest-exec/internal/money"
	"github.com/ejlayer/backtest-exec/internal/violation"
)

// AccountInquiry is the account_inquiry(cmd) command (spec.md §4.2, §6).
type AccountInquiry struct {
	AccountID string
}

// SubmitOrder is the submit_order(cmd) command.
type SubmitOrder struct {
	TraderID   string
	AccountID  string
	StrategyID string
	PositionID string
	Order      domain.Order
}

// SubmitAtomicOrder is the submit_atomic(cmd) command: an entry order plus
// a required stop-loss and optional take-profit child.
type SubmitAtomicOrder struct {
	TraderID   string
	AccountID  string
	StrategyID string
	PositionID string
	Entry      domain.Order
	StopLoss   domain.Order
	TakeProfit *domain.Order
}

// ModifyOrder is the modify_order(cmd) command.
type ModifyOrder struct {
	AccountID        string
	OrderID          string
	ModifiedQuantity int64
	ModifiedPrice    money.Decimal
}

// CancelOrder is the cancel_order(cmd) command.
type CancelOrder struct {
	AccountID string
	OrderID   string
}

// AccountInquiry emits an AccountStateEvent from the current account
// snapshot; no other effects (spec.md §4.2).
func (e *Engine) AccountInquiry(ctx context.Context, cmd AccountInquiry) {
	e.emitAccountState(ctx)
}

// SubmitOrder emits OrderSubmitted then runs processOrder (spec.md §4.2).
func (e *Engine) SubmitOrder(ctx context.Context, cmd SubmitOrder) {
	order := cmd.Order
	order.AccountID = cmd.AccountID
	order.StrategyID = cmd.StrategyID
	order.PositionID = cmd.PositionID
	order.State = domain.Submitted

	e.emit(ctx, events.Event{Kind: events.KindOrderSubmitted, OrderSubmitted: &events.OrderSubmittedEvent{OrderID: order.ID}})
	e.metrics.OrdersSubmitted.Inc("symbol", order.Symbol, "side", string(order.Side))
	e.processOrder(ctx, order)
}

// SubmitAtomicOrder wires up OCO linkage between stop-loss and take-profit
// before the entry is submitted as a standalone order (spec.md §4.2).
func (e *Engine) SubmitAtomicOrder(ctx context.Context, cmd SubmitAtomicOrder) {
	bracketChild := func(o domain.Order) domain.Order {
		o.AccountID = cmd.AccountID
		o.StrategyID = cmd.StrategyID
		o.PositionID = cmd.PositionID
		return o
	}
	children := []domain.Order{bracketChild(cmd.StopLoss)}
	if cmd.TakeProfit != nil {
		children = append(children, bracketChild(*cmd.TakeProfit))
		e.ocoPairs.Set(cmd.StopLoss.ID, cmd.TakeProfit.ID)
		e.ocoPairs.Set(cmd.TakeProfit.ID, cmd.StopLoss.ID)
	}
	e.atomicChildren.Set(cmd.Entry.ID, children)

	e.SubmitOrder(ctx, SubmitOrder{
		TraderID:   cmd.TraderID,
		AccountID:  cmd.AccountID,
		StrategyID: cmd.StrategyID,
		PositionID: cmd.PositionID,
		Order:      cmd.Entry,
	})
}

// CancelOrder removes a working order and cascades OCO cleanup (spec.md
// §4.2).
func (e *Engine) CancelOrder(ctx context.Context, cmd CancelOrder) {
	if !e.workingOrders.Has(cmd.OrderID) {
		e.emit(ctx, events.Event{Kind: events.KindCancelReject, CancelReject: &events.CancelRejectEvent{
			OrderID: cmd.OrderID, Action: "cancel order", Reason: violation.New(violation.CodeNotFound, "order not found").Error(),
		}})
		return
	}
	e.workingOrders.Delete(cmd.OrderID)
	e.emit(ctx, events.Event{Kind: events.KindOrderCancelled, OrderCancelled: &events.OrderCancelledEvent{OrderID: cmd.OrderID}})
	e.checkOCO(ctx, cmd.OrderID)
}

// ModifyOrder re-validates price against the latest market and, on
// success, emits OrderModified. Per spec.md §4.2 (and the open question in
// §9, preserved as a decision in DESIGN.md), this does NOT update the
// stored working order's price/quantity — a subsequent fill still uses the
// original price.
func (e *Engine) ModifyOrder(ctx context.Context, cmd ModifyOrder) {
	order, ok := e.workingOrders.Get(cmd.OrderID)
	if !ok {
		e.emit(ctx, events.Event{Kind: events.KindCancelReject, CancelReject: &events.CancelRejectEvent{
			OrderID: cmd.OrderID, Action: "modify order", Reason: violation.New(violation.CodeNotFound, "order not found").Error(),
		}})
		return
	}
	if cmd.ModifiedQuantity == 0 {
		e.emit(ctx, events.Event{Kind: events.KindCancelReject, CancelReject: &events.CancelRejectEvent{
			OrderID: cmd.OrderID, Action: "modify order", Reason: violation.New(violation.CodeZeroQuantity, "modified quantity must not be zero").Error(),
		}})
		return
	}

	modified := order
	modified.Quantity = cmd.ModifiedQuantity
	modified.Price = cmd.ModifiedPrice

	if v := e.validatePrice(modified); v != nil {
		e.rejectOrder(ctx, order.ID, *v)
		return
	}

	e.emit(ctx, events.Event{Kind: events.KindOrderModified, OrderModified: &events.OrderModifiedEvent{
		OrderID: cmd.OrderID, ModifiedQty: cmd.ModifiedQuantity, ModifiedPrice: cmd.ModifiedPrice,
	}})
}

// processOrder implements spec.md §4.3 `_process_order`.
func (e *Engine) processOrder(ctx context.Context, order domain.Order) {
	if e.workingOrders.Has(order.ID) {
		panic("engine: duplicate order id submitted to processOrder: " + order.ID)
	}

	inst, err := e.instrument(order.Symbol)
	if err != nil {
		e.rejectOrder(ctx, order.ID, violation.New(violation.CodeNoMarket, "%v", err))
		return
	}

	if order.Quantity > inst.MaxTradeSize || order.Quantity < inst.MinTradeSize {
		e.rejectOrder(ctx, order.ID, violation.New(violation.CodeSizeOutOfRange,
			"quantity %d outside allowed range [%d, %d]", order.Quantity, inst.MinTradeSize, inst.MaxTradeSize))
		return
	}

	if _, seen := e.market[order.Symbol]; !seen {
		e.rejectOrder(ctx, order.ID, violation.New(violation.CodeNoMarket, "no market"))
		return
	}

	if v := e.validatePrice(order); v != nil {
		e.rejectOrder(ctx, order.ID, *v)
		return
	}

	order.State = domain.Accepted
	order.AssignBrokerID()
	order.AcceptedAt = e.clock.Now()
	e.store.PutOrder(order)
	e.emit(ctx, events.Event{Kind: events.KindOrderAccepted, OrderAccepted: &events.OrderAcceptedEvent{OrderID: order.ID, BrokerID: order.BrokerID}})

	if order.Type == domain.Market {
		tick := e.market[order.Symbol]
		slipped := e.fillModel.IsSlipped()
		var fillPrice money.Decimal
		if order.Side == domain.Buy {
			fillPrice = tick.Ask
			if slipped {
				fillPrice = fillPrice.Add(inst.Slippage(), inst.PricePrecision)
			}
		} else {
			fillPrice = tick.Bid
			if slipped {
				fillPrice = fillPrice.Sub(inst.Slippage(), inst.PricePrecision)
			}
		}
		e.fillOrder(ctx, order, fillPrice, slipped)
		return
	}

	order.State = domain.Working
	e.store.PutOrder(order)
	e.workingOrders.Set(order.ID, order)
	e.emit(ctx, events.Event{Kind: events.KindOrderWorking, OrderWorking: &events.OrderWorkingEvent{
		OrderID: order.ID, BrokerID: order.BrokerID, Symbol: order.Symbol, Side: string(order.Side),
		Type: string(order.Type), Quantity: order.Quantity, Price: order.Price, ExpireTime: order.ExpireTime,
	}})
}
