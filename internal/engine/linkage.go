package engine

import (
	"context"

	"github.com/ejlayer/backtest-exec/internal/domain"
	"github.com/ejlayer/backtest-exec/internal/events"
	"github.com/ejlayer/backtest-exec/internal/violation"
	"github.com/ejlayer/backtest-exec/libs/observability"
)

// rejectOrder emits OrderRejected and runs the rejection cascade (spec.md
// §4.4, §4.2).
func (e *Engine) rejectOrder(ctx context.Context, orderID string, v violation.Violation) {
	e.emit(ctx, events.Event{Kind: events.KindOrderRejected, OrderRejected: &events.OrderRejectedEvent{OrderID: orderID, Reason: v.Error()}})
	observability.LogRejection(ctx, orderID, v.Error())
	observability.RecordRejection(ctx, e.metrics, "", string(v.Code))
	e.removeLinkage(ctx, orderID)
}

// expireOrder emits OrderExpired and runs the same linkage cleanup as
// rejection (spec.md §4.1, §4.4).
func (e *Engine) expireOrder(ctx context.Context, order domain.Order) {
	e.emit(ctx, events.Event{Kind: events.KindOrderExpired, OrderExpired: &events.OrderExpiredEvent{OrderID: order.ID}})
	e.removeLinkage(ctx, order.ID)
}

// removeLinkage handles both cascade shapes from spec.md §4.4: if id is an
// atomic parent whose children never became working, the OCO pair between
// those children (if any) is erased directly; otherwise id itself may be
// an OCO participant, handled by checkOCO. Either way atomic_children[id]
// is discarded afterward.
func (e *Engine) removeLinkage(ctx context.Context, id string) {
	if children, ok := e.atomicChildren.Get(id); ok {
		for _, child := range children {
			if partner, ok := e.ocoPairs.Get(child.ID); ok {
				e.ocoPairs.Delete(child.ID)
				e.ocoPairs.Delete(partner)
			}
		}
		e.cleanUpChildren(id)
		return
	}
	e.checkOCO(ctx, id)
	e.cleanUpChildren(id)
}

// checkOCO implements spec.md §4.4 `_check_oco`: if id participates in an
// OCO pair, erase both entries, reject any still-pending sibling child
// equal to the partner, and cancel the partner if it is currently working.
func (e *Engine) checkOCO(ctx context.Context, id string) {
	partner, ok := e.ocoPairs.Get(id)
	if !ok {
		return
	}
	e.ocoPairs.Delete(id)
	e.ocoPairs.Delete(partner)

	for _, ent := range e.atomicChildren.Snapshot() {
		children := ent.Value
		for i, child := range children {
			if child.ID != partner {
				continue
			}
			e.emit(ctx, events.Event{Kind: events.KindOrderRejected, OrderRejected: &events.OrderRejectedEvent{
				OrderID: partner, Reason: violation.OCOPartnerRejected(id).Error(),
			}})
			children = append(children[:i], children[i+1:]...)
			e.atomicChildren.Set(ent.Key, children)
			break
		}
	}

	if _, ok := e.workingOrders.Get(partner); ok {
		e.workingOrders.Delete(partner)
		e.emit(ctx, events.Event{Kind: events.KindOrderCancelled, OrderCancelled: &events.OrderCancelledEvent{OrderID: partner}})
		observability.RecordOCOCancel(ctx, e.metrics, partner, id)
	}
}

// cleanUpChildren erases atomic_children[id] if present (spec.md §4.4).
func (e *Engine) cleanUpChildren(id string) {
	e.atomicChildren.Delete(id)
}
