// Package events defines the engine's emitted event stream: a single
// discriminated union type delivered through one EventSink.HandleEvent
// call per event, in generation order (spec.md §5, invariant 7).
package events

import (
	"time"

	"github.com/ejlayer/backtest-exec/internal/money"
)

// Kind discriminates the ten event kinds: the account-state event plus the
// nine order events from spec.md §6.
type Kind string

const (
	KindAccountState   Kind = "ACCOUNT_STATE"
	KindOrderSubmitted Kind = "ORDER_SUBMITTED"
	KindOrderAccepted  Kind = "ORDER_ACCEPTED"
	KindOrderRejected  Kind = "ORDER_REJECTED"
	KindOrderWorking   Kind = "ORDER_WORKING"
	KindOrderModified  Kind = "ORDER_MODIFIED"
	KindOrderCancelled Kind = "ORDER_CANCELLED"
	KindOrderExpired   Kind = "ORDER_EXPIRED"
	KindOrderFilled    Kind = "ORDER_FILLED"
	KindCancelReject   Kind = "ORDER_CANCEL_REJECT"
)

// Event is the single sum type emitted by the engine. Every event carries a
// generated ID and the clock time at which it was generated (spec.md §3,
// invariants 6 and 7). Exactly one of the typed payload fields below is
// populated, matching Event.Kind.
type Event struct {
	ID        string
	Kind      Kind
	Timestamp time.Time

	AccountState   *AccountStateEvent
	OrderSubmitted *OrderSubmittedEvent
	OrderAccepted  *OrderAcceptedEvent
	OrderRejected  *OrderRejectedEvent
	OrderWorking   *OrderWorkingEvent
	OrderModified  *OrderModifiedEvent
	OrderCancelled *OrderCancelledEvent
	OrderExpired   *OrderExpiredEvent
	OrderFilled    *OrderFilledEvent
	CancelReject   *CancelRejectEvent
}

// AccountStateEvent mirrors the account snapshot from spec.md §6. Margins
// are always zero and MarginCallStatus is always 'N' in this engine.
type AccountStateEvent struct {
	AccountID             string
	Currency              string
	CashBalance           money.Decimal
	CashStartOfDay        money.Decimal
	CashActivityToday     money.Decimal
	MarginUsedLiquidation money.Decimal
	MarginUsedMaintenance money.Decimal
	MarginRatio           money.Decimal
	MarginCallStatus      string
}

// OrderSubmittedEvent is emitted for every order, before acceptance or
// rejection is known.
type OrderSubmittedEvent struct {
	OrderID string
}

// OrderAcceptedEvent is emitted when an order passes validation.
type OrderAcceptedEvent struct {
	OrderID  string
	BrokerID string
}

// OrderRejectedEvent is emitted for a domain rejection of submit/modify.
type OrderRejectedEvent struct {
	OrderID string
	Reason  string
}

// OrderWorkingEvent is emitted when a non-MARKET order enters the working
// set, carrying the broker id and full order detail per spec.md §4.3.
type OrderWorkingEvent struct {
	OrderID    string
	BrokerID   string
	Symbol     string
	Side       string
	Type       string
	Quantity   int64
	Price      money.Decimal
	ExpireTime *time.Time
}

// OrderModifiedEvent is emitted on a successful modify.
type OrderModifiedEvent struct {
	OrderID       string
	ModifiedQty   int64
	ModifiedPrice money.Decimal
}

// OrderCancelledEvent is emitted when a working order is cancelled, whether
// by direct command or OCO cascade.
type OrderCancelledEvent struct {
	OrderID string
}

// OrderExpiredEvent is emitted when a working order's ExpireTime passes.
type OrderExpiredEvent struct {
	OrderID string
}

// OrderFilledEvent is emitted on a fill, carrying the synthesized execution
// and position ids from spec.md §4.3′.
type OrderFilledEvent struct {
	OrderID          string
	ExecutionID      string
	PositionIDBroker string
	Symbol           string
	Side             string
	Quantity         int64
	FillPrice        money.Decimal
	Currency         string
	Slipped          bool
}

// CancelRejectEvent is emitted when a cancel or modify command cannot be
// applied (order not found, zero modified quantity). A modify that fails
// price validation emits OrderRejectedEvent instead.
type CancelRejectEvent struct {
	OrderID string
	Action  string // "cancel order" or "modify order"
	Reason  string
}

// Sink is the collaborator that receives emitted events, in generation
// order, via direct synchronous calls (spec.md §5). Implementations must
// not re-enter the engine.
type Sink interface {
	HandleEvent(e Event)
}

// SliceSink is an in-memory Sink that simply appends every event, useful
// for tests and deterministic replay comparison (testsupport.Golden).
type SliceSink struct {
	Events []Event
}

func (s *SliceSink) HandleEvent(e Event) {
	s.Events = append(s.Events, e)
}
