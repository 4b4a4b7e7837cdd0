package domain

import (
	"time"

	"github.com/ejlayer/backtest-exec/internal/money"
)

// Side is the order's buy/sell direction.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderType enumerates the supported order types. STOP, STOP_LIMIT, and MIT
// are collectively the "STOP-kind" types referenced throughout spec.md §4.
type OrderType string

const (
	Market     OrderType = "MARKET"
	Limit      OrderType = "LIMIT"
	Stop       OrderType = "STOP"
	StopLimit  OrderType = "STOP_LIMIT"
	MIT        OrderType = "MIT"
)

// IsStopKind reports whether t is one of the STOP-kind types.
func (t OrderType) IsStopKind() bool {
	return t == Stop || t == StopLimit || t == MIT
}

// TimeInForce enumerates order duration semantics.
type TimeInForce string

const (
	Day TimeInForce = "DAY"
	GTC TimeInForce = "GTC"
	IOC TimeInForce = "IOC"
)

// OrderState is the order's lifecycle state (spec.md §3).
type OrderState string

const (
	Initialized OrderState = "INITIALIZED"
	Submitted   OrderState = "SUBMITTED"
	Accepted    OrderState = "ACCEPTED"
	Working     OrderState = "WORKING"
	Filled      OrderState = "FILLED"
	Cancelled   OrderState = "CANCELLED"
	Rejected    OrderState = "REJECTED"
	Expired     OrderState = "EXPIRED"
)

// IsTerminal reports whether s is one of FILLED/CANCELLED/REJECTED/EXPIRED.
func (s OrderState) IsTerminal() bool {
	switch s {
	case Filled, Cancelled, Rejected, Expired:
		return true
	default:
		return false
	}
}

// Order is a single trade execution order (spec.md §3).
type Order struct {
	ID       string
	BrokerID string // assigned "B"+ID on accept; empty until then.

	Symbol string
	Side   Side
	Type   OrderType

	Quantity int64
	// Price is absent (IsZero) for MARKET orders.
	Price money.Decimal

	TimeInForce TimeInForce
	ExpireTime  *time.Time

	Label string
	State OrderState

	// AcceptedAt is the clock time at which the order reached ACCEPTED.
	// Used only to measure fill latency for metrics; zero until accepted.
	AcceptedAt time.Time

	// AccountID / StrategyID / PositionID are carried through from the
	// originating SubmitOrder command for inclusion in emitted events.
	AccountID  string
	StrategyID string
	PositionID string
}

// AssignBrokerID sets BrokerID to "B"+ID, called on acceptance.
func (o *Order) AssignBrokerID() {
	o.BrokerID = "B" + o.ID
}
