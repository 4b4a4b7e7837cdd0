// Package engine implements the deterministic, single-threaded order
// execution and bookkeeping state machine (spec.md §1–§5). It is driven
// entirely by external calls — ProcessTick and the command handlers — and
// emits events synchronously into a single Sink. There is no internal
// concurrency; callers must serialize access.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/ejlayer/backtest-exec/internal/clock"
	"github.com/ejlayer/backtest-exec/internal/commission"
	"github.com/ejlayer/backtest-exec/internal/config"
	"github.com/ejlayer/backtest-exec/internal/domain"
	"github.com/ejlayer/backtest-exec/internal/events"
	"github.com/ejlayer/backtest-exec/internal/execdb"
	"github.com/ejlayer/backtest-exec/internal/fillmodel"
	"github.com/ejlayer/backtest-exec/internal/fxrate"
	"github.com/ejlayer/backtest-exec/internal/idgen"
	"github.com/ejlayer/backtest-exec/internal/money"
	"github.com/ejlayer/backtest-exec/internal/rollover"
	"github.com/ejlayer/backtest-exec/libs/observability"
)

// Store is the read/write surface the engine needs from the execution
// database. The read methods are the ExecutionDatabase collaborator
// contract (spec.md §6); the write methods are the engine's own
// bookkeeping, called on accept, on entering the working set, and on fill
// (cancel, expiry and rejection are not written) — the engine is the only
// writer, per spec.md §1's "read-only from the engine's perspective".
type Store interface {
	execdb.Database
	PutOrder(o domain.Order)
	PutPosition(orderID string, p domain.Position)
	DeletePosition(id string)
}

// Collaborators bundles every injected dependency (spec.md §9: "a concrete
// engine struct holding trait/interface handles").
type Collaborators struct {
	Clock      clock.Clock
	IDGen      idgen.Factory
	Store      Store
	Sink       events.Sink
	FillModel  fillmodel.Model
	RateCalc   fxrate.Calculator
	Commission commission.Calculator
	Rollover   rollover.InterestCalculator
	Catalog    *domain.Catalog
	// Metrics is the Prometheus-style registry the engine records fills,
	// rejections, OCO cancels, equity, and working-order counts into. If
	// nil, New builds a private registry so the engine always has one.
	Metrics *observability.EngineMetrics
}

// Engine is the matching and bookkeeping state machine.
type Engine struct {
	clock           clock.Clock
	idGen           idgen.Factory
	store           Store
	sink            events.Sink
	fillModel       fillmodel.Model
	rateCalc        fxrate.Calculator
	commission      commission.Calculator
	rolloverCalc    rollover.InterestCalculator
	catalog         *domain.Catalog
	rolloverApplier *rollover.Applier
	metrics         *observability.EngineMetrics
	cfg             config.Config
	accountID       string

	market map[string]domain.Tick

	workingOrders  *orderedMap[string, domain.Order]
	atomicChildren *orderedMap[string, []domain.Order]
	ocoPairs       *orderedMap[string, string]

	accountCapital   money.Decimal
	cashStartDay     money.Decimal
	cashActivityDay  money.Decimal
	totalCommissions money.Decimal
	totalRollover    money.Decimal

	dayNumber       string // "2006-01-02" of the last seen tick, empty until first tick.
	rolloverTime    time.Time
	rolloverApplied bool
}

// New builds an Engine. accountID identifies the single cash account this
// engine maintains; cfg.StartingCapital seeds account_capital.
func New(accountID string, cfg config.Config, c Collaborators) *Engine {
	metrics := c.Metrics
	if metrics == nil {
		metrics = observability.NewEngineMetrics(observability.NewRegistry())
	}
	return &Engine{
		clock:           c.Clock,
		idGen:           c.IDGen,
		store:           c.Store,
		sink:            c.Sink,
		fillModel:       c.FillModel,
		rateCalc:        c.RateCalc,
		commission:      c.Commission,
		rolloverCalc:    c.Rollover,
		catalog:         c.Catalog,
		rolloverApplier: rollover.NewApplier(c.Catalog, c.Rollover, c.RateCalc, cfg.RolloverSpread, cfg.PricePrecision),
		metrics:         metrics,
		cfg:             cfg,
		accountID:       accountID,

		market: make(map[string]domain.Tick),

		workingOrders:  newOrderedMap[string, domain.Order](),
		atomicChildren: newOrderedMap[string, []domain.Order](),
		ocoPairs:       newOrderedMap[string, string](),

		accountCapital:   cfg.StartingCapital,
		cashStartDay:     cfg.StartingCapital,
		cashActivityDay:  money.Zero,
		totalCommissions: money.Zero,
		totalRollover:    money.Zero,
	}
}

// emit assigns a fresh id and the current clock time to e, dispatches it to
// the sink, and logs it through the ambient observability stack.
func (e *Engine) emit(ctx context.Context, ev events.Event) {
	ev.ID = e.idGen.Generate()
	ev.Timestamp = e.clock.Now()
	e.sink.HandleEvent(ev)

	orderID := ""
	switch {
	case ev.OrderSubmitted != nil:
		orderID = ev.OrderSubmitted.OrderID
	case ev.OrderAccepted != nil:
		orderID = ev.OrderAccepted.OrderID
	case ev.OrderRejected != nil:
		orderID = ev.OrderRejected.OrderID
	case ev.OrderWorking != nil:
		orderID = ev.OrderWorking.OrderID
	case ev.OrderModified != nil:
		orderID = ev.OrderModified.OrderID
	case ev.OrderCancelled != nil:
		orderID = ev.OrderCancelled.OrderID
	case ev.OrderExpired != nil:
		orderID = ev.OrderExpired.OrderID
	case ev.OrderFilled != nil:
		orderID = ev.OrderFilled.OrderID
	case ev.CancelReject != nil:
		orderID = ev.CancelReject.OrderID
	}
	observability.LogOrderEvent(ctx, string(ev.Kind), orderID, nil)
}

// snapshotAccount builds the current AccountStateEvent payload.
func (e *Engine) snapshotAccount() events.AccountStateEvent {
	return events.AccountStateEvent{
		AccountID:         e.accountID,
		Currency:          e.cfg.AccountCurrency,
		CashBalance:       e.accountCapital,
		CashStartOfDay:    e.cashStartDay,
		CashActivityToday: e.cashActivityDay,
		MarginCallStatus:  "N",
	}
}

func (e *Engine) emitAccountState(ctx context.Context) {
	e.emit(ctx, events.Event{Kind: events.KindAccountState, AccountState: ptr(e.snapshotAccount())})
	e.metrics.Equity.Set(e.accountCapital.Float64())
}

func ptr[T any](v T) *T { return &v }

// rateSnapshot builds the bid/ask rate maps the fxrate.Calculator expects,
// from the engine's current market (spec.md §4.8: "matching engine simply
// supplies the current snapshot").
func (e *Engine) rateSnapshot() fxrate.Snapshot {
	snap := fxrate.Snapshot{Bid: make(map[string]money.Decimal), Ask: make(map[string]money.Decimal)}
	for symbol, t := range e.market {
		snap.Bid[symbol] = t.Bid
		snap.Ask[symbol] = t.Ask
	}
	return snap
}

func (e *Engine) instrument(symbol string) (domain.Instrument, error) {
	inst, ok := e.catalog.Get(symbol)
	if !ok {
		return domain.Instrument{}, fmt.Errorf("engine: no instrument catalog entry for %s", symbol)
	}
	return inst, nil
}
