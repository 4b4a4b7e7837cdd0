package engine

import (
	"context"
	"encoding/json"
	"testing"
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
)

var eurusd = domain.Instrument{
	Symbol:         "EURUSD",
	QuoteCurrency:  "USD",
	SecurityType:   domain.SecurityFX,
	TickSize:       money.NewFromFloat(0.0001),
	PricePrecision: 4,
	MinTradeSize:   1,
	MaxTradeSize:   1_000_000,
	MinStopTicks:   5,
	MinLimitTicks:  5,
}

type fixedRateCalc struct{ rate money.Decimal }

func (f fixedRateCalc) CalcOvernightRate(symbol string, timestamp time.Time) (money.Decimal, error) {
	return f.rate, nil
}

func newTestEngine(t *testing.T, fm fillmodel.Model, idPrefix string) (*Engine, *events.SliceSink, *execdb.InMemory) {
	t.Helper()
	sink := &events.SliceSink{}
	store := execdb.NewInMemory()
	eng := New("ACC-1", config.Config{
		StartingCapital: money.NewFromFloat(10000),
		AccountCurrency: "USD",
		PricePrecision:  4,
	}, Collaborators{
		Clock:      clock.NewVirtual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		IDGen:      idgen.NewSequential(idPrefix),
		Store:      store,
		Sink:       sink,
		FillModel:  fm,
		RateCalc:   fxrate.NewResolver(),
		Commission: commission.NewBasisPoints(2, 4),
		Rollover:   fixedRateCalc{rate: money.NewFromFloat(0.00001)},
		Catalog:    domain.NewCatalog(eurusd),
	})
	return eng, sink, store
}

func tick(bid, ask float64, ts time.Time) domain.Tick {
	return domain.Tick{Symbol: "EURUSD", Bid: money.NewFromFloat(bid), Ask: money.NewFromFloat(ask), Timestamp: ts}
}

func eventKinds(sink *events.SliceSink) []events.Kind {
	out := make([]events.Kind, len(sink.Events))
	for i, e := range sink.Events {
		out[i] = e.Kind
	}
	return out
}

func TestEngine_MarketBuy_NoSlip_Fills(t *testing.T) {
	ctx := context.Background()
	eng, sink, _ := newTestEngine(t, fillmodel.Fixed{}, "T")

	ts := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	eng.ProcessTick(ctx, tick(1.1000, 1.1002, ts))

	eng.SubmitOrder(ctx, SubmitOrder{
		AccountID:  "ACC-1",
		PositionID: "POS-1",
		Order:      domain.Order{ID: "O1", Symbol: "EURUSD", Side: domain.Buy, Type: domain.Market, Quantity: 1000},
	})

	got := eventKinds(sink)
	want := []events.Kind{events.KindOrderSubmitted, events.KindOrderAccepted, events.KindOrderFilled}
	if len(got) != len(want) {
		t.Fatalf("event kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	fill := sink.Events[2].OrderFilled
	if !fill.FillPrice.Eq(money.NewFromFloat(1.1002)) {
		t.Fatalf("fill price = %s, want 1.1002 (ask, no slippage)", fill.FillPrice)
	}
	if fill.Slipped {
		t.Fatalf("expected unslipped fill")
	}
}

func TestEngine_StopBuy_TriggersOnAskGreaterEqualPrice(t *testing.T) {
	ctx := context.Background()
	eng, sink, _ := newTestEngine(t, fillmodel.Fixed{StopFilled: false}, "T")

	setup := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	eng.ProcessTick(ctx, tick(1.0990, 1.0992, setup))

	eng.SubmitOrder(ctx, SubmitOrder{
		AccountID:  "ACC-1",
		PositionID: "POS-1",
		Order:      domain.Order{ID: "O1", Symbol: "EURUSD", Side: domain.Buy, Type: domain.Stop, Quantity: 1000, Price: money.NewFromFloat(1.1020)},
	})
	if !eng.workingOrders.Has("O1") {
		t.Fatalf("expected O1 working after submit")
	}

	touch := time.Date(2024, 1, 2, 9, 1, 0, 0, time.UTC)
	eng.ProcessTick(ctx, tick(1.1018, 1.1020, touch))

	if eng.workingOrders.Has("O1") {
		t.Fatalf("expected O1 to have filled on exact touch")
	}
	last := sink.Events[len(sink.Events)-1]
	if last.Kind != events.KindOrderFilled {
		t.Fatalf("last event = %s, want ORDER_FILLED", last.Kind)
	}
	if !last.OrderFilled.FillPrice.Eq(money.NewFromFloat(1.1020)) {
		t.Fatalf("fill price = %s, want 1.1020", last.OrderFilled.FillPrice)
	}
}

func TestEngine_LimitSell_TriggersWithSlippage(t *testing.T) {
	ctx := context.Background()
	eng, sink, _ := newTestEngine(t, fillmodel.Fixed{Slipped: true}, "T")

	setup := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	eng.ProcessTick(ctx, tick(1.1025, 1.1027, setup))

	eng.SubmitOrder(ctx, SubmitOrder{
		AccountID:  "ACC-1",
		PositionID: "POS-1",
		Order:      domain.Order{ID: "O1", Symbol: "EURUSD", Side: domain.Sell, Type: domain.Limit, Quantity: 1000, Price: money.NewFromFloat(1.1040)},
	})
	if !eng.workingOrders.Has("O1") {
		t.Fatalf("expected O1 working after submit")
	}

	cross := time.Date(2024, 1, 2, 9, 1, 0, 0, time.UTC)
	eng.ProcessTick(ctx, tick(1.1041, 1.1043, cross))

	last := sink.Events[len(sink.Events)-1]
	if last.Kind != events.KindOrderFilled {
		t.Fatalf("last event = %s, want ORDER_FILLED", last.Kind)
	}
	want := money.NewFromFloat(1.1040).Sub(eurusd.Slippage(), eurusd.PricePrecision)
	if !last.OrderFilled.FillPrice.Eq(want) {
		t.Fatalf("fill price = %s, want %s (price - slippage)", last.OrderFilled.FillPrice, want)
	}
	if !last.OrderFilled.Slipped {
		t.Fatalf("expected slipped fill")
	}
}

func TestEngine_AtomicOCO_SiblingCancelsOnFill(t *testing.T) {
	ctx := context.Background()
	eng, sink, _ := newTestEngine(t, fillmodel.Fixed{}, "T")

	setup := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	eng.ProcessTick(ctx, tick(1.0990, 1.0992, setup))

	eng.SubmitAtomicOrder(ctx, SubmitAtomicOrder{
		AccountID:  "ACC-1",
		PositionID: "POS-1",
		Entry:      domain.Order{ID: "ENTRY", Symbol: "EURUSD", Side: domain.Buy, Type: domain.Market, Quantity: 1000},
		StopLoss:   domain.Order{ID: "SL", Symbol: "EURUSD", Side: domain.Sell, Type: domain.Stop, Quantity: 1000, Price: money.NewFromFloat(1.0950)},
		TakeProfit: ptr(domain.Order{ID: "TP", Symbol: "EURUSD", Side: domain.Sell, Type: domain.Limit, Quantity: 1000, Price: money.NewFromFloat(1.1050)}),
	})

	if !eng.workingOrders.Has("SL") || !eng.workingOrders.Has("TP") {
		t.Fatalf("expected both bracket children working after entry fill")
	}
	partner, ok := eng.ocoPairs.Get("SL")
	if !ok || partner != "TP" {
		t.Fatalf("expected SL/TP OCO pairing, got %q, %v", partner, ok)
	}

	fillTP := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	eng.ProcessTick(ctx, tick(1.1052, 1.1054, fillTP))

	if eng.workingOrders.Has("SL") {
		t.Fatalf("expected SL cancelled once TP filled")
	}
	if eng.workingOrders.Has("TP") {
		t.Fatalf("expected TP to have filled and left the working set")
	}
	if eng.ocoPairs.Has("SL") || eng.ocoPairs.Has("TP") {
		t.Fatalf("expected OCO pairing erased after resolution")
	}

	var sawTPFilled, sawSLCancelled bool
	for _, e := range sink.Events {
		if e.Kind == events.KindOrderFilled && e.OrderFilled.OrderID == "TP" {
			sawTPFilled = true
		}
		if e.Kind == events.KindOrderCancelled && e.OrderCancelled.OrderID == "SL" {
			sawSLCancelled = true
		}
	}
	if !sawTPFilled || !sawSLCancelled {
		t.Fatalf("expected TP filled and SL cancelled events, got kinds %v", eventKinds(sink))
	}
}

func TestEngine_WorkingOrder_ExpiresOnExpireTime(t *testing.T) {
	ctx := context.Background()
	eng, sink, _ := newTestEngine(t, fillmodel.Fixed{}, "T")

	setup := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	eng.ProcessTick(ctx, tick(1.0990, 1.0992, setup))

	expire := time.Date(2024, 1, 2, 9, 5, 0, 0, time.UTC)
	eng.SubmitOrder(ctx, SubmitOrder{
		AccountID:  "ACC-1",
		PositionID: "POS-1",
		Order: domain.Order{
			ID: "O1", Symbol: "EURUSD", Side: domain.Buy, Type: domain.Limit,
			Quantity: 1000, Price: money.NewFromFloat(1.0800), ExpireTime: &expire,
		},
	})

	// Market never crosses 1.0800, so the order only resolves via expiry.
	eng.ProcessTick(ctx, tick(1.0990, 1.0992, expire))

	if eng.workingOrders.Has("O1") {
		t.Fatalf("expected O1 removed from working set at expiry")
	}
	last := sink.Events[len(sink.Events)-1]
	if last.Kind != events.KindOrderExpired {
		t.Fatalf("last event = %s, want ORDER_EXPIRED", last.Kind)
	}
}

// TestEngine_Determinism replays the same tick+command sequence through two
// freshly constructed engines (spec.md §5, §8) and asserts the emitted
// event streams are byte-identical, including generated ids.
func TestEngine_Determinism(t *testing.T) {
	run := func() []byte {
		ctx := context.Background()
		eng, sink, _ := newTestEngine(t, fillmodel.Fixed{Slipped: true}, "EVT")

		eng.ProcessTick(ctx, tick(1.0990, 1.0992, time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)))
		eng.SubmitOrder(ctx, SubmitOrder{
			AccountID: "ACC-1", PositionID: "POS-1",
			Order: domain.Order{ID: "O1", Symbol: "EURUSD", Side: domain.Buy, Type: domain.Market, Quantity: 1000},
		})
		eng.SubmitOrder(ctx, SubmitOrder{
			AccountID: "ACC-1", PositionID: "POS-1",
			Order: domain.Order{ID: "O2", Symbol: "EURUSD", Side: domain.Sell, Type: domain.Limit, Quantity: 500, Price: money.NewFromFloat(1.1010)},
		})
		eng.ProcessTick(ctx, tick(1.1012, 1.1014, time.Date(2024, 1, 2, 9, 5, 0, 0, time.UTC)))

		raw, err := json.Marshal(sink.Events)
		if err != nil {
			t.Fatalf("marshal events: %v", err)
		}
		return raw
	}

	a := run()
	b := run()
	if string(a) != string(b) {
		t.Fatalf("replayed event streams differ:\n%s\nvs\n%s", a, b)
	}
}

func TestEngine_CapitalIdentity_TracksRealizedPnLAndCommission(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t, fillmodel.Fixed{}, "T")

	eng.ProcessTick(ctx, tick(1.0990, 1.0992, time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)))
	eng.SubmitOrder(ctx, SubmitOrder{
		AccountID: "ACC-1", PositionID: "POS-1",
		Order: domain.Order{ID: "O1", Symbol: "EURUSD", Side: domain.Buy, Type: domain.Market, Quantity: 1000},
	})
	eng.ProcessTick(ctx, tick(1.1050, 1.1052, time.Date(2024, 1, 2, 9, 5, 0, 0, time.UTC)))
	eng.SubmitOrder(ctx, SubmitOrder{
		AccountID: "ACC-1", PositionID: "POS-1",
		Order: domain.Order{ID: "O2", Symbol: "EURUSD", Side: domain.Sell, Type: domain.Market, Quantity: 1000},
	})

	openPrice := money.NewFromFloat(1.0992)  // ask at entry
	closePrice := money.NewFromFloat(1.1050) // bid at exit
	pnl := closePrice.Sub(openPrice, 8).Mul(money.NewFromInt(1000))
	comm := commission.NewBasisPoints(2, 4).Calculate("EURUSD", 1000, closePrice, money.NewFromInt(1), "USD")
	want := money.NewFromFloat(10000).Add(pnl, 4).Sub(comm, 4)

	if !eng.accountCapital.Eq(want) {
		t.Fatalf("account capital = %s, want %s", eng.accountCapital, want)
	}
}
