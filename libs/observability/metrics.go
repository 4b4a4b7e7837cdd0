package observability

import (
	"context"
	"time"
)

// RecordFill logs a completed fill as a structured metric event and, when m
// is non-nil, observes it against the engine's fill-latency and slippage
// histograms.
func RecordFill(ctx context.Context, m *EngineMetrics, symbol, side string, slipped bool, latency time.Duration, slippageBps float64) {
	LogEvent(ctx, "info", "metric", map[string]any{
		"name":    "order_fill",
		"symbol":  symbol,
		"side":    side,
		"slipped": slipped,
	})
	if m == nil {
		return
	}
	m.FillLatency.ObserveDuration(latency, "symbol", symbol, "side", side)
	m.SlippageBps.Observe(slippageBps, "symbol", symbol)
}

// RecordRejection logs a rejected order (submit or modify) as a metric and
// bumps the engine's rejection counter.
func RecordRejection(ctx context.Context, m *EngineMetrics, symbol, reasonCode string) {
	LogEvent(ctx, "info", "metric", map[string]any{
		"name":   "order_rejected",
		"symbol": symbol,
		"reason": reasonCode,
	})
	if m == nil {
		return
	}
	m.Rejections.Inc("reason", reasonCode)
}

// RecordOCOCancel logs a cancellation triggered by OCO linkage and bumps the
// engine's OCO-cancel counter.
func RecordOCOCancel(ctx context.Context, m *EngineMetrics, cancelledID, triggeredByID string) {
	LogEvent(ctx, "info", "metric", map[string]any{
		"name":          "oco_cancel",
		"cancelled_id":  cancelledID,
		"triggered_by":  triggeredByID,
	})
	if m == nil {
		return
	}
	m.OCOCancels.Inc("triggered_by", triggeredByID)
}

// RecordRolloverRun logs one daily rollover application cycle.
func RecordRolloverRun(ctx context.Context, duration time.Duration, positions int, err error) {
	fields := map[string]any{
		"name":       "rollover_run",
		"latency_ms": duration.Milliseconds(),
		"positions":  positions,
		"success":    err == nil,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	LogEvent(ctx, "info", "metric", fields)
}

// RecordTickProcessed logs one processed market tick and sets the engine's
// working-orders gauge to the current count.
func RecordTickProcessed(ctx context.Context, m *EngineMetrics, symbol string, workingOrders int) {
	LogEvent(ctx, "info", "metric", map[string]any{
		"name":    "tick_processed",
		"symbol":  symbol,
		"scanned": workingOrders,
	})
	if m == nil {
		return
	}
	m.WorkingOrders.Set(float64(workingOrders))
}
