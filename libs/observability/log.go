package observability

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"
)

var logger = log.New(os.Stdout, "", 0)

func LogEvent(ctx context.Context, level string, event string, fields map[string]any) {
	payload := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339),
		"level": level,
		"event": event,
	}

	info := RunInfoFromContext(ctx)
	if info.FlowID != "" {
		payload["flow_id"] = info.FlowID
	}
	if info.RunID != "" {
		payload["run_id"] = info.RunID
	}
	if info.TaskID != "" {
		payload["task_id"] = info.TaskID
	}
	if info.Symbol != "" {
		payload["symbol"] = info.Symbol
	}

	for key, value := range normalizeFields(fields) {
		payload[key] = value
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("{\"level\":\"error\",\"event\":\"log_marshal_failed\",\"error\":%q}", err.Error())
		return
	}
	logger.Print(string(raw))
}

// LogOrder logs a command entering the engine (submit/modify/cancel/atomic).
func LogOrder(ctx context.Context, command, orderID, symbol string, input any) {
	LogEvent(ctx, "info", "order_command", map[string]any{
		"command": command,
		"order_id": orderID,
		"symbol":   symbol,
		"input":    input,
	})
}

// LogOrderEvent logs an emitted domain event (accepted/working/filled/...).
func LogOrderEvent(ctx context.Context, eventKind, orderID string, fields map[string]any) {
	merged := map[string]any{
		"event_kind": eventKind,
		"order_id":   orderID,
	}
	for k, v := range fields {
		merged[k] = v
	}
	LogEvent(ctx, "info", "order_event", merged)
}

// LogRejection logs a domain rejection (OrderRejected / OrderCancelReject).
func LogRejection(ctx context.Context, orderID, reason string) {
	LogEvent(ctx, "warn", "order_rejected", map[string]any{
		"order_id": orderID,
		"reason":   reason,
	})
}

// LogRollover logs a completed daily rollover application.
func LogRollover(ctx context.Context, accountID string, total float64, err error) {
	fields := map[string]any{
		"account_id": accountID,
		"total":      total,
		"success":    err == nil,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	LogEvent(ctx, "info", "rollover_applied", fields)
}

func normalizeFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		switch key {
		case "input", "payload":
			out[key] = RedactValue(value)
			continue
		}
		if err, ok := value.(error); ok {
			out[key] = err.Error()
			continue
		}
		out[key] = value
	}
	return out
}
