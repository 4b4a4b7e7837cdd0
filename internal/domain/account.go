package domain

import (
	"time"

	"github.com/ejlayer/backtest-exec/internal/money"
)

// AccountState is a full snapshot of the cash account at a point in time,
// as emitted in an AccountStateEvent (spec.md §3 / §6). Margins are always
// zero in this engine — there is no margin modelling.
type AccountState struct {
	ID               string
	Currency         string
	CashBalance      money.Decimal
	CashStartOfDay   money.Decimal
	CashActivityToday money.Decimal

	MarginUsedLiquidation  money.Decimal
	MarginUsedMaintenance  money.Decimal
	MarginRatio            money.Decimal
	MarginCallStatus       string // always 'N' in this engine.

	Timestamp time.Time
}
