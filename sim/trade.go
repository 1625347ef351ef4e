package sim

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is a closed position. It is never modified after the exit.
type Trade struct {
	Seq        int        `json:"seq" csv:"seq"`
	Symbol     string     `json:"symbol" csv:"symbol"`
	Strategy   string     `json:"strategy" csv:"strategy"`
	EntryTime  time.Time  `json:"entry_time" csv:"entry_time"`
	ExitTime   time.Time  `json:"exit_time" csv:"exit_time"`
	EntryPrice float64    `json:"entry_price" csv:"entry_price"`
	ExitPrice  float64    `json:"exit_price" csv:"exit_price"`
	Shares     int64      `json:"shares" csv:"shares"`
	PnL        float64    `json:"pnl" csv:"pnl"`
	Reason     ExitReason `json:"reason" csv:"reason"`
	Detail     string     `json:"detail,omitempty" csv:"detail"` // strategy exit rule
	BarsHeld   int        `json:"bars_held" csv:"bars_held"`

	// Net is PnL without float rounding: proceeds minus entry cost.
	Net decimal.Decimal `json:"-" csv:"-"`
	// Cost is the cash debited at entry.
	Cost decimal.Decimal `json:"-" csv:"-"`
}

// ReturnPct is PnL over the entry cost.
func (t Trade) ReturnPct() float64 {
	if t.Cost.IsZero() {
		return 0
	}
	return t.Net.Div(t.Cost).InexactFloat64()
}

func (t Trade) Holding() time.Duration {
	return t.ExitTime.Sub(t.EntryTime)
}

func (t Trade) Win() bool { return t.PnL > 0 }

// EquityPoint is the account value after one bar.
type EquityPoint struct {
	Time   time.Time `json:"time" csv:"time"`
	Equity float64   `json:"equity" csv:"equity"`
}
