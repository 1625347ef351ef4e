package backtest

import (
	"time"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/metrics"
	"github.com/rustyeddy/backtester/sim"
	"github.com/rustyeddy/backtester/strategies"
	"github.com/shopspring/decimal"
)

// Result is the outcome of one run. It is not modified after Run returns.
type Result struct {
	Symbol    string           `json:"symbol"`
	Strategy  strategies.ID    `json:"strategy"`
	Timeframe market.Timeframe `json:"timeframe"`
	Start     time.Time        `json:"start"`
	End       time.Time        `json:"end"`
	Bars      int              `json:"bars"`

	InitialCapital float64         `json:"initial_capital"`
	FinalEquity    float64         `json:"final_equity"`
	FinalCash      decimal.Decimal `json:"-"`

	Trades  []sim.Trade       `json:"trades"`
	Equity  []sim.EquityPoint `json:"equity"`
	Metrics metrics.Metrics   `json:"metrics"`

	Signals  int            `json:"signals"`
	Rejected map[string]int `json:"rejected,omitempty"` // by violation code

	StrategyErrors []*strategies.StrategyError `json:"-"`
	Config         Config                      `json:"config"`
}

func (r *Result) RejectedTotal() int {
	n := 0
	for _, c := range r.Rejected {
		n += c
	}
	return n
}
