package backtest

import (
	"fmt"

	"github.com/rustyeddy/backtester/sim"
	"github.com/shopspring/decimal"
)

// Ledger is the append-only record of a run: closed trades in exit order and
// one equity point per bar.
type Ledger struct {
	trades     []sim.Trade
	equity     []sim.EquityPoint
	inPosition int
}

func (l *Ledger) RecordTrade(t sim.Trade) error {
	if n := len(l.trades); n > 0 && t.ExitTime.Before(l.trades[n-1].ExitTime) {
		return fmt.Errorf("ledger: trade %d exits before trade %d", t.Seq, l.trades[n-1].Seq)
	}
	l.trades = append(l.trades, t)
	return nil
}

// RecordEquity appends the point for one bar. open marks bars that ended with
// a position held.
func (l *Ledger) RecordEquity(p sim.EquityPoint, open bool) error {
	if n := len(l.equity); n > 0 && !p.Time.After(l.equity[n-1].Time) {
		return fmt.Errorf("ledger: equity point %s not after %s", p.Time, l.equity[n-1].Time)
	}
	l.equity = append(l.equity, p)
	if open {
		l.inPosition++
	}
	return nil
}

func (l *Ledger) Trades() []sim.Trade {
	return append([]sim.Trade(nil), l.trades...)
}

func (l *Ledger) Equity() []sim.EquityPoint {
	return append([]sim.EquityPoint(nil), l.equity...)
}

func (l *Ledger) BarsInPosition() int { return l.inPosition }

// NetPnL sums the exact trade results.
func (l *Ledger) NetPnL() decimal.Decimal {
	sum := decimal.Zero
	for _, t := range l.trades {
		sum = sum.Add(t.Net)
	}
	return sum
}
