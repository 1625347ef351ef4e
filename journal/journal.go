// Package journal persists finished backtests: one run row, its trades and
// its equity curve, keyed by run id.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/internal/id"
	"github.com/rustyeddy/backtester/metrics"
)

// RunRecord is the summary row of one backtest.
type RunRecord struct {
	RunID          string    `csv:"run_id"`
	Created        time.Time `csv:"created"`
	Strategy       string    `csv:"strategy"`
	Symbol         string    `csv:"symbol"`
	Timeframe      string    `csv:"timeframe"`
	Start          time.Time `csv:"start"`
	End            time.Time `csv:"end"`
	InitialCapital float64   `csv:"initial_capital"`
	FinalEquity    float64   `csv:"final_equity"`
	Trades         int       `csv:"trades"`
	Config         []byte    `csv:"-"` // JSON
	Metrics        []byte    `csv:"-"` // JSON
}

// DecodeMetrics parses the stored metrics.
func (r RunRecord) DecodeMetrics() (metrics.Metrics, error) {
	var m metrics.Metrics
	if len(r.Metrics) == 0 {
		return m, fmt.Errorf("run %s has no metrics", r.RunID)
	}
	if err := json.Unmarshal(r.Metrics, &m); err != nil {
		return m, fmt.Errorf("run %s metrics: %w", r.RunID, err)
	}
	return m, nil
}

func (r RunRecord) ReturnPct() float64 {
	if r.InitialCapital == 0 {
		return 0
	}
	return (r.FinalEquity - r.InitialCapital) / r.InitialCapital
}

type TradeRecord struct {
	TradeID    string    `csv:"trade_id"`
	RunID      string    `csv:"run_id"`
	Symbol     string    `csv:"symbol"`
	Strategy   string    `csv:"strategy"`
	EntryTime  time.Time `csv:"entry_time"`
	EntryPrice float64   `csv:"entry_price"`
	ExitTime   time.Time `csv:"exit_time"`
	ExitPrice  float64   `csv:"exit_price"`
	Shares     int64     `csv:"shares"`
	PnL        float64   `csv:"pnl"`
	Reason     string    `csv:"reason"`
	Detail     string    `csv:"detail"`
}

type EquityRecord struct {
	RunID  string    `csv:"run_id"`
	Time   time.Time `csv:"time"`
	Equity float64   `csv:"equity"`
}

// Sink stores finished runs. The backtest package never sees it; callers save
// after Run returns.
type Sink interface {
	SaveResult(ctx context.Context, runID string, res *backtest.Result) error
	Close() error
}

// Records flattens a result into the rows every sink writes.
func Records(runID string, created time.Time, res *backtest.Result) (RunRecord, []TradeRecord, []EquityRecord, error) {
	cfg, err := json.Marshal(res.Config)
	if err != nil {
		return RunRecord{}, nil, nil, fmt.Errorf("encode config: %w", err)
	}
	m, err := json.Marshal(res.Metrics)
	if err != nil {
		return RunRecord{}, nil, nil, fmt.Errorf("encode metrics: %w", err)
	}

	run := RunRecord{
		RunID:          runID,
		Created:        created,
		Strategy:       string(res.Strategy),
		Symbol:         res.Symbol,
		Timeframe:      res.Timeframe.String(),
		Start:          res.Start,
		End:            res.End,
		InitialCapital: res.InitialCapital,
		FinalEquity:    res.FinalEquity,
		Trades:         len(res.Trades),
		Config:         cfg,
		Metrics:        m,
	}

	trades := make([]TradeRecord, len(res.Trades))
	for i, t := range res.Trades {
		trades[i] = TradeRecord{
			TradeID:    id.Trade(runID, t.Seq),
			RunID:      runID,
			Symbol:     t.Symbol,
			Strategy:   t.Strategy,
			EntryTime:  t.EntryTime,
			EntryPrice: t.EntryPrice,
			ExitTime:   t.ExitTime,
			ExitPrice:  t.ExitPrice,
			Shares:     t.Shares,
			PnL:        t.PnL,
			Reason:     string(t.Reason),
			Detail:     t.Detail,
		}
	}

	equity := make([]EquityRecord, len(res.Equity))
	for i, p := range res.Equity {
		equity[i] = EquityRecord{RunID: runID, Time: p.Time, Equity: p.Equity}
	}
	return run, trades, equity, nil
}
