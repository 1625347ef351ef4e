package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/market"
)

const ATRPeriod = 14

// ScreenRow is one symbol of a screening run.
type ScreenRow struct {
	Name   string
	Result *backtest.Result
	Err    error

	// ATRPct is the ATR of the last bar over its close; 0 until warmed up.
	ATRPct float64
}

// ATRPct runs a 14-bar ATR over the series and relates it to the last close.
func ATRPct(s *market.Series) float64 {
	if s == nil || len(s.Bars) == 0 {
		return 0
	}
	atr := indicators.NewATR(ATRPeriod)
	for _, b := range s.Bars {
		atr.Update(b)
	}
	last := s.Bars[len(s.Bars)-1].Close
	if !atr.Ready() || last <= 0 {
		return 0
	}
	return atr.Value() / last
}

// Rank turns runner output into rows, successful runs first by total return
// then failed jobs in input order.
func Rank(results []backtest.JobResult) []ScreenRow {
	rows := make([]ScreenRow, len(results))
	for i, jr := range results {
		rows[i] = ScreenRow{Name: jr.Job.Name, Result: jr.Result, Err: jr.Err}
		if jr.Err == nil {
			rows[i].ATRPct = ATRPct(jr.Job.Series)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if (a.Err == nil) != (b.Err == nil) {
			return a.Err == nil
		}
		if a.Err != nil {
			return false
		}
		return a.Result.Metrics.TotalReturn > b.Result.Metrics.TotalReturn
	})
	return rows
}

func WriteScreen(w io.Writer, rows []ScreenRow) error {
	t := newTable(w, "Rank", "Symbol", "Return", "MDD", "Sharpe", "Win rate", "Trades", "ATR%", "Status")
	for i, r := range rows {
		if r.Err != nil {
			t.Append([]string{"-", r.Name, "", "", "", "", "", "", r.Err.Error()})
			continue
		}
		m := r.Result.Metrics
		t.Append([]string{
			fmt.Sprint(i + 1),
			r.Name,
			Pct(m.TotalReturn),
			Pct(m.MaxDrawdown),
			m.Sharpe.Format(2),
			Pct(m.WinRate),
			fmt.Sprint(m.Trades),
			Pct(r.ATRPct),
			"ok",
		})
	}
	t.Render()
	return nil
}
