// Package report renders backtest results as text tables for the terminal.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/metrics"
	"github.com/rustyeddy/backtester/sim"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var p = message.NewPrinter(language.Korean)

// Won formats an amount with thousands separators and no decimals.
func Won(x float64) string { return p.Sprintf("%.0f", x) }

func Pct(x float64) string { return fmt.Sprintf("%.2f%%", x*100) }

// PctValue formats a nullable fraction.
func PctValue(v metrics.Value) string {
	if f, ok := v.Float(); ok {
		return Pct(f)
	}
	return v.Format(2)
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetAutoFormatHeaders(false)
	t.SetAutoWrapText(false)
	if len(header) > 0 {
		t.SetHeader(header)
	}
	return t
}

func stamp(t time.Time) string { return t.In(market.KST).Format("2006-01-02 15:04") }

func day(t time.Time) string { return t.In(market.KST).Format("2006-01-02") }

// WriteResult prints the run header, the metrics table and any rejections.
func WriteResult(w io.Writer, res *backtest.Result) error {
	m := res.Metrics
	fmt.Fprintf(w, "%s %s %s  %s .. %s  (%d bars)\n\n",
		res.Strategy, res.Symbol, res.Timeframe,
		stamp(res.Start), stamp(res.End), res.Bars)

	t := metricsTable(w)
	t.AppendBulk([][]string{
		{"Initial capital", Won(res.InitialCapital)},
		{"Final equity", Won(res.FinalEquity)},
	})
	t.AppendBulk(metricRows(m))
	t.Append([]string{"Signals", fmt.Sprint(res.Signals)})
	t.Render()

	if len(res.Rejected) > 0 {
		codes := make([]string, 0, len(res.Rejected))
		for c := range res.Rejected {
			codes = append(codes, c)
		}
		sort.Strings(codes)
		parts := make([]string, len(codes))
		for i, c := range codes {
			parts[i] = fmt.Sprintf("%s=%d", c, res.Rejected[c])
		}
		fmt.Fprintf(w, "rejected: %s\n", strings.Join(parts, " "))
	}
	if n := len(res.StrategyErrors); n > 0 {
		fmt.Fprintf(w, "strategy errors: %d (first: %v)\n", n, res.StrategyErrors[0])
	}
	return nil
}

// WriteMetrics prints the metrics table alone, for runs read back from a
// journal.
func WriteMetrics(w io.Writer, m metrics.Metrics) error {
	t := metricsTable(w)
	t.AppendBulk(metricRows(m))
	t.Render()
	return nil
}

func metricsTable(w io.Writer) *tablewriter.Table {
	t := newTable(w, "Metric", "Value")
	t.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	return t
}

func metricRows(m metrics.Metrics) [][]string {
	return [][]string{
		{"Net P/L", Won(m.TotalPnL)},
		{"Total return", Pct(m.TotalReturn)},
		{"CAGR", PctValue(m.CAGR)},
		{"Max drawdown", Pct(m.MaxDrawdown)},
		{"Max drawdown (KRW)", Won(m.MaxDrawdownAmount)},
		{"Max drawdown days", fmt.Sprint(m.MaxDrawdownDays)},
		{"Sharpe", m.Sharpe.Format(2)},
		{"Sortino", m.Sortino.Format(2)},
		{"Calmar", m.Calmar.Format(2)},
		{"Trades", fmt.Sprint(m.Trades)},
		{"Win rate", Pct(m.WinRate)},
		{"Profit factor", m.ProfitFactor.Format(2)},
		{"Avg win", Won(m.AvgWin)},
		{"Avg loss", Won(m.AvgLoss)},
		{"Win/loss ratio", m.AvgWinLossRatio.Format(2)},
		{"Expectancy", Won(m.Expectancy)},
		{"Best trade", Won(m.BestTrade)},
		{"Worst trade", Won(m.WorstTrade)},
		{"Avg holding days", fmt.Sprintf("%.1f", m.AvgHoldingDays)},
		{"Exposure", Pct(m.Exposure)},
	}
}

// WriteTrades prints one row per closed trade.
func WriteTrades(w io.Writer, trades []sim.Trade) error {
	if len(trades) == 0 {
		_, err := fmt.Fprintln(w, "no trades")
		return err
	}
	t := newTable(w, "#", "Entry", "Exit", "Shares", "Entry Px", "Exit Px", "P/L", "Return", "Bars", "Reason")
	for _, tr := range trades {
		reason := string(tr.Reason)
		if tr.Detail != "" {
			reason += " (" + tr.Detail + ")"
		}
		t.Append([]string{
			fmt.Sprint(tr.Seq),
			stamp(tr.EntryTime),
			stamp(tr.ExitTime),
			p.Sprintf("%d", tr.Shares),
			Won(tr.EntryPrice),
			Won(tr.ExitPrice),
			Won(tr.PnL),
			Pct(tr.ReturnPct()),
			fmt.Sprint(tr.BarsHeld),
			reason,
		})
	}
	t.Render()
	return nil
}

// SortByReturn orders results best total return first. Ties keep their order.
func SortByReturn(results []*backtest.Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Metrics.TotalReturn > results[j].Metrics.TotalReturn
	})
}

// WriteComparison prints strategies side by side, best total return first.
func WriteComparison(w io.Writer, results []*backtest.Result) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "no results")
		return err
	}
	rows := append([]*backtest.Result(nil), results...)
	SortByReturn(rows)

	t := newTable(w, "Strategy", "Symbol", "Return", "CAGR", "MDD", "Sharpe", "Win rate", "PF", "Trades")
	for _, r := range rows {
		m := r.Metrics
		t.Append([]string{
			string(r.Strategy),
			r.Symbol,
			Pct(m.TotalReturn),
			PctValue(m.CAGR),
			Pct(m.MaxDrawdown),
			m.Sharpe.Format(2),
			Pct(m.WinRate),
			m.ProfitFactor.Format(2),
			fmt.Sprint(m.Trades),
		})
	}
	t.Render()
	return nil
}
