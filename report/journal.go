package report

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/rustyeddy/backtester/journal"
)

// WriteRuns lists stored runs, oldest first.
func WriteRuns(w io.Writer, runs []journal.RunRecord) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "no runs")
		return err
	}
	t := newTable(w, "Run", "Created", "Strategy", "Symbol", "TF", "Range", "Trades", "Final equity", "Return")
	t.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
	})
	for _, r := range runs {
		t.Append([]string{
			r.RunID,
			stamp(r.Created),
			r.Strategy,
			r.Symbol,
			r.Timeframe,
			day(r.Start) + " .. " + day(r.End),
			fmt.Sprint(r.Trades),
			Won(r.FinalEquity),
			Pct(r.ReturnPct()),
		})
	}
	t.Render()
	return nil
}

// WriteTradeRecords lists journaled trades.
func WriteTradeRecords(w io.Writer, trades []journal.TradeRecord) error {
	if len(trades) == 0 {
		_, err := fmt.Fprintln(w, "no trades")
		return err
	}
	t := newTable(w, "Trade", "Symbol", "Entry", "Exit", "Shares", "Entry Px", "Exit Px", "P/L", "Reason")
	for _, tr := range trades {
		reason := tr.Reason
		if tr.Detail != "" {
			reason += " (" + tr.Detail + ")"
		}
		t.Append([]string{
			tr.TradeID,
			tr.Symbol,
			stamp(tr.EntryTime),
			stamp(tr.ExitTime),
			p.Sprintf("%d", tr.Shares),
			Won(tr.EntryPrice),
			Won(tr.ExitPrice),
			Won(tr.PnL),
			reason,
		})
	}
	t.Render()
	return nil
}
