package report

import (
	"fmt"
	"io"

	"github.com/rustyeddy/backtester/screener"
)

// WriteScan prints the ranked signals of a screening run, then a one-line
// count of strategy errors when there were any.
func WriteScan(w io.Writer, rep *screener.Report, top int) error {
	fmt.Fprintf(w, "%s  %d stocks, %d passed filters, %d signals\n\n",
		stamp(rep.Time), rep.Screened, rep.Passed, len(rep.Results))

	t := newTable(w, "Rank", "Code", "Name", "Strategy", "Score", "Entry", "Stop", "Target", "R/R", "Reason")
	for i, r := range rep.Top(top, "") {
		s := r.Signal
		t.Append([]string{
			fmt.Sprint(i + 1),
			r.Code,
			r.Name,
			string(r.Strategy),
			fmt.Sprintf("%.2f", r.Score),
			Won(s.Price),
			Won(s.StopLoss),
			Won(s.TakeProfit),
			fmt.Sprintf("%.2f", s.RiskReward()),
			s.Reason,
		})
	}
	t.Render()

	if n := len(rep.Errors); n > 0 {
		fmt.Fprintf(w, "\n%d strategy errors\n", n)
	}
	return nil
}
