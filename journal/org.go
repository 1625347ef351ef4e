package journal

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/metrics"
)

// OrgReport is the data behind the Org-mode run report.
type OrgReport struct {
	Run     RunRecord
	Metrics metrics.Metrics
	Trades  []TradeRecord

	Notes       []string
	NextActions []string
}

var orgFuncs = template.FuncMap{
	"pct":   func(x float64) string { return fmt.Sprintf("%.2f%%", x*100) },
	"won":   func(x float64) string { return fmt.Sprintf("%.0f", x) },
	"value": func(v metrics.Value) string { return v.Format(2) },
	"date":  func(t time.Time) string { return t.In(market.KST).Format("2006-01-02") },
	"stamp": func(t time.Time) string { return t.In(market.KST).Format("2006-01-02 Mon 15:04") },
	"short": shortID,
}

var orgTemplate = template.Must(template.New("run").Funcs(orgFuncs).Parse(runOrgTemplate))

const runOrgTemplate = `* BACKTEST: {{.Run.Strategy}} {{.Run.Symbol}} {{.Run.Timeframe}}
:PROPERTIES:
:RUN_ID:      {{.Run.RunID}}
:STRATEGY:    {{.Run.Strategy}}
:SYMBOL:      {{.Run.Symbol}}
:TIMEFRAME:   {{.Run.Timeframe}}
:START_DATE:  {{date .Run.Start}}
:END_DATE:    {{date .Run.End}}
:START_CAP:   {{won .Run.InitialCapital}}
:END_EQUITY:  {{won .Run.FinalEquity}}
:RETURN_PCT:  {{pct .Metrics.TotalReturn}}
:MAX_DD_PCT:  {{pct .Metrics.MaxDrawdown}}
:TRADES:      {{.Metrics.Trades}}
:WIN_RATE:    {{pct .Metrics.WinRate}}
:PROFIT_FAC:  {{value .Metrics.ProfitFactor}}
:CREATED:     [{{stamp .Run.Created}}]
:END:

** Performance Summary
- Net P/L:        *{{won .Metrics.TotalPnL}}*
- Return:         *{{pct .Metrics.TotalReturn}}*
- CAGR:           *{{value .Metrics.CAGR}}*
- Max Drawdown:   *{{pct .Metrics.MaxDrawdown}}* ({{.Metrics.MaxDrawdownDays}} days)
- Sharpe:         *{{value .Metrics.Sharpe}}*
- Sortino:        *{{value .Metrics.Sortino}}*
- Calmar:         *{{value .Metrics.Calmar}}*
- Win Rate:       *{{pct .Metrics.WinRate}}*
- Profit Factor:  *{{value .Metrics.ProfitFactor}}*
- Exposure:       *{{pct .Metrics.Exposure}}*

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Metrics.Wins}} |
| Losses  | {{.Metrics.Losses}} |
| Total   | {{.Metrics.Trades}} |
{{- if .Trades}}

** Trades
| ID | Entry | Exit | Shares | Entry Px | Exit Px | PnL | Reason |
|----+-------+------+--------+----------+---------+-----+--------|
{{- range .Trades}}
| {{short .TradeID}} | {{date .EntryTime}} | {{date .ExitTime}} | {{.Shares}} | {{won .EntryPrice}} | {{won .ExitPrice}} | {{won .PnL}} | {{.Reason}}{{if .Detail}} ({{.Detail}}){{end}} |
{{- end}}
{{- end}}
{{- if .Notes}}

** Observations
{{- range .Notes}}
- {{.}}
{{- end}}
{{- end}}
{{- if .NextActions}}

** Notes / Next Actions
{{- range .NextActions}}
- [ ] {{.}}
{{- end}}
{{- end}}
`

func (r OrgReport) Write(w io.Writer) error {
	return orgTemplate.Execute(w, r)
}

// ExportOrg loads a stored run and renders its Org report.
func (j *SQLite) ExportOrg(ctx context.Context, runID string) (string, error) {
	run, err := j.GetRun(ctx, runID)
	if err != nil {
		return "", err
	}
	m, err := run.DecodeMetrics()
	if err != nil {
		return "", err
	}
	trades, err := j.ListTradesByRunID(ctx, runID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if err := (OrgReport{Run: run, Metrics: m, Trades: trades}).Write(&b); err != nil {
		return "", err
	}
	return b.String(), nil
}

// shortID keeps the trade sequence suffix of a run-scoped trade id.
func shortID(full string) string {
	if i := strings.LastIndexByte(full, '-'); i >= 0 {
		return full[i+1:]
	}
	return full
}
