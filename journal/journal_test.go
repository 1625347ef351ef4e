package journal

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/metrics"
	"github.com/rustyeddy/backtester/sim"
	"github.com/rustyeddy/backtester/strategies"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 3, 4, 0, 0, 0, 0, market.KST)

func sampleResult(t *testing.T) *backtest.Result {
	t.Helper()

	trades := []sim.Trade{
		{
			Seq: 1, Symbol: "005930", Strategy: "breakout",
			EntryTime: day0.AddDate(0, 0, 1), ExitTime: day0.AddDate(0, 0, 3),
			EntryPrice: 70000, ExitPrice: 73500, Shares: 100, PnL: 350000,
			Reason: sim.ExitTakeProfit, BarsHeld: 2,
		},
		{
			Seq: 2, Symbol: "005930", Strategy: "breakout",
			EntryTime: day0.AddDate(0, 0, 5), ExitTime: day0.AddDate(0, 0, 6),
			EntryPrice: 74000, ExitPrice: 73000, Shares: 100, PnL: -100000,
			Reason: sim.ExitStrategy, Detail: "volume_spike_reversal", BarsHeld: 1,
		},
	}
	equity := make([]sim.EquityPoint, 8)
	for i := range equity {
		equity[i] = sim.EquityPoint{Time: day0.AddDate(0, 0, i), Equity: 10_000_000}
	}
	equity[7].Equity = 10_250_000

	m, err := metrics.Compute(metrics.Input{
		InitialCapital: 10_000_000,
		Trades:         trades,
		Equity:         equity,
		BarsInPosition: 3,
	})
	require.NoError(t, err)

	return &backtest.Result{
		Symbol:         "005930",
		Strategy:       strategies.Breakout,
		Timeframe:      market.Daily,
		Start:          equity[0].Time,
		End:            equity[7].Time,
		Bars:           8,
		InitialCapital: 10_000_000,
		FinalEquity:    10_250_000,
		Trades:         trades,
		Equity:         equity,
		Metrics:        m,
		Config:         backtest.DefaultConfig(),
	}
}

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j, path
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table'`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	require.NoError(t, rows.Err())
	assert.True(t, found["runs"])
	assert.True(t, found["trades"])
	assert.True(t, found["equity"])
}

func TestSQLiteSaveAndLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j, _ := newTestSQLite(t)
	res := sampleResult(t)
	require.NoError(t, j.SaveResult(ctx, "RUN1", res))

	run, err := j.GetRun(ctx, "RUN1")
	require.NoError(t, err)
	assert.Equal(t, "breakout", run.Strategy)
	assert.Equal(t, "005930", run.Symbol)
	assert.Equal(t, "1d", run.Timeframe)
	assert.True(t, run.Start.Equal(res.Start))
	assert.True(t, run.End.Equal(res.End))
	assert.Equal(t, 2, run.Trades)
	assert.InDelta(t, 0.025, run.ReturnPct(), 1e-12)

	m, err := run.DecodeMetrics()
	require.NoError(t, err)
	assert.Equal(t, res.Metrics.Trades, m.Trades)
	assert.Equal(t, res.Metrics.ProfitFactor, m.ProfitFactor)

	trades, err := j.ListTradesByRunID(ctx, "RUN1")
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "RUN1-0001", trades[0].TradeID)
	assert.Equal(t, "take-profit", trades[0].Reason)
	assert.Equal(t, "volume_spike_reversal", trades[1].Detail)
	assert.Equal(t, int64(100), trades[1].Shares)
	assert.True(t, trades[1].ExitTime.Equal(res.Trades[1].ExitTime))

	equity, err := j.ListEquityByRunID(ctx, "RUN1")
	require.NoError(t, err)
	require.Len(t, equity, 8)
	assert.Equal(t, 10_250_000.0, equity[7].Equity)

	got, err := j.GetTrade(ctx, "RUN1-0002")
	require.NoError(t, err)
	assert.InDelta(t, -100000, got.PnL, 1e-6)
}

func TestSQLiteNotFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j, _ := newTestSQLite(t)

	_, err := j.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = j.GetTrade(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteDuplicateRunRollsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j, _ := newTestSQLite(t)
	res := sampleResult(t)
	require.NoError(t, j.SaveResult(ctx, "RUN1", res))
	assert.Error(t, j.SaveResult(ctx, "RUN1", res))

	trades, err := j.ListTradesByRunID(ctx, "RUN1")
	require.NoError(t, err)
	assert.Len(t, trades, 2)
}

func TestListRuns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j, _ := newTestSQLite(t)
	res := sampleResult(t)
	for _, id := range []string{"A", "B", "C"} {
		require.NoError(t, j.SaveResult(ctx, id, res))
	}

	all, err := j.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "A", all[0].RunID)

	last, err := j.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "B", last[0].RunID)
	assert.Equal(t, "C", last[1].RunID)
}

func TestListTradesClosedBetween(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j, _ := newTestSQLite(t)
	require.NoError(t, j.SaveResult(ctx, "RUN1", sampleResult(t)))

	tests := []struct {
		name       string
		start, end time.Time
		want       []string
	}{
		{"both", day0, day0.AddDate(0, 1, 0), []string{"RUN1-0001", "RUN1-0002"}},
		{"end exclusive", day0, day0.AddDate(0, 0, 6), []string{"RUN1-0001"}},
		{"start inclusive", day0.AddDate(0, 0, 6), day0.AddDate(0, 0, 7), []string{"RUN1-0002"}},
		{"none", day0.AddDate(1, 0, 0), day0.AddDate(1, 1, 0), nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			trades, err := j.ListTradesClosedBetween(ctx, tc.start, tc.end)
			require.NoError(t, err)
			var ids []string
			for _, tr := range trades {
				ids = append(ids, tr.TradeID)
			}
			assert.Equal(t, tc.want, ids)
		})
	}
}

func TestCSVSaveResult(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "out")
	j, err := NewCSV(dir)
	require.NoError(t, err)

	res := sampleResult(t)
	require.NoError(t, j.SaveResult(context.Background(), "R1", res))
	require.NoError(t, j.SaveResult(context.Background(), "R2", res))
	require.NoError(t, j.Close())

	trades, err := ReadTrades(j.TradesPath("R1"))
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "R1-0001", trades[0].TradeID)
	assert.Equal(t, 73500.0, trades[0].ExitPrice)
	assert.True(t, trades[0].EntryTime.Equal(res.Trades[0].EntryTime))
	assert.Equal(t, "strategy-exit", trades[1].Reason)

	runs, err := ReadRuns(j.RunsPath())
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "R1", runs[0].RunID)
	assert.Equal(t, "R2", runs[1].RunID)
	assert.Equal(t, 10_250_000.0, runs[1].FinalEquity)

	assert.FileExists(t, j.EquityPath("R2"))
}

func TestExportOrg(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j, _ := newTestSQLite(t)
	require.NoError(t, j.SaveResult(ctx, "RUN1", sampleResult(t)))

	org, err := j.ExportOrg(ctx, "RUN1")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(org, "* BACKTEST: breakout 005930 1d"))
	for _, want := range []string{
		":RUN_ID:      RUN1",
		":START_DATE:  2024-03-04",
		":RETURN_PCT:  2.50%",
		":TRADES:      2",
		":WIN_RATE:    50.00%",
		":PROFIT_FAC:  3.50",
		"| 0001 |",
		"strategy-exit (volume_spike_reversal)",
	} {
		assert.Contains(t, org, want)
	}
	assert.NotContains(t, org, "** Observations")

	_, err = j.ExportOrg(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOrgReportNotes(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	r := OrgReport{
		Run:         RunRecord{RunID: "X", Strategy: "noop", Symbol: "000660", Timeframe: "1d"},
		Metrics:     metrics.Metrics{ProfitFactor: metrics.Null()},
		Notes:       []string{"flat market"},
		NextActions: []string{"retry with 30m bars"},
	}
	require.NoError(t, r.Write(&b))
	out := b.String()
	assert.Contains(t, out, ":PROFIT_FAC:  n/a")
	assert.Contains(t, out, "** Observations\n- flat market")
	assert.Contains(t, out, "- [ ] retry with 30m bars")
	assert.NotContains(t, out, "** Trades")
}
