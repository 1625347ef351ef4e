package backtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/risk"
	"github.com/rustyeddy/backtester/sim"
	"github.com/rustyeddy/backtester/strategies"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, market.KST)

// bars returns n daily bars around 10,000 won that touch neither a 9,700
// stop nor a 10,500 target.
func bars(n int) []market.Bar {
	out := make([]market.Bar, n)
	for i := range out {
		out[i] = market.Bar{
			Time:   day0.AddDate(0, 0, i),
			Open:   10000,
			High:   10100,
			Low:    9900,
			Close:  10000,
			Volume: 1000,
		}
	}
	return out
}

func series(b []market.Bar) *market.Series {
	return &market.Series{Symbol: "005930", Timeframe: market.Daily, Bars: b}
}

func noCosts() Config {
	cfg := DefaultConfig()
	cfg.Costs = sim.CostModel{Slippage: sim.Slippage{Model: sim.SlippageNone}}
	return cfg
}

// scripted signals on fixed bar indexes.
type scripted struct {
	tf      market.Timeframe
	entries map[int][2]float64 // index -> stop, target
	seen    []int
}

func (s *scripted) ID() strategies.ID           { return "scripted" }
func (s *scripted) Timeframe() market.Timeframe { return s.tf }
func (s *scripted) MinBars() int                { return 1 }

func (s *scripted) StopLoss(_ market.Window, e float64) float64   { return e * 0.97 }
func (s *scripted) TakeProfit(_ market.Window, e float64) float64 { return e * 1.05 }

func (s *scripted) GenerateSignal(w market.Window) (*strategies.Signal, error) {
	i := w.Len() - 1
	s.seen = append(s.seen, i)
	st, ok := s.entries[i]
	if !ok {
		return nil, nil
	}
	return &strategies.Signal{Direction: strategies.Buy, StopLoss: st[0], TakeProfit: st[1], Reason: "scripted"}, nil
}

func entryAt(idx ...int) *scripted {
	s := &scripted{entries: map[int][2]float64{}}
	for _, i := range idx {
		s.entries[i] = [2]float64{9700, 10500}
	}
	return s
}

type exiting struct {
	*scripted
	exits map[int]string
}

func (s exiting) ShouldExit(w market.Window, _ strategies.Holding) (bool, string) {
	why, ok := s.exits[w.Len()-1]
	return ok, why
}

type trailing struct {
	*scripted
	stops map[int]float64
}

func (s trailing) TrailStop(w market.Window, _ strategies.Holding) float64 {
	return s.stops[w.Len()-1]
}

type faulty struct {
	*scripted
	panicAt, errAt int
}

func (s faulty) GenerateSignal(w market.Window) (*strategies.Signal, error) {
	switch w.Len() - 1 {
	case s.panicAt:
		panic("index out of range")
	case s.errAt:
		return nil, errors.New("bad bar")
	}
	return s.scripted.GenerateSignal(w)
}

func mustRun(t *testing.T, cfg Config, strat strategies.Strategy, b []market.Bar) *Result {
	t.Helper()
	res, err := Run(context.Background(), cfg, strat, series(b), time.Time{}, time.Time{})
	require.NoError(t, err)
	return res
}

func TestStopLossExit(t *testing.T) {
	t.Parallel()

	b := bars(6)
	b[3].Low, b[3].High = 9600, 10600 // spans both stop and target

	res := mustRun(t, noCosts(), entryAt(2), b)
	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, sim.ExitStopLoss, tr.Reason)
	assert.Equal(t, int64(333), tr.Shares)
	assert.Equal(t, 10000.0, tr.EntryPrice)
	assert.Equal(t, 9700.0, tr.ExitPrice)
	assert.Equal(t, -99900.0, tr.PnL)
	assert.Equal(t, 1, tr.BarsHeld)
	assert.Equal(t, b[2].Time, tr.EntryTime)
	assert.Equal(t, b[3].Time, tr.ExitTime)
	assert.True(t, decimal.NewFromInt(9_900_100).Equal(res.FinalCash))
}

func TestTakeProfitExit(t *testing.T) {
	t.Parallel()

	b := bars(6)
	b[4].High = 10600

	res := mustRun(t, noCosts(), entryAt(2), b)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, sim.ExitTakeProfit, res.Trades[0].Reason)
	assert.Equal(t, 10500.0, res.Trades[0].ExitPrice)
	assert.Equal(t, 166500.0, res.Trades[0].PnL)
	assert.Equal(t, 2, res.Trades[0].BarsHeld)
}

func TestForcedCloseAtRangeEnd(t *testing.T) {
	t.Parallel()

	res := mustRun(t, noCosts(), entryAt(2), bars(6))
	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, sim.ExitForcedClose, tr.Reason)
	assert.Equal(t, bars(6)[5].Time, tr.ExitTime)
	assert.Equal(t, 3, tr.BarsHeld)
	assert.Equal(t, 0.0, tr.PnL)

	require.Len(t, res.Equity, 6)
	assert.Equal(t, 0.5, res.Metrics.Exposure)
	assert.Equal(t, 10_000_000.0, res.FinalEquity)
}

func TestStrategyExit(t *testing.T) {
	t.Parallel()

	b := bars(8)
	b[4].Close = 10050
	strat := exiting{scripted: entryAt(2), exits: map[int]string{4: "ma_break"}}

	res := mustRun(t, noCosts(), strat, b)
	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, sim.ExitStrategy, tr.Reason)
	assert.Equal(t, "ma_break", tr.Detail)
	assert.Equal(t, 10050.0, tr.ExitPrice)
	assert.Equal(t, 2, tr.BarsHeld)
}

func TestPriceExitBeatsStrategyExit(t *testing.T) {
	t.Parallel()

	b := bars(6)
	b[3].Low = 9500
	strat := exiting{scripted: entryAt(2), exits: map[int]string{3: "ma_break"}}

	res := mustRun(t, noCosts(), strat, b)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, sim.ExitStopLoss, res.Trades[0].Reason)
	assert.Empty(t, res.Trades[0].Detail)
}

func TestNoReentryOnExitBar(t *testing.T) {
	t.Parallel()

	b := bars(6)
	b[3].Low = 9500
	strat := entryAt(2, 3)

	res := mustRun(t, noCosts(), strat, b)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, 1, res.Signals)
	assert.NotContains(t, strat.seen, 3)
	assert.Contains(t, strat.seen, 4)
}

func TestSignalOnLastBarRejected(t *testing.T) {
	t.Parallel()

	res := mustRun(t, noCosts(), entryAt(5), bars(6))
	assert.Empty(t, res.Trades)
	assert.Equal(t, 1, res.Signals)
	assert.Equal(t, 1, res.Rejected[CodeRangeEnd])
	assert.Equal(t, 0, res.Metrics.Trades)
}

func TestRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		cfg   func() Config
		stop  float64
		code  string
		valid bool
	}{
		{
			name: "zero size",
			cfg: func() Config {
				c := noCosts()
				c.InitialCapital = 1000
				return c
			},
			stop:  9700,
			code:  risk.CodeZeroSize,
			valid: true,
		},
		{
			name:  "insufficient capital",
			cfg:   noCosts,
			stop:  9999,
			code:  risk.CodeInsufficientCapital,
			valid: true,
		},
		{
			name: "stop above entry",
			cfg:  noCosts,
			stop: 10100,
			code: "INVALID_SIGNAL",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			strat := &scripted{entries: map[int][2]float64{2: {tc.stop, 10500}}}
			res := mustRun(t, tc.cfg(), strat, bars(5))
			assert.Empty(t, res.Trades)
			assert.Equal(t, map[string]int{tc.code: 1}, res.Rejected)
			assert.Equal(t, 1, res.RejectedTotal())
			if tc.valid {
				assert.Equal(t, 1, res.Signals)
			} else {
				assert.Equal(t, 0, res.Signals)
			}
		})
	}
}

func TestMaxPositionRatioCapsShares(t *testing.T) {
	t.Parallel()

	cfg := noCosts()
	cfg.Risk.MaxPositionRatio = 0.2
	res := mustRun(t, cfg, entryAt(2), bars(5))
	require.Len(t, res.Trades, 1)
	assert.Equal(t, int64(200), res.Trades[0].Shares)
}

func TestSignalHookAndDefaults(t *testing.T) {
	t.Parallel()

	b := bars(5)
	b[2].Close = 10050
	strat := &scripted{entries: map[int][2]float64{2: {0, 0}}}

	var got []strategies.Signal
	e, err := NewEngine(noCosts(), WithSignalHook(func(_ context.Context, sig strategies.Signal) {
		got = append(got, sig)
	}))
	require.NoError(t, err)

	res, err := e.Run(context.Background(), strat, series(b), time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 1)

	sig := got[0]
	assert.Equal(t, 10050.0, sig.Price)
	assert.Equal(t, b[2].Time, sig.Time)
	assert.Equal(t, "005930", sig.Symbol)
	assert.Equal(t, strategies.ID("scripted"), sig.Strategy)
	assert.InDelta(t, 10050*0.97, sig.StopLoss, 1e-9)
	assert.InDelta(t, 10050*1.05, sig.TakeProfit, 1e-9)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, "scripted", res.Trades[0].Strategy)
}

func TestTrailingStop(t *testing.T) {
	t.Parallel()

	b := bars(8)
	strat := trailing{
		scripted: entryAt(2),
		stops:    map[int]float64{3: 9950, 4: 9800},
	}

	res := mustRun(t, noCosts(), strat, b)
	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, sim.ExitStopLoss, tr.Reason)
	assert.Equal(t, 9950.0, tr.ExitPrice)
	assert.Equal(t, b[4].Time, tr.ExitTime)
}

func TestStrategyFaultsAreIsolated(t *testing.T) {
	t.Parallel()

	strat := faulty{scripted: entryAt(4), panicAt: 2, errAt: 3}
	b := bars(7)

	res := mustRun(t, noCosts(), strat, b)
	require.Len(t, res.StrategyErrors, 2)
	assert.Equal(t, b[2].Time, res.StrategyErrors[0].Time)
	assert.Contains(t, res.StrategyErrors[0].Error(), "panic")
	assert.Equal(t, b[3].Time, res.StrategyErrors[1].Time)
	assert.EqualError(t, res.StrategyErrors[1].Unwrap(), "bad bar")

	require.Len(t, res.Trades, 1)
	assert.Equal(t, b[4].Time, res.Trades[0].EntryTime)
}

// unpriced signals without levels and fails to price the stop.
type unpriced struct {
	*scripted
}

func (s unpriced) StopLoss(market.Window, float64) float64 {
	panic("stop lookup out of range")
}

func TestStopLookupPanicIsIsolated(t *testing.T) {
	t.Parallel()

	strat := unpriced{scripted: &scripted{entries: map[int][2]float64{
		2: {0, 10500},
		4: {0, 0},
	}}}
	b := bars(7)

	var res *Result
	require.NotPanics(t, func() { res = mustRun(t, noCosts(), strat, b) })
	require.Len(t, res.StrategyErrors, 2)
	assert.Equal(t, b[2].Time, res.StrategyErrors[0].Time)
	assert.Contains(t, res.StrategyErrors[1].Error(), "stop lookup out of range")
	assert.Zero(t, res.Signals)
	assert.Empty(t, res.Trades)
	assert.Len(t, res.Equity, len(b))
}

func TestHistoryBeforeRange(t *testing.T) {
	t.Parallel()

	b := bars(10)
	strat := entryAt()
	res, err := Run(context.Background(), noCosts(), strat, series(b), b[5].Time, b[8].Time)
	require.NoError(t, err)

	assert.Equal(t, []int{5, 6, 7, 8}, strat.seen)
	assert.Equal(t, 4, res.Bars)
	assert.Equal(t, b[5].Time, res.Start)
	assert.Equal(t, b[8].Time, res.End)
	require.Len(t, res.Equity, 4)
	assert.Equal(t, b[5].Time, res.Equity[0].Time)
}

func TestCapitalConservation(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Costs = sim.CostModel{
		CommissionRate: 0.00015,
		TaxRate:        0.0023,
		Slippage:       sim.Slippage{Model: sim.SlippagePerShare, Value: 5},
	}

	b := bars(20)
	b[4].Low = 9600
	b[9].High = 10600
	b[13].Close, b[13].High = 10030, 10100
	res := mustRun(t, cfg, entryAt(2, 6, 11), b)
	require.Len(t, res.Trades, 3)

	var l Ledger
	for _, tr := range res.Trades {
		require.NoError(t, l.RecordTrade(tr))
	}
	want := decimal.NewFromFloat(cfg.InitialCapital).Add(l.NetPnL())
	assert.True(t, want.Equal(res.FinalCash), "want %s, got %s", want, res.FinalCash)
	assert.Equal(t, res.Equity[len(res.Equity)-1].Equity, res.FinalEquity)
}

func TestDeterministic(t *testing.T) {
	t.Parallel()

	b := bars(30)
	b[5].Low = 9500
	b[12].High = 10700
	cfg := DefaultConfig()

	a := mustRun(t, cfg, entryAt(3, 8, 20), b)
	c := mustRun(t, cfg, entryAt(3, 8, 20), b)
	assert.Equal(t, a.Trades, c.Trades)
	assert.Equal(t, a.Equity, c.Equity)
	assert.Equal(t, a.Metrics, c.Metrics)
	assert.Equal(t, a.FinalCash.String(), c.FinalCash.String())
}

func TestNoopBaseline(t *testing.T) {
	t.Parallel()

	res := mustRun(t, DefaultConfig(), strategies.NoopStrategy{}, bars(10))
	assert.Empty(t, res.Trades)
	assert.Equal(t, 0, res.Signals)
	for _, p := range res.Equity {
		assert.Equal(t, 10_000_000.0, p.Equity)
	}
	m := res.Metrics
	assert.Equal(t, 0, m.Trades)
	assert.Equal(t, 0.0, m.WinRate)
	assert.True(t, m.ProfitFactor.IsUndefined())
	assert.Equal(t, 0.0, m.MaxDrawdown)
	assert.Equal(t, 0.0, m.TotalReturn)
	assert.Equal(t, 0.0, m.Exposure)
}

func TestInputErrors(t *testing.T) {
	t.Parallel()

	unordered := bars(5)
	unordered[3].Time = unordered[1].Time.Add(-time.Hour)

	tests := []struct {
		name   string
		strat  strategies.Strategy
		series *market.Series
		start  time.Time
		is     []error
	}{
		{"nil strategy", nil, series(bars(3)), time.Time{}, []error{ErrInvalidInput}},
		{"empty series", entryAt(), series(nil), time.Time{}, []error{ErrInvalidInput, market.ErrEmptySeries}},
		{"non-monotonic", entryAt(), series(unordered), time.Time{}, []error{ErrInvalidInput, market.ErrNonMonotonic}},
		{"empty range", entryAt(), series(bars(3)), day0.AddDate(1, 0, 0), []error{ErrInvalidInput, market.ErrEmptyRange}},
		{"timeframe mismatch", &scripted{tf: market.Minute15}, series(bars(3)), time.Time{}, []error{ErrTimeframeMismatch}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res, err := Run(context.Background(), noCosts(), tc.strat, tc.series, tc.start, time.Time{})
			require.Error(t, err)
			assert.Nil(t, res)
			for _, target := range tc.is {
				assert.ErrorIs(t, err, target)
			}
		})
	}
}

func TestInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.InitialCapital = 0
	_, err := Run(context.Background(), cfg, entryAt(), series(bars(3)), time.Time{}, time.Time{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.Costs.CommissionRate = -0.1
	_, err = NewEngine(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.Risk.RiskPct = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, noCosts(), entryAt(), series(bars(3)), time.Time{}, time.Time{})
	assert.ErrorIs(t, err, ErrCanceled)
	assert.ErrorIs(t, err, context.Canceled)

	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()
	e, err := NewEngine(noCosts(), WithSignalHook(func(context.Context, strategies.Signal) { cancel() }))
	require.NoError(t, err)
	strat := entryAt(2)
	_, err = e.Run(ctx, strat, series(bars(6)), time.Time{}, time.Time{})
	assert.ErrorIs(t, err, ErrCanceled)
	assert.Equal(t, []int{0, 1, 2}, strat.seen)
}

func TestLedgerOrdering(t *testing.T) {
	t.Parallel()

	var l Ledger
	require.NoError(t, l.RecordEquity(sim.EquityPoint{Time: day0, Equity: 1}, true))
	assert.Error(t, l.RecordEquity(sim.EquityPoint{Time: day0, Equity: 1}, false))
	assert.Equal(t, 1, l.BarsInPosition())

	require.NoError(t, l.RecordTrade(sim.Trade{Seq: 1, ExitTime: day0.Add(time.Hour)}))
	assert.Error(t, l.RecordTrade(sim.Trade{Seq: 2, ExitTime: day0}))
	assert.Len(t, l.Trades(), 1)
}

func TestRunner(t *testing.T) {
	t.Parallel()

	e, err := NewEngine(noCosts())
	require.NoError(t, err)

	b := bars(8)
	jobs := []Job{
		{Name: "a", Series: series(b), Strategy: strategies.NoopStrategy{}},
		{Name: "b", Series: series(nil), Strategy: strategies.NoopStrategy{}},
		{Name: "c", Series: series(b), Strategy: strategies.NoopStrategy{}, Start: b[4].Time},
	}
	r := &Runner{Engine: e, Workers: 2}
	out, err := r.Run(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, "a", out[0].Job.Name)
	require.NoError(t, out[0].Err)
	assert.Equal(t, 8, out[0].Result.Bars)

	assert.ErrorIs(t, out[1].Err, ErrInvalidInput)
	assert.Nil(t, out[1].Result)

	require.NoError(t, out[2].Err)
	assert.Equal(t, 4, out[2].Result.Bars)
}

func TestRunnerCanceled(t *testing.T) {
	t.Parallel()

	e, err := NewEngine(noCosts())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &Runner{Engine: e}
	out, err := r.Run(ctx, []Job{{Name: "a", Series: series(bars(3)), Strategy: strategies.NoopStrategy{}}})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, out, 1)
	assert.ErrorIs(t, out[0].Err, ErrCanceled)
}
