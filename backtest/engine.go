// Package backtest walks a strategy over a bar series one bar at a time,
// holding at most one long position, and produces the trades, the equity
// curve and the metrics of the run.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/metrics"
	"github.com/rustyeddy/backtester/risk"
	"github.com/rustyeddy/backtester/sim"
	"github.com/rustyeddy/backtester/strategies"
	log "github.com/sirupsen/logrus"
)

// Rejection code for a signal on the last bar of the range, which would be
// force-closed at its own entry price.
const CodeRangeEnd = "RANGE_END"

// SignalHook sees every valid signal before sizing. It runs on the engine
// goroutine and must not block.
type SignalHook func(ctx context.Context, sig strategies.Signal)

type Option func(*Engine)

func WithSignalHook(h SignalHook) Option {
	return func(e *Engine) { e.hook = h }
}

// Engine runs backtests with a fixed Config. It holds no per-run state and
// can be shared by concurrent runs.
type Engine struct {
	cfg  Config
	hook SignalHook
}

func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

func (e *Engine) Config() Config { return e.cfg }

// Run is NewEngine(cfg).Run.
func Run(ctx context.Context, cfg Config, strat strategies.Strategy, series *market.Series, start, end time.Time) (*Result, error) {
	e, err := NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, strat, series, start, end)
}

// Run simulates strat over the bars of series inside [start, end]; a zero
// start or end leaves that side open. Bars before start are still visible to
// the strategy as history.
//
// The whole series is validated first and any problem fails the run with
// ErrInvalidInput. Cancellation is checked between bars.
func (e *Engine) Run(ctx context.Context, strat strategies.Strategy, series *market.Series, start, end time.Time) (*Result, error) {
	if strat == nil {
		return nil, fmt.Errorf("%w: nil strategy", ErrInvalidInput)
	}
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if tf := strat.Timeframe(); tf != 0 && tf != series.Timeframe {
		return nil, fmt.Errorf("%w: %s wants %s bars, series %s is %s",
			ErrTimeframeMismatch, strat.ID(), tf, series.Symbol, series.Timeframe)
	}
	lo, hi, err := series.Bounds(start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	r := &run{
		ctx:    ctx,
		cfg:    e.cfg,
		hook:   e.hook,
		strat:  strat,
		series: series,
		broker: sim.NewBroker(e.cfg.InitialCapital, e.cfg.Costs),
		res: &Result{
			Symbol:         series.Symbol,
			Strategy:       strat.ID(),
			Timeframe:      series.Timeframe,
			Start:          series.Bars[lo].Time,
			End:            series.Bars[hi-1].Time,
			Bars:           hi - lo,
			InitialCapital: e.cfg.InitialCapital,
			Config:         e.cfg,
		},
		logger: log.WithContext(ctx).WithFields(log.Fields{
			"strategy": strat.ID(),
			"symbol":   series.Symbol,
		}),
	}
	r.exits, _ = strat.(strategies.ExitEvaluator)
	r.trail, _ = strat.(strategies.TrailingStop)

	for i := lo; i < hi; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w at %s: %w", ErrCanceled, series.Bars[i].Time.Format(time.RFC3339), err)
		}
		if err := r.step(i, i == hi-1); err != nil {
			return nil, err
		}
	}
	return r.finish()
}

// run is the state of one simulation. It is never shared.
type run struct {
	ctx    context.Context
	cfg    Config
	hook   SignalHook
	strat  strategies.Strategy
	exits  strategies.ExitEvaluator
	trail  strategies.TrailingStop
	series *market.Series
	broker *sim.Broker
	ledger Ledger
	res    *Result
	logger *log.Entry
}

// step handles one bar: an open position is only checked for exits, a flat
// account is only offered the strategy's signal. A position closed on this
// bar is not replaced until the next one.
func (r *run) step(i int, last bool) error {
	bar := r.series.Bars[i]
	w := r.series.Window(i)

	if r.broker.State() == sim.Open {
		if err := r.manage(w, bar, last); err != nil {
			return err
		}
	} else {
		r.seek(w, bar, last)
	}

	open := r.broker.State() == sim.Open
	return r.ledger.RecordEquity(sim.EquityPoint{
		Time:   bar.Time,
		Equity: r.broker.Equity(bar.Close).InexactFloat64(),
	}, open)
}

func (r *run) manage(w market.Window, bar market.Bar, last bool) error {
	tr := r.broker.Tracker()
	tr.Advance()

	if price, reason, hit := tr.CheckExit(bar); hit {
		return r.exit(bar.Time, price, reason, "")
	}

	pos, _ := tr.Position()
	h := strategies.Holding{
		EntryTime:  pos.EntryTime,
		EntryPrice: pos.EntryPrice,
		StopLoss:   pos.StopLoss,
		TakeProfit: pos.TakeProfit,
		BarsHeld:   pos.BarsHeld,
	}

	if r.exits != nil {
		ok, why, err := r.shouldExit(w, h)
		if err != nil {
			r.strategyError(bar.Time, err)
		} else if ok {
			return r.exit(bar.Time, bar.Close, sim.ExitStrategy, why)
		}
	}

	if last {
		return r.exit(bar.Time, bar.Close, sim.ExitForcedClose, "")
	}

	if r.trail != nil {
		stop, err := r.trailStop(w, h)
		if err != nil {
			r.strategyError(bar.Time, err)
		} else if tr.RaiseStop(stop) {
			r.logger.WithField("bar", bar.Time).Debugf("stop raised to %.2f", stop)
		}
	}
	return nil
}

func (r *run) exit(at time.Time, price float64, reason sim.ExitReason, detail string) error {
	t, err := r.broker.Exit(at, price, reason)
	if err != nil {
		return err
	}
	t.Detail = detail
	r.logger.WithFields(log.Fields{
		"bar":    at,
		"reason": reason,
		"pnl":    t.Net.StringFixed(0),
	}).Debug("position closed")
	return r.ledger.RecordTrade(t)
}

func (r *run) seek(w market.Window, bar market.Bar, last bool) {
	if w.Len() < r.strat.MinBars() {
		return
	}

	sig, err := r.generate(w)
	if err != nil {
		r.strategyError(bar.Time, err)
		return
	}
	if sig == nil {
		return
	}

	if err := r.fillLevels(w, sig, bar.Close); err != nil {
		r.strategyError(bar.Time, err)
		return
	}
	if sig.Symbol == "" {
		sig.Symbol = w.Symbol()
	}
	if sig.Strategy == "" {
		sig.Strategy = r.strat.ID()
	}
	sig.Time = bar.Time
	// entries fill at the close of the signal bar
	sig.Price = bar.Close

	if err := sig.Validate(); err != nil {
		r.reject("INVALID_SIGNAL", bar.Time, err.Error())
		return
	}
	r.res.Signals++
	if r.hook != nil {
		r.hook(r.ctx, *sig)
	}

	if last {
		r.reject(CodeRangeEnd, bar.Time, "signal on the final bar")
		return
	}
	r.enter(sig)
}

func (r *run) enter(sig *strategies.Signal) {
	cash := r.broker.Cash().InexactFloat64()
	size := risk.Calculate(risk.Inputs{
		Capital:          cash,
		RiskPct:          r.cfg.Risk.RiskPct,
		EntryPrice:       sig.Price,
		StopPrice:        sig.StopLoss,
		MaxPositionRatio: r.cfg.Risk.MaxPositionRatio,
	})

	intent := risk.TradeIntent{
		Time:       sig.Time,
		Symbol:     sig.Symbol,
		Shares:     size.Shares,
		Entry:      sig.Price,
		Stop:       sig.StopLoss,
		TakeProfit: sig.TakeProfit,
	}
	if size.Shares > 0 {
		intent.Cost = r.broker.EntryCost(size.Shares, sig.Price).InexactFloat64()
	}
	if d := risk.Evaluate(r.cfg.Risk, intent, risk.AccountSnapshot{Cash: cash}); !d.Allowed {
		v := d.Violations[0]
		r.reject(v.Code, sig.Time, v.Msg)
		return
	}

	pos, err := r.broker.Enter(sim.Position{
		Symbol:     sig.Symbol,
		Strategy:   string(sig.Strategy),
		EntryTime:  sig.Time,
		EntryPrice: sig.Price,
		Shares:     size.Shares,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
	})
	if err != nil {
		r.reject(risk.CodeInsufficientCapital, sig.Time, err.Error())
		return
	}
	r.logger.WithFields(log.Fields{
		"bar":    sig.Time,
		"shares": pos.Shares,
		"entry":  pos.EntryPrice,
		"stop":   pos.StopLoss,
		"target": pos.TakeProfit,
	}).Debugf("position opened: %s", sig.Reason)
}

func (r *run) reject(code string, at time.Time, msg string) {
	if r.res.Rejected == nil {
		r.res.Rejected = make(map[string]int)
	}
	r.res.Rejected[code]++
	r.logger.WithFields(log.Fields{"bar": at, "code": code}).Debugf("signal rejected: %s", msg)
}

func (r *run) strategyError(at time.Time, err error) {
	se := &strategies.StrategyError{Strategy: r.strat.ID(), Time: at, Err: err}
	r.res.StrategyErrors = append(r.res.StrategyErrors, se)
	r.logger.WithField("bar", at).WithError(err).Warn("strategy error, bar skipped")
}

func (r *run) generate(w market.Window) (sig *strategies.Signal, err error) {
	defer recoverStrategy(&err)
	return r.strat.GenerateSignal(w)
}

// fillLevels asks the strategy for the stop and target the signal left at
// zero.
func (r *run) fillLevels(w market.Window, sig *strategies.Signal, entry float64) (err error) {
	defer recoverStrategy(&err)
	if sig.StopLoss == 0 {
		sig.StopLoss = r.strat.StopLoss(w, entry)
	}
	if sig.TakeProfit == 0 {
		sig.TakeProfit = r.strat.TakeProfit(w, entry)
	}
	return nil
}

func (r *run) shouldExit(w market.Window, h strategies.Holding) (ok bool, why string, err error) {
	defer recoverStrategy(&err)
	ok, why = r.exits.ShouldExit(w, h)
	return ok, why, nil
}

func (r *run) trailStop(w market.Window, h strategies.Holding) (stop float64, err error) {
	defer recoverStrategy(&err)
	return r.trail.TrailStop(w, h), nil
}

func recoverStrategy(err *error) {
	if p := recover(); p != nil {
		*err = fmt.Errorf("panic: %v", p)
	}
}

func (r *run) finish() (*Result, error) {
	res := r.res
	res.Trades = r.ledger.Trades()
	res.Equity = r.ledger.Equity()
	res.FinalCash = r.broker.Cash()
	res.FinalEquity = res.FinalCash.InexactFloat64()

	m, err := metrics.Compute(metrics.Input{
		InitialCapital: r.cfg.InitialCapital,
		Trades:         res.Trades,
		Equity:         res.Equity,
		BarsInPosition: r.ledger.BarsInPosition(),
		RiskFreeRate:   r.cfg.RiskFreeRate,
	})
	if err != nil {
		return nil, err
	}
	res.Metrics = m

	r.logger.WithFields(log.Fields{
		"trades":       len(res.Trades),
		"final_equity": res.FinalCash.StringFixed(0),
		"errors":       len(res.StrategyErrors),
	}).Info("backtest finished")
	return res, nil
}
