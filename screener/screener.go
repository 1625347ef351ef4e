// Package screener finds the stocks whose latest bars pass a set of filters
// and trigger a strategy entry, ranks them by signal strength and reports the
// outcome to the notification sink.
package screener

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/notify"
	"github.com/rustyeddy/backtester/strategies"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var won = message.NewPrinter(language.Korean)

// Stock is one screening candidate.
type Stock struct {
	Code   string
	Name   string
	Series *market.Series
}

func (s Stock) label() string {
	if s.Name == "" || s.Name == s.Code {
		return s.Code
	}
	return s.Code + " " + s.Name
}

// Result is one strategy entry found on a stock that passed the filters.
type Result struct {
	Code     string
	Name     string
	Strategy strategies.ID
	Signal   strategies.Signal
	Filters  []FilterResult
	Score    float64
}

// Outcome is everything learnt about one stock.
type Outcome struct {
	Stock   Stock
	Passed  bool // every filter passed
	Filters []FilterResult
	Results []Result
	Errors  []error
}

// Report is a finished screening run.
type Report struct {
	Time     time.Time
	Screened int
	Passed   int // stocks that passed the filters
	Results  []Result
	Errors   []error
}

// Screener applies Filters, then every Strategy, to the last bar of each
// stock. The strategies are shared by the workers and must not keep state.
type Screener struct {
	Strategies []strategies.Strategy
	Filters    []Filter
	Workers    int // <= 0 means GOMAXPROCS
}

// New builds a screener from strategy names and a filter preset. No names
// means every variant except noop.
func New(names []string, preset string) (*Screener, error) {
	if len(names) == 0 {
		for _, id := range strategies.IDs() {
			if id != strategies.Noop {
				names = append(names, string(id))
			}
		}
	}
	s := &Screener{}
	for _, n := range names {
		strat, err := strategies.ByName(n, nil)
		if err != nil {
			return nil, err
		}
		s.Strategies = append(s.Strategies, strat)
	}
	filters, err := Preset(preset)
	if err != nil {
		return nil, err
	}
	s.Filters = filters
	return s, nil
}

// filter runs the filters in order and stops at the first failure.
func (s *Screener) filter(bars []market.Bar) (bool, []FilterResult) {
	results := make([]FilterResult, 0, len(s.Filters))
	for _, f := range s.Filters {
		r := f.Apply(bars)
		results = append(results, r)
		if !r.Passed {
			return false, results
		}
	}
	return true, results
}

// ScreenStock filters one stock and asks each strategy for a signal on its
// last bar. Strategies that want another timeframe or more bars than the
// series has are skipped. A strategy failure is recorded and does not stop
// the other strategies.
func (s *Screener) ScreenStock(st Stock) Outcome {
	out := Outcome{Stock: st}
	if st.Series == nil || st.Series.Len() == 0 {
		out.Errors = append(out.Errors, fmt.Errorf("%s: no bars", st.Code))
		return out
	}

	out.Passed, out.Filters = s.filter(st.Series.Bars)
	if !out.Passed {
		return out
	}

	w := st.Series.Window(st.Series.Len() - 1)
	for _, strat := range s.Strategies {
		if tf := strat.Timeframe(); tf != 0 && tf != st.Series.Timeframe {
			continue
		}
		if w.Len() < strat.MinBars() {
			continue
		}
		sig, err := signal(strat, w)
		if err != nil {
			out.Errors = append(out.Errors, &strategies.StrategyError{Strategy: strat.ID(), Time: w.Time(), Err: err})
			log.WithFields(log.Fields{
				"strategy": strat.ID(),
				"code":     st.Code,
			}).WithError(err).Warn("strategy failed")
			continue
		}
		if sig == nil {
			continue
		}
		out.Results = append(out.Results, Result{
			Code:     st.Code,
			Name:     st.Name,
			Strategy: strat.ID(),
			Signal:   *sig,
			Filters:  out.Filters,
			Score:    sig.Strength,
		})
	}
	return out
}

// signal asks strat for an entry and completes it with the strategy's stop
// and target. A panic inside the strategy is returned as an error.
func signal(strat strategies.Strategy, w market.Window) (sig *strategies.Signal, err error) {
	defer func() {
		if p := recover(); p != nil {
			sig, err = nil, fmt.Errorf("panic: %v", p)
		}
	}()

	sig, err = strat.GenerateSignal(w)
	if err != nil || sig == nil {
		return nil, err
	}
	if sig.StopLoss == 0 {
		sig.StopLoss = strat.StopLoss(w, sig.Price)
	}
	if sig.TakeProfit == 0 {
		sig.TakeProfit = strat.TakeProfit(w, sig.Price)
	}
	if err := sig.Validate(); err != nil {
		return nil, err
	}
	return sig, nil
}

// ScreenStocks screens every stock on a bounded number of goroutines and
// ranks the results by score, highest first; ties keep the input order.
// Only cancellation of ctx is returned as an error.
func (s *Screener) ScreenStocks(ctx context.Context, stocks []Stock) (*Report, error) {
	if len(s.Strategies) == 0 {
		return nil, errors.New("screener: no strategies")
	}
	workers := s.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	logger := log.WithContext(ctx).WithFields(log.Fields{
		"stocks":     len(stocks),
		"strategies": len(s.Strategies),
		"filters":    len(s.Filters),
	})
	logger.Info("screening started")

	outcomes := make([]Outcome, len(stocks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, st := range stocks {
		i := i
		st := st
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return nil
			}
			outcomes[i] = s.ScreenStock(st)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("screener: %w", err)
	}

	rep := &Report{Time: time.Now(), Screened: len(stocks)}
	for _, o := range outcomes {
		if o.Passed {
			rep.Passed++
		}
		rep.Results = append(rep.Results, o.Results...)
		rep.Errors = append(rep.Errors, o.Errors...)
	}
	sort.SliceStable(rep.Results, func(i, j int) bool {
		return rep.Results[i].Score > rep.Results[j].Score
	})

	logger.WithFields(log.Fields{
		"passed":  rep.Passed,
		"signals": len(rep.Results),
		"errors":  len(rep.Errors),
	}).Info("screening finished")
	return rep, nil
}

// Top returns the n best results (all of them when n <= 0), only those of
// id when it is not empty.
func (r *Report) Top(n int, id strategies.ID) []Result {
	var out []Result
	for _, res := range r.Results {
		if id != "" && res.Strategy != id {
			continue
		}
		if n > 0 && len(out) == n {
			break
		}
		out = append(out, res)
	}
	return out
}

// ByStrategy groups the results by strategy, keeping their rank order.
func (r *Report) ByStrategy() map[strategies.ID][]Result {
	m := make(map[strategies.ID][]Result)
	for _, res := range r.Results {
		m[res.Strategy] = append(m[res.Strategy], res)
	}
	return m
}

// SummaryTop is how many results Summary lists.
const SummaryTop = 20

// Summary renders the report as plain text for a chat message.
func (r *Report) Summary() string {
	if len(r.Results) == 0 {
		return fmt.Sprintf("Screening %s: %d stocks, %d passed filters, no signals",
			r.Time.In(market.KST).Format("2006-01-02 15:04"), r.Screened, r.Passed)
	}

	lines := []string{
		fmt.Sprintf("Screening %s", r.Time.In(market.KST).Format("2006-01-02 15:04")),
		fmt.Sprintf("%d stocks, %d passed filters, %d signals", r.Screened, r.Passed, len(r.Results)),
		"",
	}

	groups := r.ByStrategy()
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	for _, id := range ids {
		lines = append(lines, fmt.Sprintf("%s: %d", id, len(groups[strategies.ID(id)])))
	}
	lines = append(lines, "")

	for i, res := range r.Top(SummaryTop, "") {
		st := Stock{Code: res.Code, Name: res.Name}
		lines = append(lines, won.Sprintf("%2d. %s %s score %.2f entry %.0f stop %.0f target %.0f",
			i+1, st.label(), res.Strategy, res.Score, res.Signal.Price, res.Signal.StopLoss, res.Signal.TakeProfit))
	}
	if len(r.Errors) > 0 {
		lines = append(lines, "", fmt.Sprintf("%d strategy errors", len(r.Errors)))
	}
	return strings.Join(lines, "\n")
}

// Publisher is the part of notify.Dispatcher the screener uses.
type Publisher interface {
	Publish(ev notify.Event)
}

// Notify publishes the summary and then one signal event for each of the top
// results; top <= 0 sends the summary only.
func (r *Report) Notify(p Publisher, top int) {
	p.Publish(notify.TextEvent(r.Summary()))
	if top <= 0 {
		return
	}
	for _, res := range r.Top(top, "") {
		p.Publish(notify.SignalEvent(res.Signal))
	}
}
