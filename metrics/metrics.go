// Package metrics derives performance figures from a run's trades and equity
// curve. Everything here is a pure function of its input.
package metrics

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/sim"
)

var (
	ErrInsufficientRange = errors.New("insufficient range")
	ErrNoEquity          = errors.New("empty equity curve")
)

const TradingDaysPerYear = 252

// Input is a finished run's ledger.
type Input struct {
	InitialCapital float64
	Trades         []sim.Trade
	Equity         []sim.EquityPoint

	// BarsInPosition counts equity points taken with a position open.
	BarsInPosition int

	// RiskFreeRate is annual and used as given; 0 means no risk-free return.
	RiskFreeRate float64
}

type Metrics struct {
	InitialEquity float64 `json:"initial_equity"`
	FinalEquity   float64 `json:"final_equity"`
	TotalPnL      float64 `json:"total_pnl"`
	TotalReturn   float64 `json:"total_return"`
	CAGR          Value   `json:"cagr"`

	MaxDrawdown       float64 `json:"max_drawdown"` // fraction of the peak, in [0, 1]
	MaxDrawdownAmount float64 `json:"max_drawdown_amount"`
	MaxDrawdownDays   int     `json:"max_drawdown_days"`

	Sharpe      Value `json:"sharpe"`
	Sortino     Value `json:"sortino"`
	Calmar      Value `json:"calmar"`
	ReturnStdev Value `json:"return_stdev"`

	Trades          int     `json:"trades"`
	Wins            int     `json:"wins"`
	Losses          int     `json:"losses"`
	WinRate         float64 `json:"win_rate"`
	ProfitFactor    Value   `json:"profit_factor"`
	AvgWin          float64 `json:"avg_win"`
	AvgLoss         float64 `json:"avg_loss"`
	AvgWinLossRatio Value   `json:"avg_win_loss_ratio"`
	AvgTrade        float64 `json:"avg_trade"`
	BestTrade       float64 `json:"best_trade"`
	WorstTrade      float64 `json:"worst_trade"`
	Expectancy      float64 `json:"expectancy"`
	AvgHoldingDays  float64 `json:"avg_holding_days"`
	AvgBarsHeld     float64 `json:"avg_bars_held"`
	TradeFrequency  Value   `json:"trade_frequency"` // trades per trading day

	Exposure     float64   `json:"exposure"` // share of bars with a position open
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	TradingDays  int       `json:"trading_days"`
	CalendarDays float64   `json:"calendar_days"`
}

// Compute derives every metric. Degenerate inputs (one bar, no trades, flat
// equity) produce Undefined or PosInf values, never an error; only an empty
// equity curve fails.
func Compute(in Input) (Metrics, error) {
	if len(in.Equity) == 0 {
		return Metrics{}, ErrNoEquity
	}
	rf := in.RiskFreeRate

	first, last := in.Equity[0], in.Equity[len(in.Equity)-1]
	m := Metrics{
		InitialEquity: in.InitialCapital,
		FinalEquity:   last.Equity,
		TotalPnL:      last.Equity - in.InitialCapital,
		Start:         first.Time,
		End:           last.Time,
		CalendarDays:  last.Time.Sub(first.Time).Hours() / 24,
	}
	if in.InitialCapital > 0 {
		m.TotalReturn = m.TotalPnL / in.InitialCapital
	}

	if cagr, err := CAGR(m.TotalReturn, m.CalendarDays); err == nil {
		m.CAGR = Of(cagr)
	} else {
		m.CAGR = Null()
	}

	dd := MaxDrawdown(in.Equity)
	m.MaxDrawdown, m.MaxDrawdownAmount, m.MaxDrawdownDays = dd.Fraction, dd.Amount, dd.Days

	daily := DailyEquity(in.Equity)
	m.TradingDays = len(daily)
	returns := Returns(in.InitialCapital, daily)
	m.Sharpe = Sharpe(returns, rf)
	m.Sortino = Sortino(returns, rf)
	m.Calmar = Calmar(m.CAGR, m.MaxDrawdown)
	m.ReturnStdev = stdev(returns)

	m.tradeStats(in.Trades)
	if m.TradingDays > 0 {
		m.TradeFrequency = Of(float64(m.Trades) / float64(m.TradingDays))
	} else {
		m.TradeFrequency = Null()
	}
	m.Exposure = float64(in.BarsInPosition) / float64(len(in.Equity))
	return m, nil
}

func (m *Metrics) tradeStats(trades []sim.Trade) {
	m.Trades = len(trades)
	m.ProfitFactor = ProfitFactor(trades)
	m.WinRate = WinRate(trades)
	if len(trades) == 0 {
		m.AvgWinLossRatio = Null()
		return
	}

	var grossWin, grossLoss, total, holdingDays, bars float64
	m.BestTrade, m.WorstTrade = trades[0].PnL, trades[0].PnL
	for _, t := range trades {
		total += t.PnL
		holdingDays += t.Holding().Hours() / 24
		bars += float64(t.BarsHeld)
		m.BestTrade = math.Max(m.BestTrade, t.PnL)
		m.WorstTrade = math.Min(m.WorstTrade, t.PnL)
		switch {
		case t.PnL > 0:
			m.Wins++
			grossWin += t.PnL
		case t.PnL < 0:
			m.Losses++
			grossLoss += t.PnL
		}
	}

	n := float64(len(trades))
	m.AvgTrade = total / n
	m.AvgHoldingDays = holdingDays / n
	m.AvgBarsHeld = bars / n
	if m.Wins > 0 {
		m.AvgWin = grossWin / float64(m.Wins)
	}
	if m.Losses > 0 {
		m.AvgLoss = grossLoss / float64(m.Losses)
	}

	switch {
	case m.Losses > 0:
		m.AvgWinLossRatio = Of(m.AvgWin / math.Abs(m.AvgLoss))
	case m.Wins > 0:
		m.AvgWinLossRatio = Inf()
	default:
		m.AvgWinLossRatio = Null()
	}

	lossRate := float64(m.Losses) / n
	m.Expectancy = m.WinRate*m.AvgWin + lossRate*m.AvgLoss
}

// CAGR annualizes a total return over calendar days (365 per year).
func CAGR(totalReturn, days float64) (float64, error) {
	if days <= 0 {
		return 0, fmt.Errorf("%w: %g days elapsed", ErrInsufficientRange, days)
	}
	base := 1 + totalReturn
	if base <= 0 {
		return -1, nil
	}
	return math.Pow(base, 365/days) - 1, nil
}

// Drawdown is the deepest peak-to-trough decline of an equity curve.
type Drawdown struct {
	Fraction float64 // (peak - trough) / peak
	Amount   float64 // largest peak - trough in won
	Peak     time.Time
	Trough   time.Time
	Days     int // calendar days from Peak to Trough
}

// MaxDrawdown is 0 exactly when the curve never falls.
func MaxDrawdown(curve []sim.EquityPoint) Drawdown {
	var dd Drawdown
	if len(curve) == 0 {
		return dd
	}
	peak := curve[0]
	for _, p := range curve[1:] {
		if p.Equity > peak.Equity {
			peak = p
			continue
		}
		drop := peak.Equity - p.Equity
		if drop > dd.Amount {
			dd.Amount = drop
		}
		if peak.Equity > 0 {
			if f := drop / peak.Equity; f > dd.Fraction {
				dd.Fraction = f
				dd.Peak, dd.Trough = peak.Time, p.Time
			}
		}
	}
	dd.Fraction = math.Min(math.Max(dd.Fraction, 0), 1)
	if !dd.Trough.IsZero() {
		dd.Days = int(dd.Trough.Sub(dd.Peak).Hours() / 24)
	}
	return dd
}

// DailyEquity keeps the last equity point of each KRX trading date. Daily
// curves pass through unchanged.
func DailyEquity(curve []sim.EquityPoint) []sim.EquityPoint {
	out := make([]sim.EquityPoint, 0, len(curve))
	for _, p := range curve {
		if n := len(out); n > 0 && market.SameSession(out[n-1].Time, p.Time) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}

// Returns are the day-over-day returns of a daily curve, the first one
// measured against the initial capital.
func Returns(initial float64, daily []sim.EquityPoint) []float64 {
	out := make([]float64, 0, len(daily))
	prev := initial
	for _, p := range daily {
		if prev > 0 {
			out = append(out, p.Equity/prev-1)
		}
		prev = p.Equity
	}
	return out
}

// Sharpe is mean(r - rf/252) / stdev(r) * sqrt(252) with the sample stdev.
// Undefined for fewer than two returns or zero dispersion.
func Sharpe(returns []float64, rf float64) Value {
	if len(returns) < 2 {
		return Null()
	}
	sd, err := stats.StandardDeviationSample(returns)
	if err != nil || sd == 0 || math.IsNaN(sd) {
		return Null()
	}
	mean, err := stats.Mean(excess(returns, rf))
	if err != nil {
		return Null()
	}
	return Of(mean / sd * math.Sqrt(TradingDaysPerYear))
}

// Sortino divides the mean excess return by the sample stdev of the negative
// excess returns. Without downside dispersion it is +Inf for a positive mean
// and 0 otherwise.
func Sortino(returns []float64, rf float64) Value {
	if len(returns) < 2 {
		return Null()
	}
	ex := excess(returns, rf)
	mean, err := stats.Mean(ex)
	if err != nil {
		return Null()
	}

	var down stats.Float64Data
	for _, r := range ex {
		if r < 0 {
			down = append(down, r)
		}
	}
	sd := 0.0
	if len(down) >= 2 {
		sd, _ = stats.StandardDeviationSample(down)
	}
	if sd == 0 || math.IsNaN(sd) {
		if mean > 0 {
			return Inf()
		}
		return Of(0)
	}
	return Of(mean / sd * math.Sqrt(TradingDaysPerYear))
}

// Calmar is CAGR over the drawdown fraction.
func Calmar(cagr Value, mdd float64) Value {
	c, ok := cagr.Float()
	if !ok {
		return cagr
	}
	if mdd == 0 {
		if c > 0 {
			return Inf()
		}
		return Of(0)
	}
	return Of(c / mdd)
}

// WinRate is the share of trades with positive PnL, 0 without trades.
func WinRate(trades []sim.Trade) float64 {
	if len(trades) == 0 {
		return 0
	}
	wins := 0
	for _, t := range trades {
		if t.Win() {
			wins++
		}
	}
	return float64(wins) / float64(len(trades))
}

// ProfitFactor is gross profit over gross loss. It is Undefined without
// trades (or when every trade broke even) and +Inf without losing trades.
func ProfitFactor(trades []sim.Trade) Value {
	var win, loss float64
	for _, t := range trades {
		if t.PnL > 0 {
			win += t.PnL
		} else {
			loss -= t.PnL
		}
	}
	switch {
	case loss > 0:
		return Of(win / loss)
	case win > 0:
		return Inf()
	}
	return Null()
}

func excess(returns []float64, rf float64) stats.Float64Data {
	daily := rf / TradingDaysPerYear
	out := make(stats.Float64Data, len(returns))
	for i, r := range returns {
		out[i] = r - daily
	}
	return out
}

func stdev(returns []float64) Value {
	if len(returns) < 2 {
		return Null()
	}
	sd, err := stats.StandardDeviationSample(returns)
	if err != nil {
		return Null()
	}
	return Of(sd)
}
