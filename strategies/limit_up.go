package strategies

import (
	"math"

	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/market"
)

// LimitUpConfig holds the limit-up follow-through thresholds.
type LimitUpConfig struct {
	LimitUpThreshold float64 // daily gain that counts as a limit-up day
	Lookback         int     // bars searched for the limit-up day
	SupportThreshold float64 // closes must stay within this band of the limit-up close
	SupportBars      int
	ConsolidationMin int
	ConsolidationMax int
	BoxVariance      float64
	BreakoutMargin   float64
	SupportBreak     float64 // stop distance under the limit-up close
}

func DefaultLimitUpConfig() LimitUpConfig {
	return LimitUpConfig{
		LimitUpThreshold: 0.29,
		Lookback:         5,
		SupportThreshold: 0.03,
		SupportBars:      5,
		ConsolidationMin: 3,
		ConsolidationMax: 5,
		BoxVariance:      0.05,
		BreakoutMargin:   0.01,
		SupportBreak:     0.05,
	}
}

// LimitUpStrategy buys a stock that holds the close of a recent limit-up day
// and builds a tight box before breaking out of it (or re-accelerating on
// volume). Daily bars.
type LimitUpStrategy struct {
	cfg LimitUpConfig
}

func NewLimitUp(p Params) (*LimitUpStrategy, error) {
	cfg := DefaultLimitUpConfig()
	err := applyParams(LimitUp, p, map[string]setter{
		"limit_up_threshold":     floatParam(&cfg.LimitUpThreshold),
		"lookback_days":          intParam(&cfg.Lookback),
		"support_threshold":      floatParam(&cfg.SupportThreshold),
		"support_days":           intParam(&cfg.SupportBars),
		"consolidation_days_min": intParam(&cfg.ConsolidationMin),
		"consolidation_days_max": intParam(&cfg.ConsolidationMax),
		"box_variance":           floatParam(&cfg.BoxVariance),
		"breakout_margin":        floatParam(&cfg.BreakoutMargin),
		"support_break":          floatParam(&cfg.SupportBreak),
	})
	if err != nil {
		return nil, err
	}
	return &LimitUpStrategy{cfg: cfg}, nil
}

func (s *LimitUpStrategy) ID() ID                      { return LimitUp }
func (s *LimitUpStrategy) Timeframe() market.Timeframe { return market.Daily }
func (s *LimitUpStrategy) MinBars() int                { return 10 }
func (s *LimitUpStrategy) Config() LimitUpConfig       { return s.cfg }

type limitUpSetup struct {
	luClose float64
	box     indicators.Box
	hasBox  bool
	conds   conditions
}

func (s *LimitUpStrategy) evaluate(w market.Window) (limitUpSetup, error) {
	var st limitUpSetup
	bars := w.Bars()
	for _, b := range bars[max(0, len(bars)-s.cfg.Lookback-1):] {
		if err := checkBar(b); err != nil {
			return st, err
		}
	}

	luClose, found := s.findLimitUp(bars)
	st.luClose = luClose

	support := found && s.holdsSupport(bars, luClose)

	// the box is measured on the bars before the current one so that the
	// current close can break out of it
	prior := bars[:len(bars)-1]
	for n := s.cfg.ConsolidationMin; n <= s.cfg.ConsolidationMax && n <= len(prior); n++ {
		if box, ok := indicators.FindBox(prior[len(prior)-n:], s.cfg.BoxVariance); ok {
			st.box, st.hasBox = box, true
			break
		}
	}

	last := bars[len(bars)-1]
	st.conds = conditions{
		{"recent_limit_up", found},
		{"price_support", support},
		{"consolidation", st.hasBox},
		{"volume_pattern", volumeDipThenRise(bars)},
		{"box_breakout", st.hasBox && last.Close > st.box.High*(1+s.cfg.BreakoutMargin)},
	}
	return st, nil
}

// findLimitUp returns the close of the earliest limit-up day in the lookback.
func (s *LimitUpStrategy) findLimitUp(bars []market.Bar) (float64, bool) {
	n := len(bars)
	for i := max(0, n-s.cfg.Lookback); i < n; i++ {
		var change float64
		if i > 0 {
			change = (bars[i].Close - bars[i-1].Close) / bars[i-1].Close
		} else {
			change = bars[i].ChangeRate()
		}
		if change >= s.cfg.LimitUpThreshold {
			return bars[i].Close, true
		}
	}
	return 0, false
}

func (s *LimitUpStrategy) holdsSupport(bars []market.Bar, luClose float64) bool {
	n := len(bars)
	for _, b := range bars[max(0, n-s.cfg.SupportBars):] {
		if math.Abs(b.Close-luClose)/luClose > s.cfg.SupportThreshold {
			return false
		}
	}
	return true
}

// volumeDipThenRise looks at the last five volumes: the middle three average
// below the first and the last is above that average.
func volumeDipThenRise(bars []market.Bar) bool {
	if len(bars) < 5 {
		return false
	}
	v := bars[len(bars)-5:]
	mid := float64(v[1].Volume+v[2].Volume+v[3].Volume) / 3
	return mid < float64(v[0].Volume) && float64(v[4].Volume) > mid
}

func (s *LimitUpStrategy) GenerateSignal(w market.Window) (*Signal, error) {
	if w.Len() < s.MinBars() {
		return nil, nil
	}
	st, err := s.evaluate(w)
	if err != nil {
		return nil, err
	}
	if !st.conds.all("recent_limit_up", "price_support", "consolidation") {
		return nil, nil
	}
	if !st.conds.any("box_breakout", "volume_pattern") {
		return nil, nil
	}

	entry := w.Last().Close
	return newSignal(LimitUp, w, s.stopFrom(st), entry+st.box.Range, st.conds), nil
}

func (s *LimitUpStrategy) stopFrom(st limitUpSetup) float64 {
	stop := st.luClose * (1 - s.cfg.SupportBreak)
	if st.hasBox {
		stop = math.Max(stop, st.box.Low*0.99)
	}
	return stop
}

// StopLoss is the higher of the limit-up close less the support break and
// just under the box low.
func (s *LimitUpStrategy) StopLoss(w market.Window, entry float64) float64 {
	st, err := s.evaluate(w)
	if err != nil || st.luClose == 0 {
		return entry * (1 - s.cfg.SupportBreak)
	}
	return s.stopFrom(st)
}

// TakeProfit projects the box height above the entry (10% without a box).
func (s *LimitUpStrategy) TakeProfit(w market.Window, entry float64) float64 {
	st, err := s.evaluate(w)
	if err != nil || !st.hasBox {
		return entry * 1.10
	}
	return entry + st.box.Range
}

// ShouldExit closes on a bearish bar right after a new high.
func (s *LimitUpStrategy) ShouldExit(w market.Window, h Holding) (bool, string) {
	if w.Len() < 2 {
		return false, ""
	}
	prev := w.Back(1)
	earlier := w.Trim(2).Bars()
	maxHigh := prev.High
	if len(earlier) > 0 {
		maxHigh = indicators.HighestHigh(earlier)
	}
	if prev.High >= maxHigh && w.Last().Bearish() {
		return true, "new_high_reversal"
	}
	return false, ""
}
