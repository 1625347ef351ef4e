package strategies

import (
	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/market"
)

// Minute30Config holds the 30-minute MA support thresholds.
type Minute30Config struct {
	MADivergence   float64
	MAPeriod       int
	NearMA         float64 // how far above the MA a low may sit and still touch it
	SupportBars    int     // bars searched for a support touch at entry
	StopLookback   int     // bars searched for the support candle low
	VolumeLookback int
	MAKind         indicators.MAKind
}

func DefaultMinute30Config() Minute30Config {
	return Minute30Config{
		MADivergence:   0.10,
		MAPeriod:       60,
		NearMA:         0.02,
		SupportBars:    3,
		StopLookback:   5,
		VolumeLookback: 5,
		MAKind:         indicators.KindSMA,
	}
}

// Minute30Strategy buys a bullish bar that bounced off the 60-bar average on
// rising volume. Close to the MA means buy, far from it means sell.
type Minute30Strategy struct {
	cfg Minute30Config
}

func NewMinute30(p Params) (*Minute30Strategy, error) {
	cfg := DefaultMinute30Config()
	err := applyParams(Minute30, p, map[string]setter{
		"ma_divergence_threshold": floatParam(&cfg.MADivergence),
		"ma_period":               intParam(&cfg.MAPeriod),
		"near_ma_threshold":       floatParam(&cfg.NearMA),
		"support_lookback":        intParam(&cfg.SupportBars),
		"stop_lookback":           intParam(&cfg.StopLookback),
		"volume_lookback":         intParam(&cfg.VolumeLookback),
		"use_ema":                 maKindParam(&cfg.MAKind),
	})
	if err != nil {
		return nil, err
	}
	return &Minute30Strategy{cfg: cfg}, nil
}

func (s *Minute30Strategy) ID() ID                      { return Minute30 }
func (s *Minute30Strategy) Timeframe() market.Timeframe { return market.Minute30 }
func (s *Minute30Strategy) MinBars() int                { return max(60, s.cfg.MAPeriod) }
func (s *Minute30Strategy) Config() Minute30Config      { return s.cfg }

type maSetup struct {
	bars []market.Bar
	line []float64
}

func (s *Minute30Strategy) setup(w market.Window) (maSetup, error) {
	bars := w.Bars()
	line, err := indicators.MALine(s.cfg.MAKind, bars, s.cfg.MAPeriod)
	if err != nil {
		return maSetup{}, err
	}
	return maSetup{bars: bars, line: line}, nil
}

func (st maSetup) ma() float64 { return st.line[len(st.line)-1] }

// touches reports a bar whose low reached the MA and whose close held above
// it. Bars before the MA warms up never count.
func (s *Minute30Strategy) touches(st maSetup, i int) bool {
	ma := st.line[i]
	if ma <= 0 {
		return false
	}
	b := st.bars[i]
	return b.Low <= ma*(1+s.cfg.NearMA) && b.Close > ma
}

func (s *Minute30Strategy) supported(st maSetup) bool {
	n := len(st.bars)
	for i := max(0, n-s.cfg.SupportBars); i < n; i++ {
		if s.touches(st, i) {
			return true
		}
	}
	return false
}

// supportLow is the low of the earliest support candle among the last few
// bars, or the current low when there is none.
func (s *Minute30Strategy) supportLow(st maSetup) float64 {
	n := len(st.bars)
	for i := max(0, n-s.cfg.StopLookback); i < n; i++ {
		if s.touches(st, i) {
			return st.bars[i].Low
		}
	}
	return st.bars[n-1].Low
}

func (s *Minute30Strategy) evaluate(w market.Window) (maSetup, conditions, error) {
	last := w.Last()
	if err := checkBar(last); err != nil {
		return maSetup{}, nil, err
	}
	st, err := s.setup(w)
	if err != nil {
		return maSetup{}, nil, err
	}
	ma := st.ma()

	volIncrease := false
	if w.Len() > s.cfg.VolumeLookback {
		prior := w.Trim(1).Volumes(s.cfg.VolumeLookback)
		volIncrease = float64(last.Volume) > indicators.Mean(prior)
	}

	return st, conditions{
		{"above_ma", ma > 0 && last.Close >= ma},
		{"ma_support", s.supported(st)},
		{"volume_increase", volIncrease},
		{"bullish", last.Bullish()},
	}, nil
}

func (s *Minute30Strategy) GenerateSignal(w market.Window) (*Signal, error) {
	if w.Len() < s.MinBars() {
		return nil, nil
	}
	st, cs, err := s.evaluate(w)
	if err != nil {
		return nil, err
	}
	if !cs.all("above_ma", "ma_support", "volume_increase", "bullish") {
		return nil, nil
	}
	entry := w.Last().Close
	return newSignal(Minute30, w, s.stopFrom(st), s.target(st.ma(), entry), cs), nil
}

func (s *Minute30Strategy) stopFrom(st maSetup) float64 {
	return min(s.supportLow(st)*0.99, st.ma()*0.98)
}

func (s *Minute30Strategy) target(ma, entry float64) float64 {
	return max(ma*(1+s.cfg.MADivergence), entry*1.05)
}

// StopLoss is the lower of just under the support candle low and 2% under
// the MA.
func (s *Minute30Strategy) StopLoss(w market.Window, entry float64) float64 {
	st, err := s.setup(w)
	if err != nil || st.ma() <= 0 {
		return entry * 0.98
	}
	return s.stopFrom(st)
}

func (s *Minute30Strategy) TakeProfit(w market.Window, entry float64) float64 {
	st, err := s.setup(w)
	if err != nil {
		return entry * 1.05
	}
	return s.target(st.ma(), entry)
}

// ShouldExit closes under the MA, under the support candle low seen at entry,
// or once the close stretches too far above the MA.
func (s *Minute30Strategy) ShouldExit(w market.Window, h Holding) (bool, string) {
	st, err := s.setup(w)
	if err != nil {
		return false, ""
	}
	last := w.Last()
	ma := st.ma()
	if ma > 0 && last.Close < ma {
		return true, "ma_break"
	}

	if h.BarsHeld < w.Len() {
		if entry, err := s.setup(w.Trim(h.BarsHeld)); err == nil && last.Close < s.supportLow(entry) {
			return true, "support_low_break"
		}
	}

	if ma > 0 && (last.Close-ma)/ma >= s.cfg.MADivergence {
		return true, "ma_divergence"
	}
	return false, ""
}
