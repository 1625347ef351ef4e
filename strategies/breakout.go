package strategies

import (
	"math"

	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/market"
)

// BreakoutConfig holds the reference-candle breakout thresholds.
type BreakoutConfig struct {
	ReferenceCandle   float64 // minimum open-to-close gain of the reference candle
	VolumeSpikeRatio  float64 // reference volume over its 20-bar average
	Lookback          int     // bars searched for the reference candle
	BreakoutThreshold float64
	PullbackVolume    float64 // post-reference average volume must stay under this share
	RangeTolerance    float64
	TargetMultiple    float64 // take-profit in reference bodies
}

func DefaultBreakoutConfig() BreakoutConfig {
	return BreakoutConfig{
		ReferenceCandle:   0.05,
		VolumeSpikeRatio:  3.0,
		Lookback:          15,
		BreakoutThreshold: 0.01,
		PullbackVolume:    0.7,
		RangeTolerance:    0.02,
		TargetMultiple:    1.5,
	}
}

// BreakoutStrategy waits for a high-volume reference candle, a quiet pullback
// inside its range, then buys the close above its high. Daily bars.
type BreakoutStrategy struct {
	cfg BreakoutConfig
}

func NewBreakout(p Params) (*BreakoutStrategy, error) {
	cfg := DefaultBreakoutConfig()
	err := applyParams(Breakout, p, map[string]setter{
		"reference_candle_threshold": floatParam(&cfg.ReferenceCandle),
		"volume_spike_ratio":         floatParam(&cfg.VolumeSpikeRatio),
		"lookback_days":              intParam(&cfg.Lookback),
		"breakout_threshold":         floatParam(&cfg.BreakoutThreshold),
		"pullback_volume":            floatParam(&cfg.PullbackVolume),
		"range_tolerance":            floatParam(&cfg.RangeTolerance),
		"target_multiple":            floatParam(&cfg.TargetMultiple),
	})
	if err != nil {
		return nil, err
	}
	return &BreakoutStrategy{cfg: cfg}, nil
}

func (s *BreakoutStrategy) ID() ID                      { return Breakout }
func (s *BreakoutStrategy) Timeframe() market.Timeframe { return market.Daily }
func (s *BreakoutStrategy) MinBars() int                { return 20 }
func (s *BreakoutStrategy) Config() BreakoutConfig      { return s.cfg }

type referenceCandle struct {
	idx int
	bar market.Bar
}

// findReference scans from the oldest bar of the lookback and skips the two
// most recent bars, which are needed for the pullback.
func (s *BreakoutStrategy) findReference(bars []market.Bar) (referenceCandle, bool) {
	n := len(bars)
	for i := max(0, n-s.cfg.Lookback); i < n-2; i++ {
		b := bars[i]
		volMA, ok := indicators.VolumeMA(bars[:i+1], 20, 5)
		if !ok || volMA <= 0 {
			continue
		}
		if b.ChangeRate() >= s.cfg.ReferenceCandle && float64(b.Volume)/volMA >= s.cfg.VolumeSpikeRatio {
			return referenceCandle{idx: i, bar: b}, true
		}
	}
	return referenceCandle{}, false
}

func (s *BreakoutStrategy) pullback(bars []market.Bar, ref referenceCandle) bool {
	after := bars[ref.idx+1:]
	if len(after) < 2 {
		return false
	}

	vols := make([]float64, len(after))
	for i, b := range after {
		vols[i] = float64(b.Volume)
		if b.High > ref.bar.High*(1+s.cfg.RangeTolerance) || b.Low < ref.bar.Low*(1-s.cfg.RangeTolerance) {
			return false
		}
	}
	return indicators.Mean(vols) < float64(ref.bar.Volume)*s.cfg.PullbackVolume
}

func (s *BreakoutStrategy) evaluate(w market.Window) (referenceCandle, bool, conditions, error) {
	bars := w.Bars()
	for _, b := range bars[max(0, len(bars)-s.cfg.Lookback):] {
		if err := checkBar(b); err != nil {
			return referenceCandle{}, false, nil, err
		}
	}

	ref, found := s.findReference(bars)
	last := bars[len(bars)-1]

	maAligned := len(bars) < 60 || indicators.MAAligned(bars, 5, 20, 60)

	volIncrease := false
	if len(bars) >= 6 {
		prior := w.Trim(1).Volumes(5)
		volIncrease = float64(last.Volume) > indicators.Mean(prior)*1.5
	}

	cs := conditions{
		{"reference_candle", found},
		{"consolidation", found && s.pullback(bars, ref)},
		{"breakout", found && last.Close > ref.bar.High*(1+s.cfg.BreakoutThreshold)},
		{"ma_alignment", maAligned},
		{"volume_increase", volIncrease},
	}
	return ref, found, cs, nil
}

func (s *BreakoutStrategy) GenerateSignal(w market.Window) (*Signal, error) {
	if w.Len() < s.MinBars() {
		return nil, nil
	}
	ref, _, cs, err := s.evaluate(w)
	if err != nil {
		return nil, err
	}
	if !cs.all("reference_candle", "consolidation", "breakout") {
		return nil, nil
	}
	if !cs.any("ma_alignment", "volume_increase") {
		return nil, nil
	}

	entry := w.Last().Close
	return newSignal(Breakout, w, s.stopFrom(ref), entry+ref.bar.Body()*s.cfg.TargetMultiple, cs), nil
}

func (s *BreakoutStrategy) stopFrom(ref referenceCandle) float64 {
	return math.Max(ref.bar.Low*0.99, ref.bar.Close*0.97)
}

// StopLoss is the higher of just under the reference low and 3% under the
// reference close.
func (s *BreakoutStrategy) StopLoss(w market.Window, entry float64) float64 {
	ref, found, _, err := s.evaluate(w)
	if err != nil || !found {
		return entry * 0.97
	}
	return s.stopFrom(ref)
}

// TakeProfit adds a multiple of the reference body to the entry.
func (s *BreakoutStrategy) TakeProfit(w market.Window, entry float64) float64 {
	ref, found, _, err := s.evaluate(w)
	if err != nil || !found {
		return entry * (1 + s.cfg.ReferenceCandle*s.cfg.TargetMultiple)
	}
	return entry + ref.bar.Body()*s.cfg.TargetMultiple
}

// ShouldExit closes on a bearish bar following a volume spike.
func (s *BreakoutStrategy) ShouldExit(w market.Window, h Holding) (bool, string) {
	if w.Len() < 3 {
		return false, ""
	}
	history := w.Trim(1)
	avg, _ := indicators.VolumeMA(history.Bars(), 19, 1)
	if float64(w.Back(1).Volume) > avg*2 && w.Last().Bearish() {
		return true, "volume_spike_reversal"
	}
	return false, ""
}
