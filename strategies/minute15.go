package strategies

import (
	"fmt"

	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/market"
)

// Minute15Config holds the 15-minute long-candle thresholds.
type Minute15Config struct {
	LongCandle       float64 // open-to-close gain of the signal bar
	VolumeSpikeRatio float64
	VolumePeriod     int
	MADivergence     float64 // close distance above the MA that takes profit
	MAPeriod         int
	MAKind           indicators.MAKind
}

func DefaultMinute15Config() Minute15Config {
	return Minute15Config{
		LongCandle:       0.07,
		VolumeSpikeRatio: 2.0,
		VolumePeriod:     20,
		MADivergence:     0.10,
		MAPeriod:         60,
		MAKind:           indicators.KindSMA,
	}
}

// maKindParam maps a 0/1 parameter onto the moving-average kind.
func maKindParam(dst *indicators.MAKind) setter {
	return func(v float64) error {
		switch v {
		case 0:
			*dst = indicators.KindSMA
		case 1:
			*dst = indicators.KindEMA
		default:
			return fmt.Errorf("must be 0 (sma) or 1 (ema)")
		}
		return nil
	}
}

// Minute15Strategy buys a 7% long bullish candle on doubled volume that closes
// above the 60-bar average.
type Minute15Strategy struct {
	cfg Minute15Config
}

func NewMinute15(p Params) (*Minute15Strategy, error) {
	cfg := DefaultMinute15Config()
	err := applyParams(Minute15, p, map[string]setter{
		"long_candle_threshold":   floatParam(&cfg.LongCandle),
		"volume_spike_ratio":      floatParam(&cfg.VolumeSpikeRatio),
		"volume_period":           intParam(&cfg.VolumePeriod),
		"ma_divergence_threshold": floatParam(&cfg.MADivergence),
		"ma_period":               intParam(&cfg.MAPeriod),
		"use_ema":                 maKindParam(&cfg.MAKind),
	})
	if err != nil {
		return nil, err
	}
	return &Minute15Strategy{cfg: cfg}, nil
}

func (s *Minute15Strategy) ID() ID                      { return Minute15 }
func (s *Minute15Strategy) Timeframe() market.Timeframe { return market.Minute15 }
func (s *Minute15Strategy) MinBars() int                { return max(60, s.cfg.MAPeriod) }
func (s *Minute15Strategy) Config() Minute15Config      { return s.cfg }

// ma is the moving average at the last bar of w, 0 when not warmed up.
func (s *Minute15Strategy) ma(w market.Window) float64 {
	line, err := indicators.MALine(s.cfg.MAKind, w.Bars(), s.cfg.MAPeriod)
	if err != nil || len(line) == 0 {
		return 0
	}
	return line[len(line)-1]
}

func (s *Minute15Strategy) evaluate(w market.Window) (float64, conditions, error) {
	last := w.Last()
	if err := checkBar(last); err != nil {
		return 0, nil, err
	}
	ma := s.ma(w)
	long := last.ChangeRate() >= s.cfg.LongCandle

	return ma, conditions{
		{"bullish", last.Bullish()},
		{"long_candle", long},
		{"volume_spike", indicators.VolumeSpike(w.Bars(), s.cfg.VolumePeriod, s.cfg.VolumeSpikeRatio)},
		{"above_ma", ma > 0 && last.Close > ma},
		{"body_support", long && last.Close >= last.BodyMid()},
	}, nil
}

func (s *Minute15Strategy) GenerateSignal(w market.Window) (*Signal, error) {
	if w.Len() < s.MinBars() {
		return nil, nil
	}
	ma, cs, err := s.evaluate(w)
	if err != nil {
		return nil, err
	}
	if !cs.all("bullish", "long_candle", "volume_spike", "above_ma", "body_support") {
		return nil, nil
	}
	entry := w.Last().Close
	return newSignal(Minute15, w, w.Last().Low*0.99, s.target(ma, entry), cs), nil
}

func (s *Minute15Strategy) target(ma, entry float64) float64 {
	return max(ma*(1+s.cfg.MADivergence), entry*1.05)
}

// StopLoss sits 1% under the signal candle low.
func (s *Minute15Strategy) StopLoss(w market.Window, entry float64) float64 {
	return w.Last().Low * 0.99
}

func (s *Minute15Strategy) TakeProfit(w market.Window, entry float64) float64 {
	return s.target(s.ma(w), entry)
}

// ShouldExit closes under the MA, under the signal candle low, or once the
// close stretches too far above the MA.
func (s *Minute15Strategy) ShouldExit(w market.Window, h Holding) (bool, string) {
	last := w.Last()
	if h.BarsHeld < w.Len() && last.Close < w.Back(h.BarsHeld).Low {
		return true, "candle_low_break"
	}
	ma := s.ma(w)
	if ma <= 0 {
		return false, ""
	}
	if last.Close < ma {
		return true, "ma_break"
	}
	if (last.Close-ma)/ma >= s.cfg.MADivergence {
		return true, "ma_divergence"
	}
	return false, ""
}
