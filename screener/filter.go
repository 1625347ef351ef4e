package screener

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/strategies"
)

var (
	ErrUnknownFilter = errors.New("unknown filter")
	ErrUnknownPreset = errors.New("unknown preset")
)

// yearBars is the 52-week lookback in daily bars.
const yearBars = 252

// FilterResult is the verdict of one filter on one stock.
type FilterResult struct {
	Filter    string  `json:"filter"`
	Passed    bool    `json:"passed"`
	Value     float64 `json:"value"`
	Threshold string  `json:"threshold"`
	Reason    string  `json:"reason"`
}

type checkFunc func(bars []market.Bar) (ok bool, value float64, threshold string, err error)

// Filter is a pre-screen on the latest bars of a stock. A filter that cannot
// be evaluated fails.
type Filter struct {
	Name        string
	Description string
	check       checkFunc
}

// Apply evaluates the filter on bars, oldest first.
func (f Filter) Apply(bars []market.Bar) FilterResult {
	res := FilterResult{Filter: f.Name}
	if len(bars) == 0 {
		res.Reason = "no bars"
		return res
	}
	ok, v, th, err := f.check(bars)
	if err != nil {
		res.Reason = err.Error()
		return res
	}
	res.Passed, res.Value, res.Threshold = ok, v, th
	res.Reason = fmt.Sprintf("%s: %g vs %s", f.Name, v, th)
	return res
}

func last(bars []market.Bar) market.Bar { return bars[len(bars)-1] }

func tail(bars []market.Bar, n int) []market.Bar {
	if n > len(bars) {
		n = len(bars)
	}
	return bars[len(bars)-n:]
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// MinVolume passes when the average volume of the last days bars is at
// least floor.
func MinVolume(floor float64, days int) Filter {
	return Filter{
		Name:        "min_volume",
		Description: "minimum average volume",
		check: func(bars []market.Bar) (bool, float64, string, error) {
			avg, _ := indicators.VolumeMA(bars, days, 1)
			return avg >= floor, math.Trunc(avg), fmt.Sprintf("%g", floor), nil
		},
	}
}

// VolumeSpike passes when the last volume is at least ratio times the
// average of the lookback-1 bars before it.
func VolumeSpike(ratio float64, lookback int) Filter {
	return Filter{
		Name:        "volume_spike",
		Description: "volume spike over the prior average",
		check: func(bars []market.Bar) (bool, float64, string, error) {
			th := fmt.Sprintf("%g", ratio)
			avg, ok := indicators.VolumeMA(bars[:len(bars)-1], lookback-1, 1)
			if !ok || avg == 0 {
				return false, 0, th, nil
			}
			r := float64(last(bars).Volume) / avg
			return r >= ratio, round(r, 2), th, nil
		},
	}
}

// VolumeIncrease passes when volume rose on each of the last days bars.
func VolumeIncrease(days int) Filter {
	return Filter{
		Name:        "volume_increase",
		Description: "consecutive volume increases",
		check: func(bars []market.Bar) (bool, float64, string, error) {
			th := fmt.Sprint(days)
			if len(bars) < days+1 {
				return false, 0, th, nil
			}
			run := 0
			recent := tail(bars, days+1)
			for i := 1; i < len(recent); i++ {
				if recent[i].Volume > recent[i-1].Volume {
					run++
				} else {
					run = 0
				}
			}
			return run >= days, float64(run), th, nil
		},
	}
}

// PriceRange passes when the last close is inside [lo, hi].
func PriceRange(lo, hi float64) Filter {
	return Filter{
		Name:        "price_range",
		Description: "close inside a price band",
		check: func(bars []market.Bar) (bool, float64, string, error) {
			c := last(bars).Close
			return c >= lo && c <= hi, math.Trunc(c), fmt.Sprintf("%g~%g", lo, hi), nil
		},
	}
}

// PriceAboveMA passes when the last close is above its period-bar average.
func PriceAboveMA(period int) Filter {
	return Filter{
		Name:        "price_above_ma",
		Description: "close above the moving average",
		check: func(bars []market.Bar) (bool, float64, string, error) {
			ma, err := indicators.MA(bars, period)
			if err != nil {
				return false, 0, "0", nil
			}
			c := last(bars).Close
			return c > ma, math.Round(c), fmt.Sprintf("%.0f", ma), nil
		},
	}
}

// PriceChange passes when the last close-to-close change is inside
// [lo, hi].
func PriceChange(lo, hi float64) Filter {
	return Filter{
		Name:        "price_change",
		Description: "daily change inside a band",
		check: func(bars []market.Bar) (bool, float64, string, error) {
			th := fmt.Sprintf("%g%%~%g%%", lo*100, hi*100)
			if len(bars) < 2 {
				return false, 0, th, nil
			}
			prev := bars[len(bars)-2].Close
			if prev == 0 {
				return false, 0, th, fmt.Errorf("previous close is zero")
			}
			chg := (last(bars).Close - prev) / prev
			return chg >= lo && chg <= hi, round(chg*100, 2), th, nil
		},
	}
}

// PositiveChange passes when each of the last days bars closed above its
// open.
func PositiveChange(days int) Filter {
	return Filter{
		Name:        "positive_change",
		Description: "consecutive bullish bars",
		check: func(bars []market.Bar) (bool, float64, string, error) {
			th := fmt.Sprint(days)
			if len(bars) < days {
				return false, 0, th, nil
			}
			n := 0
			for _, b := range tail(bars, days) {
				if !b.Bullish() {
					break
				}
				n++
			}
			return n >= days, float64(n), th, nil
		},
	}
}

// MAAlignment passes when the moving averages of periods are strictly
// descending (ascending true, a bullish alignment) or strictly ascending.
func MAAlignment(ascending bool, periods ...int) Filter {
	status := "bullish"
	if !ascending {
		status = "bearish"
	}
	return Filter{
		Name:        "ma_alignment",
		Description: "moving average alignment",
		check: func(bars []market.Bar) (bool, float64, string, error) {
			if len(periods) < 2 {
				return false, 0, status, fmt.Errorf("ma_alignment needs at least two periods")
			}
			if ascending {
				return indicators.MAAligned(bars, periods...), 0, status, nil
			}
			prev := 0.0
			for i, p := range periods {
				v, err := indicators.MA(bars, p)
				if err != nil {
					return false, 0, status, nil
				}
				if i > 0 && !(prev < v) {
					return false, 0, status, nil
				}
				prev = v
			}
			return true, 0, status, nil
		},
	}
}

// BoxRange passes when the high-low envelope of the last lookback bars is
// within variance of the low.
func BoxRange(lookback int, variance float64) Filter {
	return Filter{
		Name:        "box_range",
		Description: "sideways box",
		check: func(bars []market.Bar) (bool, float64, string, error) {
			th := fmt.Sprintf("%g%%", variance*100)
			if len(bars) < lookback {
				return false, 0, th, nil
			}
			recent := tail(bars, lookback)
			box, _ := indicators.FindBox(recent, variance)
			if box.Low <= 0 {
				return false, 0, th, nil
			}
			v := (box.High - box.Low) / box.Low
			return v <= variance, round(v*100, 2), th, nil
		},
	}
}

// NearYearHigh passes when the close is within threshold of the 52-week
// high.
func NearYearHigh(threshold float64) Filter {
	return Filter{
		Name:        "near_52week_high",
		Description: "close near the 52-week high",
		check: func(bars []market.Bar) (bool, float64, string, error) {
			th := fmt.Sprintf("%g%%", (1-threshold)*100)
			hi := indicators.HighestHigh(tail(bars, yearBars))
			if hi <= 0 {
				return false, 0, th, nil
			}
			r := last(bars).Close / hi
			return r >= 1-threshold, round(r*100, 2), th, nil
		},
	}
}

// NearYearLow passes when the close is within threshold above the 52-week
// low.
func NearYearLow(threshold float64) Filter {
	return Filter{
		Name:        "near_52week_low",
		Description: "close near the 52-week low",
		check: func(bars []market.Bar) (bool, float64, string, error) {
			th := fmt.Sprintf("%g%%", (1+threshold)*100)
			recent := tail(bars, yearBars)
			lo := recent[0].Low
			for _, b := range recent[1:] {
				lo = math.Min(lo, b.Low)
			}
			if lo <= 0 {
				return false, 0, th, nil
			}
			r := last(bars).Close / lo
			return r <= 1+threshold, round(r*100, 2), th, nil
		},
	}
}

// LongCandle passes when the last body is at least threshold of the open,
// in either direction.
func LongCandle(threshold float64) Filter {
	return Filter{
		Name:        "long_candle",
		Description: "long candle body",
		check: func(bars []market.Bar) (bool, float64, string, error) {
			th := fmt.Sprintf("%g%%", threshold*100)
			b := last(bars)
			if b.Open == 0 {
				return false, 0, th, nil
			}
			r := math.Abs(b.Body()) / b.Open
			return r >= threshold, round(r*100, 2), th, nil
		},
	}
}

// BullishCandle passes when the last bar closed above its open.
func BullishCandle() Filter {
	return Filter{
		Name:        "bullish_candle",
		Description: "bullish last bar",
		check: func(bars []market.Bar) (bool, float64, string, error) {
			b := last(bars)
			return b.Bullish(), math.Trunc(b.Body()), "bullish", nil
		},
	}
}

// builder makes a filter from parameters merged over defaults. Keys listed in
// ints must be positive whole numbers.
type builder struct {
	defaults map[string]float64
	ints     []string
	build    func(p map[string]float64) Filter
}

var builders = map[string]builder{
	"min_volume": {
		defaults: map[string]float64{"min_volume": 100_000, "days": 5},
		ints:     []string{"days"},
		build:    func(p map[string]float64) Filter { return MinVolume(p["min_volume"], int(p["days"])) },
	},
	"volume_spike": {
		defaults: map[string]float64{"spike_ratio": 2.0, "lookback": 20},
		ints:     []string{"lookback"},
		build:    func(p map[string]float64) Filter { return VolumeSpike(p["spike_ratio"], int(p["lookback"])) },
	},
	"volume_increase": {
		defaults: map[string]float64{"increase_days": 3},
		ints:     []string{"increase_days"},
		build:    func(p map[string]float64) Filter { return VolumeIncrease(int(p["increase_days"])) },
	},
	"price_range": {
		defaults: map[string]float64{"min_price": 1000, "max_price": 500_000},
		build:    func(p map[string]float64) Filter { return PriceRange(p["min_price"], p["max_price"]) },
	},
	"price_above_ma": {
		defaults: map[string]float64{"period": 20},
		ints:     []string{"period"},
		build:    func(p map[string]float64) Filter { return PriceAboveMA(int(p["period"])) },
	},
	"price_change": {
		defaults: map[string]float64{"min_change": -0.05, "max_change": 0.05},
		build:    func(p map[string]float64) Filter { return PriceChange(p["min_change"], p["max_change"]) },
	},
	"positive_change": {
		defaults: map[string]float64{"days": 1},
		ints:     []string{"days"},
		build:    func(p map[string]float64) Filter { return PositiveChange(int(p["days"])) },
	},
	"ma_alignment": {
		defaults: map[string]float64{"fast": 5, "mid": 20, "slow": 60, "ascending": 1},
		ints:     []string{"fast", "mid", "slow"},
		build: func(p map[string]float64) Filter {
			return MAAlignment(p["ascending"] != 0, int(p["fast"]), int(p["mid"]), int(p["slow"]))
		},
	},
	"box_range": {
		defaults: map[string]float64{"lookback": 10, "variance": 0.05},
		ints:     []string{"lookback"},
		build:    func(p map[string]float64) Filter { return BoxRange(int(p["lookback"]), p["variance"]) },
	},
	"near_52week_high": {
		defaults: map[string]float64{"threshold": 0.05},
		build:    func(p map[string]float64) Filter { return NearYearHigh(p["threshold"]) },
	},
	"near_52week_low": {
		defaults: map[string]float64{"threshold": 0.10},
		build:    func(p map[string]float64) Filter { return NearYearLow(p["threshold"]) },
	},
	"long_candle": {
		defaults: map[string]float64{"threshold": 0.05},
		build:    func(p map[string]float64) Filter { return LongCandle(p["threshold"]) },
	},
	"bullish_candle": {
		defaults: map[string]float64{},
		build:    func(map[string]float64) Filter { return BullishCandle() },
	},
}

// FilterNames lists the filters NewFilter can build, sorted.
func FilterNames() []string {
	names := make([]string, 0, len(builders))
	for n := range builders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewFilter builds the named filter with params overriding its defaults.
func NewFilter(name string, params strategies.Params) (Filter, error) {
	b, ok := builders[name]
	if !ok {
		return Filter{}, fmt.Errorf("%w %q (supported: %s)", ErrUnknownFilter, name, strings.Join(FilterNames(), ", "))
	}

	p := make(map[string]float64, len(b.defaults))
	for k, v := range b.defaults {
		p[k] = v
	}
	for k, v := range params {
		if _, ok := b.defaults[k]; !ok {
			return Filter{}, fmt.Errorf("%s: unknown parameter %q", name, k)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Filter{}, fmt.Errorf("%s: parameter %s must be finite", name, k)
		}
		p[k] = v
	}
	for _, k := range b.ints {
		if v := p[k]; v != math.Trunc(v) || v < 1 {
			return Filter{}, fmt.Errorf("%s: parameter %s must be a positive whole number", name, k)
		}
	}
	return b.build(p), nil
}

// Preset filter sets.
const (
	PresetDefault      = "default"
	PresetAggressive   = "aggressive"
	PresetConservative = "conservative"
	PresetVolumeFocus  = "volume_focus"
	PresetBreakout     = "breakout"
)

// PresetNames lists the presets Preset knows, sorted.
func PresetNames() []string {
	return []string{PresetAggressive, PresetBreakout, PresetConservative, PresetDefault, PresetVolumeFocus}
}

// Preset returns a named filter set.
func Preset(name string) ([]Filter, error) {
	switch name {
	case "", PresetDefault:
		return []Filter{
			MinVolume(100_000, 5),
			PriceRange(1000, 500_000),
			PriceAboveMA(20),
		}, nil
	case PresetAggressive:
		return []Filter{
			MinVolume(500_000, 5),
			VolumeSpike(2.0, 20),
			PriceRange(3000, 100_000),
			MAAlignment(true, 5, 20, 60),
		}, nil
	case PresetConservative:
		return []Filter{
			MinVolume(50_000, 5),
			PriceRange(5000, 200_000),
			PriceAboveMA(60),
			BoxRange(20, 0.10),
		}, nil
	case PresetVolumeFocus:
		return []Filter{
			MinVolume(1_000_000, 5),
			VolumeSpike(3.0, 20),
			VolumeIncrease(2),
		}, nil
	case PresetBreakout:
		return []Filter{
			MinVolume(200_000, 5),
			VolumeSpike(2.5, 20),
			NearYearHigh(0.10),
			MAAlignment(true, 5, 20),
		}, nil
	}
	return nil, fmt.Errorf("%w %q (supported: %s)", ErrUnknownPreset, name, strings.Join(PresetNames(), ", "))
}
