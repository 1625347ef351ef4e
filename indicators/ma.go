package indicators

import (
	"fmt"
	"strings"

	"github.com/montanaflynn/stats"
	"github.com/rustyeddy/backtester/market"
)

// MA calculates the simple moving average of the last period closes.
func MA(bars []market.Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(bars) < period {
		return 0, fmt.Errorf("not enough bars: need %d, got %d", period, len(bars))
	}

	closes := make(stats.Float64Data, 0, period)
	for _, b := range bars[len(bars)-period:] {
		closes = append(closes, b.Close)
	}
	return stats.Mean(closes)
}

// EMA calculates the exponential moving average over all bars, seeded with
// the SMA of the first period closes.
func EMA(bars []market.Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(bars) < period {
		return 0, fmt.Errorf("not enough bars: need %d, got %d", period, len(bars))
	}

	multiplier := 2.0 / float64(period+1)

	sma := 0.0
	for i := 0; i < period; i++ {
		sma += bars[i].Close
	}
	ema := sma / float64(period)

	for i := period; i < len(bars); i++ {
		ema = (bars[i].Close-ema)*multiplier + ema
	}
	return ema, nil
}

// MAKind selects the moving-average flavour a strategy uses.
type MAKind string

const (
	KindSMA MAKind = "sma"
	KindEMA MAKind = "ema"
)

// NewMovingAverage returns a streaming indicator of the given kind.
func NewMovingAverage(kind MAKind, period int) (Indicator, error) {
	if period <= 0 {
		return nil, fmt.Errorf("period must be positive, got %d", period)
	}
	switch MAKind(strings.ToLower(string(kind))) {
	case "", KindSMA:
		return NewMA(period), nil
	case KindEMA:
		return NewEMA(period), nil
	}
	return nil, fmt.Errorf("unknown moving average kind %q", kind)
}

// MALine returns the moving average value after every bar (0 before warmup).
func MALine(kind MAKind, bars []market.Bar, period int) ([]float64, error) {
	ind, err := NewMovingAverage(kind, period)
	if err != nil {
		return nil, err
	}
	return Run(ind, bars), nil
}

// MAAligned reports whether the moving averages of the given periods are in
// strictly descending order at the last bar (5 > 20 > 60 is a bullish
// alignment). It is false when any average is not warmed up.
func MAAligned(bars []market.Bar, periods ...int) bool {
	prev := 0.0
	for i, p := range periods {
		v, err := MA(bars, p)
		if err != nil {
			return false
		}
		if i > 0 && !(prev > v) {
			return false
		}
		prev = v
	}
	return len(periods) > 0
}

// Mean is the arithmetic mean of values, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m, err := stats.Mean(values)
	if err != nil {
		return 0
	}
	return m
}
