// Package indicators provides the technical inputs strategies consume:
// moving averages, volume ratios, candle helpers and box ranges.
package indicators

import "github.com/rustyeddy/backtester/market"

// Indicator computes a single streaming value from bars.
// It is deterministic and safe to use in backtests and screening.
type Indicator interface {
	// Name returns a stable identifier like "MA(20)" or "ATR(14)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next closed bar.
	Update(b market.Bar)

	// Ready reports whether Value() is meaningful (warmup completed).
	Ready() bool

	// Value returns the current value, or 0 before warmup.
	Value() float64
}

// Run feeds every bar through ind and returns its value after each one.
// Values before warmup are reported as 0.
func Run(ind Indicator, bars []market.Bar) []float64 {
	ind.Reset()
	out := make([]float64, len(bars))
	for i, b := range bars {
		ind.Update(b)
		out[i] = ind.Value()
	}
	return out
}
