package indicators

import "github.com/rustyeddy/backtester/market"

// Box is a sideways price range.
type Box struct {
	High  float64
	Low   float64
	Mid   float64
	Range float64
	Ratio float64 // Range / Mid
}

// FindBox measures the high/low envelope of bars and reports whether it is
// tight enough to count as a box: Range/Mid <= 2*variance.
func FindBox(bars []market.Bar, variance float64) (Box, bool) {
	if len(bars) == 0 {
		return Box{}, false
	}

	hi, lo := bars[0].High, bars[0].Low
	for _, b := range bars[1:] {
		if b.High > hi {
			hi = b.High
		}
		if b.Low < lo {
			lo = b.Low
		}
	}

	box := Box{High: hi, Low: lo, Mid: (hi + lo) / 2, Range: hi - lo}
	if box.Mid <= 0 {
		return box, false
	}
	box.Ratio = box.Range / box.Mid
	return box, box.Ratio <= variance*2
}

// HighestHigh returns the maximum high, 0 for an empty slice.
func HighestHigh(bars []market.Bar) float64 {
	hi := 0.0
	for i, b := range bars {
		if i == 0 || b.High > hi {
			hi = b.High
		}
	}
	return hi
}
