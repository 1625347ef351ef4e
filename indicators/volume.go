package indicators

import "github.com/rustyeddy/backtester/market"

// VolumeMA averages the volume of the last period bars (fewer if the slice is
// shorter). ok is false when fewer than minPeriods bars are available.
func VolumeMA(bars []market.Bar, period, minPeriods int) (avg float64, ok bool) {
	n := period
	if n > len(bars) {
		n = len(bars)
	}
	if n == 0 || n < minPeriods {
		return 0, false
	}

	vols := make([]float64, 0, n)
	for _, b := range bars[len(bars)-n:] {
		vols = append(vols, float64(b.Volume))
	}
	return Mean(vols), true
}

// VolumeRatio is the last bar's volume over the rolling volume average that
// includes it. It is 0 when the average is 0.
func VolumeRatio(bars []market.Bar, period int) float64 {
	avg, ok := VolumeMA(bars, period, 1)
	if !ok || avg <= 0 {
		return 0
	}
	return float64(bars[len(bars)-1].Volume) / avg
}

// VolumeSpike reports VolumeRatio >= threshold.
func VolumeSpike(bars []market.Bar, period int, threshold float64) bool {
	return VolumeRatio(bars, period) >= threshold
}
