package risk

import "math"

// PlannedRisk is the loss in won if the stop is hit, before costs.
func PlannedRisk(shares int64, entry, stop float64) float64 {
	return float64(shares) * math.Abs(entry-stop)
}

// RR is reward over risk, 0 when the stop equals the entry.
func RR(entry, stop, takeProfit float64) float64 {
	risk := math.Abs(entry - stop)
	reward := math.Abs(takeProfit - entry)
	if risk == 0 {
		return 0
	}
	return reward / risk
}

// RiskPct expresses a planned loss as a share of capital.
func RiskPct(plannedRisk, capital float64) float64 {
	if capital <= 0 {
		return math.Inf(1)
	}
	return plannedRisk / capital
}
