package risk

import "math"

type Inputs struct {
	Capital          float64
	RiskPct          float64 // 0.01
	EntryPrice       float64
	StopPrice        float64
	MaxPositionRatio float64 // 0 or 1: no cap
}

type Result struct {
	Shares       int64
	StopDistance float64
	RiskAmount   float64
	Capped       bool // shares were cut by MaxPositionRatio
}

// Calculate sizes a long position so that a stop-out loses at most
// Capital*RiskPct, rounded down to whole shares. A stop at or above the entry
// sizes to zero.
func Calculate(in Inputs) Result {
	dist := in.EntryPrice - in.StopPrice
	riskAmt := in.Capital * in.RiskPct
	res := Result{StopDistance: dist, RiskAmount: riskAmt}
	if dist <= 0 || in.EntryPrice <= 0 || riskAmt <= 0 {
		return res
	}

	shares := math.Floor(riskAmt / dist)
	if in.MaxPositionRatio > 0 && in.MaxPositionRatio < 1 {
		limit := math.Floor(in.Capital * in.MaxPositionRatio / in.EntryPrice)
		if limit < shares {
			shares = limit
			res.Capped = true
		}
	}
	res.Shares = int64(shares)
	return res
}
