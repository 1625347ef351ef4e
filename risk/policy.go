package risk

import (
	"fmt"
	"time"
)

// Policy holds the per-run sizing and entry limits.
type Policy struct {
	// RiskPct is the share of current cash a stop-out may lose (0.01).
	RiskPct float64 `yaml:"risk_percent" json:"risk_percent"`

	// MaxPositionRatio caps the position value as a share of cash. 0 or 1
	// means no cap beyond the cash itself.
	MaxPositionRatio float64 `yaml:"max_position_ratio" json:"max_position_ratio"`

	// MinRR rejects entries whose reward/risk is below it. 0 disables.
	MinRR float64 `yaml:"min_rr,omitempty" json:"min_rr,omitempty"`
}

func DefaultPolicy() Policy {
	return Policy{RiskPct: 0.01, MaxPositionRatio: 1.0}
}

func (p Policy) Validate() error {
	if p.RiskPct <= 0 || p.RiskPct > 1 {
		return fmt.Errorf("risk percent must be in (0, 1], got %g", p.RiskPct)
	}
	if p.MaxPositionRatio < 0 || p.MaxPositionRatio > 1 {
		return fmt.Errorf("max position ratio must be in [0, 1], got %g", p.MaxPositionRatio)
	}
	if p.MinRR < 0 {
		return fmt.Errorf("min reward/risk must not be negative, got %g", p.MinRR)
	}
	return nil
}

// TradeIntent is a sized entry waiting for approval.
type TradeIntent struct {
	Time   time.Time
	Symbol string
	Shares int64

	Entry      float64
	Stop       float64
	TakeProfit float64

	// Cost is the cash the fill would debit, commission and slippage
	// included.
	Cost float64
}

// AccountSnapshot is the run's cash at the time of the intent.
type AccountSnapshot struct {
	Cash float64
}
