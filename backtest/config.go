package backtest

import (
	"fmt"

	"github.com/rustyeddy/backtester/risk"
	"github.com/rustyeddy/backtester/sim"
)

// Config is everything a run needs besides the strategy and the bars.
type Config struct {
	InitialCapital float64       `yaml:"initial_capital" json:"initial_capital"`
	Costs          sim.CostModel `yaml:"costs" json:"costs"`
	Risk           risk.Policy   `yaml:"risk" json:"risk"`
	RiskFreeRate   float64       `yaml:"risk_free_rate" json:"risk_free_rate"`
}

// DefaultConfig: 10,000,000 won, 0.015% commission, no tax or slippage, 1%
// risk per trade, 2% risk-free rate.
func DefaultConfig() Config {
	return Config{
		InitialCapital: 10_000_000,
		Costs:          sim.CostModel{CommissionRate: 0.00015, Slippage: sim.Slippage{Model: sim.SlippageNone}},
		Risk:           risk.DefaultPolicy(),
		RiskFreeRate:   0.02,
	}
}

func (c Config) Validate() error {
	if c.InitialCapital <= 0 {
		return fmt.Errorf("%w: initial capital must be positive, got %g", ErrInvalidConfig, c.InitialCapital)
	}
	if err := c.Costs.Validate(); err != nil {
		return fmt.Errorf("%w: costs: %w", ErrInvalidConfig, err)
	}
	if err := c.Risk.Validate(); err != nil {
		return fmt.Errorf("%w: risk: %w", ErrInvalidConfig, err)
	}
	if c.RiskFreeRate < 0 || c.RiskFreeRate >= 1 {
		return fmt.Errorf("%w: risk-free rate must be in [0, 1), got %g", ErrInvalidConfig, c.RiskFreeRate)
	}
	return nil
}
