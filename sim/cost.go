package sim

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// SlippageModel selects how execution deviates from the quoted price.
type SlippageModel string

const (
	SlippageNone     SlippageModel = "none"
	SlippagePercent  SlippageModel = "percent"   // Value is a fraction of notional
	SlippagePerShare SlippageModel = "per_share" // Value is won per share
)

func ParseSlippageModel(s string) (SlippageModel, error) {
	switch m := SlippageModel(strings.ToLower(strings.TrimSpace(s))); m {
	case "", SlippageNone:
		return SlippageNone, nil
	case SlippagePercent, SlippagePerShare:
		return m, nil
	}
	return "", fmt.Errorf("unknown slippage model %q (none, percent, per_share)", s)
}

type Slippage struct {
	Model SlippageModel `yaml:"model" json:"model"`
	Value float64       `yaml:"value" json:"value"`
}

// Cost is the slippage charged on one leg.
func (s Slippage) Cost(shares int64, price float64) decimal.Decimal {
	switch s.Model {
	case SlippagePercent:
		return notional(shares, price).Mul(decimal.NewFromFloat(s.Value))
	case SlippagePerShare:
		return decimal.NewFromInt(shares).Mul(decimal.NewFromFloat(s.Value))
	}
	return decimal.Zero
}

// CostModel prices both legs of a trade. Commission applies to both legs, tax
// to the sell leg only.
type CostModel struct {
	CommissionRate float64  `yaml:"commission_rate" json:"commission_rate"`
	TaxRate        float64  `yaml:"tax_rate" json:"tax_rate"`
	Slippage       Slippage `yaml:"slippage" json:"slippage"`
}

func (c CostModel) Validate() error {
	if c.CommissionRate < 0 || c.CommissionRate >= 1 {
		return fmt.Errorf("commission rate must be in [0, 1), got %g", c.CommissionRate)
	}
	if c.TaxRate < 0 || c.CommissionRate+c.TaxRate >= 1 {
		return fmt.Errorf("tax rate must be non-negative and leave proceeds positive, got %g", c.TaxRate)
	}
	if _, err := ParseSlippageModel(string(c.Slippage.Model)); err != nil {
		return err
	}
	if c.Slippage.Value < 0 {
		return fmt.Errorf("slippage must not be negative, got %g", c.Slippage.Value)
	}
	return nil
}

// BuyCost is the cash debited to buy shares at price:
// shares*price*(1+commission) + slippage.
func (c CostModel) BuyCost(shares int64, price float64) decimal.Decimal {
	rate := decimal.NewFromInt(1).Add(decimal.NewFromFloat(c.CommissionRate))
	return notional(shares, price).Mul(rate).Add(c.Slippage.Cost(shares, price))
}

// SellProceeds is the cash credited for selling shares at price:
// shares*price*(1-commission-tax) - slippage.
func (c CostModel) SellProceeds(shares int64, price float64) decimal.Decimal {
	rate := decimal.NewFromInt(1).
		Sub(decimal.NewFromFloat(c.CommissionRate)).
		Sub(decimal.NewFromFloat(c.TaxRate))
	return notional(shares, price).Mul(rate).Sub(c.Slippage.Cost(shares, price))
}

func notional(shares int64, price float64) decimal.Decimal {
	return decimal.NewFromInt(shares).Mul(decimal.NewFromFloat(price))
}
