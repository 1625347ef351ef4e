package risk

import (
	"fmt"
	"strings"
)

// Violation codes.
const (
	CodeNoStopOrEntry       = "NO_STOP_OR_ENTRY"
	CodeStopAboveEntry      = "STOP_ABOVE_ENTRY"
	CodeZeroSize            = "ZERO_SIZE"
	CodeInsufficientCapital = "INSUFFICIENT_CAPITAL"
	CodeRRTooLow            = "RR_TOO_LOW"
)

type Violation struct {
	Code string
	Msg  string
}

type Decision struct {
	Allowed    bool
	Violations []Violation

	PlannedRisk    float64
	PlannedRiskPct float64
	PlannedRR      float64
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Codes joins the violation codes, "" when allowed.
func (d Decision) Codes() string {
	codes := make([]string, len(d.Violations))
	for i, v := range d.Violations {
		codes[i] = v.Code
	}
	return strings.Join(codes, ",")
}

// Has reports whether the decision carries the violation code.
func (d Decision) Has(code string) bool {
	for _, v := range d.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

// Evaluate checks a sized intent against the policy and the cash on hand.
func Evaluate(p Policy, intent TradeIntent, acct AccountSnapshot) Decision {
	d := Decision{Allowed: true}

	if intent.Stop <= 0 || intent.Entry <= 0 {
		d.add(CodeNoStopOrEntry, "entry/stop must be set")
		return d
	}
	if intent.Stop >= intent.Entry {
		d.add(CodeStopAboveEntry, fmt.Sprintf("stop %.2f not below entry %.2f", intent.Stop, intent.Entry))
		return d
	}
	if intent.Shares <= 0 {
		d.add(CodeZeroSize, "position size rounds down to zero shares")
		return d
	}

	d.PlannedRisk = PlannedRisk(intent.Shares, intent.Entry, intent.Stop)
	d.PlannedRiskPct = RiskPct(d.PlannedRisk, acct.Cash)
	d.PlannedRR = RR(intent.Entry, intent.Stop, intent.TakeProfit)

	if intent.Cost > acct.Cash {
		d.add(CodeInsufficientCapital,
			fmt.Sprintf("cost %.0f exceeds available cash %.0f", intent.Cost, acct.Cash))
	}
	if p.MinRR > 0 && d.PlannedRR < p.MinRR {
		d.add(CodeRRTooLow,
			fmt.Sprintf("RR %.2f below minimum %.2f", d.PlannedRR, p.MinRR))
	}
	return d
}
