package strategies

import (
	"fmt"
	"time"
)

// Direction of a signal. Only long entries are simulated.
type Direction string

const Buy Direction = "BUY"

// Signal is an entry proposal for one bar. It is consumed on that bar or
// discarded.
type Signal struct {
	Symbol     string    `json:"symbol"`
	Time       time.Time `json:"time"`
	Direction  Direction `json:"direction"`
	Price      float64   `json:"price"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	Strategy   ID        `json:"strategy"`
	Reason     string    `json:"reason"`
	Strength   float64   `json:"strength"`
}

// Validate rejects non-positive prices and stops or targets on the wrong side
// of the entry.
func (s Signal) Validate() error {
	switch {
	case s.Direction != Buy:
		return fmt.Errorf("%w: unsupported direction %q", ErrInvalidSignal, s.Direction)
	case s.Price <= 0:
		return fmt.Errorf("%w: price %g must be positive", ErrInvalidSignal, s.Price)
	case s.StopLoss <= 0:
		return fmt.Errorf("%w: stop-loss %g must be positive", ErrInvalidSignal, s.StopLoss)
	case s.StopLoss >= s.Price:
		return fmt.Errorf("%w: stop-loss %g not below entry %g", ErrInvalidSignal, s.StopLoss, s.Price)
	case s.TakeProfit <= s.Price:
		return fmt.Errorf("%w: take-profit %g not above entry %g", ErrInvalidSignal, s.TakeProfit, s.Price)
	}
	return nil
}

// RiskReward is reward over risk, 0 when the stop equals the entry.
func (s Signal) RiskReward() float64 {
	risk := s.Price - s.StopLoss
	if risk <= 0 {
		return 0
	}
	return (s.TakeProfit - s.Price) / risk
}
