package sim

import (
	"errors"
	"time"

	"github.com/rustyeddy/backtester/market"
	"github.com/shopspring/decimal"
)

var (
	ErrPositionOpen    = errors.New("position already open")
	ErrNoPosition      = errors.New("no open position")
	ErrInvalidPosition = errors.New("invalid position")
)

// State of the position tracker.
type State int

const (
	Flat State = iota
	Open
)

func (s State) String() string {
	if s == Open {
		return "OPEN"
	}
	return "FLAT"
}

// ExitReason says why a position was closed.
type ExitReason string

const (
	ExitStopLoss    ExitReason = "stop-loss"
	ExitTakeProfit  ExitReason = "take-profit"
	ExitStrategy    ExitReason = "strategy-exit"
	ExitForcedClose ExitReason = "forced-close-at-range-end"
)

// Position is the single long exposure of a run.
type Position struct {
	Symbol     string
	Strategy   string
	EntryTime  time.Time
	EntryPrice float64
	Shares     int64
	StopLoss   float64
	TakeProfit float64

	// EntryCost is the cash debited at entry, costs included.
	EntryCost decimal.Decimal

	// BarsHeld counts bars after the entry bar.
	BarsHeld int
}

func (p Position) validate() error {
	switch {
	case p.Shares < 1:
		return errors.Join(ErrInvalidPosition, errors.New("size must be at least one share"))
	case p.EntryPrice <= 0:
		return errors.Join(ErrInvalidPosition, errors.New("entry price must be positive"))
	case p.StopLoss >= p.EntryPrice || p.TakeProfit <= p.EntryPrice:
		return errors.Join(ErrInvalidPosition, errors.New("stop and target must bracket the entry"))
	}
	return nil
}

// CheckExit applies the price triggers to one bar. The stop is checked first,
// so a bar that spans both the stop and the target exits at the stop.
func (p *Position) CheckExit(b market.Bar) (exitPrice float64, reason ExitReason, hit bool) {
	if b.Low <= p.StopLoss {
		return p.StopLoss, ExitStopLoss, true
	}
	if b.High >= p.TakeProfit {
		return p.TakeProfit, ExitTakeProfit, true
	}
	return 0, "", false
}

// MarketValue marks the shares at price, before exit costs.
func (p *Position) MarketValue(price float64) decimal.Decimal {
	return notional(p.Shares, price)
}

// Tracker enforces at most one open position: FLAT -> OPEN -> FLAT.
type Tracker struct {
	pos *Position
}

func (t *Tracker) State() State {
	if t.pos == nil {
		return Flat
	}
	return Open
}

// Position returns a copy of the open position.
func (t *Tracker) Position() (Position, bool) {
	if t.pos == nil {
		return Position{}, false
	}
	return *t.pos, true
}

func (t *Tracker) open(p Position) error {
	if t.pos != nil {
		return ErrPositionOpen
	}
	if err := p.validate(); err != nil {
		return err
	}
	t.pos = &p
	return nil
}

func (t *Tracker) close() (Position, error) {
	if t.pos == nil {
		return Position{}, ErrNoPosition
	}
	p := *t.pos
	t.pos = nil
	return p, nil
}

// Advance counts one more bar held.
func (t *Tracker) Advance() {
	if t.pos != nil {
		t.pos.BarsHeld++
	}
}

// CheckExit runs the price triggers against the open position.
func (t *Tracker) CheckExit(b market.Bar) (float64, ExitReason, bool) {
	if t.pos == nil {
		return 0, "", false
	}
	return t.pos.CheckExit(b)
}

// RaiseStop moves the stop up. Lower or non-positive stops, and stops at or
// above the target, are ignored.
func (t *Tracker) RaiseStop(stop float64) bool {
	if t.pos == nil || stop <= t.pos.StopLoss || stop >= t.pos.TakeProfit {
		return false
	}
	t.pos.StopLoss = stop
	return true
}
