package strategies

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/backtester/market"
)

var (
	ErrUnknownStrategy = errors.New("unknown strategy")
	ErrInvalidSignal   = errors.New("invalid signal")
)

// ID names a strategy variant. The set is closed; see IDs.
type ID string

const (
	LimitUp  ID = "limit_up"
	Breakout ID = "breakout"
	Minute15 ID = "minute15"
	Minute30 ID = "minute30"
	Noop     ID = "noop"
)

// IDs lists every variant New can build.
func IDs() []ID {
	return []ID{LimitUp, Breakout, Minute15, Minute30, Noop}
}

// ParseID normalizes s and checks it names a known variant.
func ParseID(s string) (ID, error) {
	id := ID(strings.ToLower(strings.TrimSpace(s)))
	switch id {
	case "none":
		return Noop, nil
	case "limit-up", "limitup":
		return LimitUp, nil
	}
	for _, known := range IDs() {
		if id == known {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w %q (supported: %s)", ErrUnknownStrategy, s, joinIDs(IDs()))
}

// Strategy is queried once per bar while the run is flat.
//
// GenerateSignal must be a pure function of the window: the same bars give the
// same answer. StopLoss and TakeProfit are called once at entry and the prices
// are frozen on the position.
type Strategy interface {
	ID() ID

	// Timeframe is the bar resolution the rules are written for; 0 means any.
	Timeframe() market.Timeframe

	// MinBars is the shortest window that can produce a signal.
	MinBars() int

	GenerateSignal(w market.Window) (*Signal, error)
	StopLoss(w market.Window, entry float64) float64
	TakeProfit(w market.Window, entry float64) float64
}

// Holding describes the open position to exit predicates.
type Holding struct {
	EntryTime  time.Time
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	BarsHeld   int // bars since the entry bar; 0 on the entry bar
}

// ExitEvaluator is implemented by strategies that close positions on their own
// rules. Exits fill at the bar close.
type ExitEvaluator interface {
	ShouldExit(w market.Window, h Holding) (exit bool, reason string)
}

// TrailingStop is implemented by strategies whose stop moves after entry.
// The engine calls TrailStop after a bar's exit checks; the returned stop
// applies from the next bar and is only accepted if it is higher than the
// current one.
type TrailingStop interface {
	TrailStop(w market.Window, h Holding) float64
}

// New builds a variant from its ID and parameter overrides.
func New(id ID, params Params) (Strategy, error) {
	switch id {
	case LimitUp:
		return NewLimitUp(params)
	case Breakout:
		return NewBreakout(params)
	case Minute15:
		return NewMinute15(params)
	case Minute30:
		return NewMinute30(params)
	case Noop:
		if len(params) > 0 {
			return nil, fmt.Errorf("noop: takes no parameters")
		}
		return NoopStrategy{}, nil
	}
	return nil, fmt.Errorf("%w %q (supported: %s)", ErrUnknownStrategy, id, joinIDs(IDs()))
}

// ByName parses name and builds the variant.
func ByName(name string, params Params) (Strategy, error) {
	id, err := ParseID(name)
	if err != nil {
		return nil, err
	}
	return New(id, params)
}

func joinIDs(ids []ID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}

// StrategyError reports a strategy failure on one bar.
type StrategyError struct {
	Strategy ID
	Time     time.Time
	Err      error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("strategy %s at %s: %v", e.Strategy, e.Time.Format(time.RFC3339), e.Err)
}

func (e *StrategyError) Unwrap() error { return e.Err }
