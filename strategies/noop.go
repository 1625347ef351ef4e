package strategies

import "github.com/rustyeddy/backtester/market"

// NoopStrategy never signals. Runs with it report the flat baseline.
type NoopStrategy struct{}

func (NoopStrategy) ID() ID                      { return Noop }
func (NoopStrategy) Timeframe() market.Timeframe { return 0 }
func (NoopStrategy) MinBars() int                { return 1 }

func (NoopStrategy) GenerateSignal(market.Window) (*Signal, error) { return nil, nil }

func (NoopStrategy) StopLoss(_ market.Window, entry float64) float64   { return entry * 0.97 }
func (NoopStrategy) TakeProfit(_ market.Window, entry float64) float64 { return entry * 1.10 }
