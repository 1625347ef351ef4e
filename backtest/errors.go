package backtest

import (
	"context"
	"errors"
	"fmt"
)

// Input and configuration errors fail a run before its first bar. Strategy
// and accounting problems never do; they are counted on the Result.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidConfig     = errors.New("invalid config")
	ErrTimeframeMismatch = errors.New("strategy timeframe does not match series")
	ErrCanceled          = fmt.Errorf("backtest canceled: %w", context.Canceled)
)
