package market

import (
	"fmt"
	"time"
)

// Bar is one OHLCV observation. Time is the start of the bar.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Bullish reports a close above the open.
func (b Bar) Bullish() bool { return b.Close > b.Open }

// Bearish reports a close below the open.
func (b Bar) Bearish() bool { return b.Close < b.Open }

// Body is close minus open (negative for bearish bars).
func (b Bar) Body() float64 { return b.Close - b.Open }

// ChangeRate is the open-to-close return of the bar.
func (b Bar) ChangeRate() float64 {
	if b.Open == 0 {
		return 0
	}
	return (b.Close - b.Open) / b.Open
}

// BodyMid is the 50% level of the candle body.
func (b Bar) BodyMid() float64 { return (b.Open + b.Close) / 2 }

// Validate checks a single bar in isolation.
func (b Bar) Validate() error {
	if b.Time.IsZero() {
		return fmt.Errorf("%w: zero timestamp", ErrInvalidBar)
	}
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return fmt.Errorf("%w: prices must be positive (o=%g h=%g l=%g c=%g)",
			ErrInvalidBar, b.Open, b.High, b.Low, b.Close)
	}
	if b.High < b.Low {
		return fmt.Errorf("%w: high %g below low %g", ErrInvalidBar, b.High, b.Low)
	}
	if b.Open > b.High || b.Open < b.Low || b.Close > b.High || b.Close < b.Low {
		return fmt.Errorf("%w: open/close outside high-low range", ErrInvalidBar)
	}
	if b.Volume < 0 {
		return fmt.Errorf("%w: negative volume %d", ErrInvalidBar, b.Volume)
	}
	return nil
}
