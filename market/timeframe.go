package market

import (
	"fmt"
	"strings"
	"time"
)

// Timeframe is the bar resolution in seconds.
type Timeframe int32

const (
	Minute1  Timeframe = 60
	Minute5  Timeframe = 300
	Minute15 Timeframe = 900
	Minute30 Timeframe = 1800
	Minute60 Timeframe = 3600
	Daily    Timeframe = 86400
)

func (tf Timeframe) String() string {
	switch tf {
	case Minute1:
		return "1m"
	case Minute5:
		return "5m"
	case Minute15:
		return "15m"
	case Minute30:
		return "30m"
	case Minute60:
		return "60m"
	case Daily:
		return "1d"
	default:
		return fmt.Sprintf("%ds", int32(tf))
	}
}

// Duration returns the length of one bar.
func (tf Timeframe) Duration() time.Duration {
	return time.Duration(tf) * time.Second
}

// Intraday reports whether bars are shorter than a trading day.
func (tf Timeframe) Intraday() bool {
	return tf > 0 && tf < Daily
}

// ParseTimeframe accepts "1m", "15m", "30m", "60m", "1h", "1d", "daily" etc.
func ParseTimeframe(s string) (Timeframe, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1m", "m1", "1min":
		return Minute1, nil
	case "5m", "m5", "5min":
		return Minute5, nil
	case "15m", "m15", "15min":
		return Minute15, nil
	case "30m", "m30", "30min":
		return Minute30, nil
	case "60m", "1h", "h1":
		return Minute60, nil
	case "1d", "d", "d1", "day", "daily":
		return Daily, nil
	}
	return 0, fmt.Errorf("unknown timeframe %q", s)
}

func (tf Timeframe) MarshalText() ([]byte, error) {
	return []byte(tf.String()), nil
}

func (tf *Timeframe) UnmarshalText(b []byte) error {
	v, err := ParseTimeframe(string(b))
	if err != nil {
		return err
	}
	*tf = v
	return nil
}
