package market

import (
	"fmt"
	"time"
)

// Resample aggregates intraday bars into a coarser intraday timeframe.
//
// Buckets are anchored at the KRX session open and never cross a session; the
// last bucket of a day is cut at the session close. Source bars outside the
// regular session are dropped.
func Resample(s *Series, target Timeframe) (*Series, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if !s.Timeframe.Intraday() || !target.Intraday() {
		return nil, fmt.Errorf("resample %s -> %s: only intraday timeframes can be resampled", s.Timeframe, target)
	}
	if target < s.Timeframe || target%s.Timeframe != 0 {
		return nil, fmt.Errorf("resample %s -> %s: target must be a multiple of the source", s.Timeframe, target)
	}
	if target == s.Timeframe {
		cp := make([]Bar, len(s.Bars))
		copy(cp, s.Bars)
		return &Series{Symbol: s.Symbol, Timeframe: target, Bars: cp}, nil
	}

	var (
		out    []Bar
		cur    Bar
		curKey time.Time
		have   bool
	)
	span := target.Duration()

	for _, b := range s.Bars {
		if !InSession(b.Time) {
			continue
		}
		open, _ := SessionBounds(b.Time)
		key := open.Add(b.Time.Sub(open) / span * span)

		if !have || !key.Equal(curKey) {
			if have {
				out = append(out, cur)
			}
			curKey = key
			cur = Bar{
				Time:   key,
				Open:   b.Open,
				High:   b.High,
				Low:    b.Low,
				Close:  b.Close,
				Volume: b.Volume,
			}
			have = true
			continue
		}

		if b.High > cur.High {
			cur.High = b.High
		}
		if b.Low < cur.Low {
			cur.Low = b.Low
		}
		cur.Close = b.Close
		cur.Volume += b.Volume
	}
	if have {
		out = append(out, cur)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("resample %s -> %s: %w", s.Timeframe, target, ErrEmptySeries)
	}

	return &Series{Symbol: s.Symbol, Timeframe: target, Bars: out}, nil
}
