package market

import (
	"fmt"
	"time"
)

// Series is an ordered, validated run of bars for one symbol.
type Series struct {
	Symbol    string
	Timeframe Timeframe
	Bars      []Bar
}

// NewSeries builds a series and validates it.
func NewSeries(symbol string, tf Timeframe, bars []Bar) (*Series, error) {
	s := &Series{Symbol: symbol, Timeframe: tf, Bars: bars}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Series) Len() int { return len(s.Bars) }

func (s *Series) Start() time.Time {
	if len(s.Bars) == 0 {
		return time.Time{}
	}
	return s.Bars[0].Time
}

func (s *Series) End() time.Time {
	if len(s.Bars) == 0 {
		return time.Time{}
	}
	return s.Bars[len(s.Bars)-1].Time
}

// Validate enforces bar sanity and strict ordering. Intraday series must also
// be contiguous inside each session; daily series are only checked for order
// because no exchange holiday calendar is available.
func (s *Series) Validate() error {
	if s == nil || len(s.Bars) == 0 {
		return ErrEmptySeries
	}
	if s.Timeframe <= 0 {
		return fmt.Errorf("series %s: invalid timeframe %d", s.Symbol, s.Timeframe)
	}

	step := s.Timeframe.Duration()
	for i, b := range s.Bars {
		if err := b.Validate(); err != nil {
			return &ValidationError{Index: i, Time: b.Time, Err: err}
		}
		if i == 0 {
			continue
		}

		prev := s.Bars[i-1].Time
		switch {
		case b.Time.Equal(prev):
			return &ValidationError{Index: i, Time: b.Time, Err: ErrDuplicateTimestamp}
		case b.Time.Before(prev):
			return &ValidationError{Index: i, Time: b.Time, Err: ErrNonMonotonic}
		}

		if s.Timeframe.Intraday() && SameSession(prev, b.Time) {
			if gap := b.Time.Sub(prev); gap != step {
				return &ValidationError{
					Index: i,
					Time:  b.Time,
					Err:   fmt.Errorf("%w: %s after previous bar, expected %s", ErrMissingBar, gap, step),
				}
			}
		}
	}
	return nil
}

// Range returns the bars with start <= Time <= end. A zero start or end leaves
// that side open. The returned series shares the backing array.
func (s *Series) Range(start, end time.Time) (*Series, error) {
	lo, hi, err := s.Bounds(start, end)
	if err != nil {
		return nil, err
	}
	return &Series{
		Symbol:    s.Symbol,
		Timeframe: s.Timeframe,
		Bars:      s.Bars[lo:hi:hi],
	}, nil
}

// Bounds returns the index range [lo, hi) of the bars inside [start, end].
// A zero-length range (end equal to start) is ErrEmptyRange.
func (s *Series) Bounds(start, end time.Time) (lo, hi int, err error) {
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		return 0, 0, fmt.Errorf("%w: end %s not after start %s", ErrEmptyRange,
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	lo, hi = 0, len(s.Bars)
	for lo < hi && !start.IsZero() && s.Bars[lo].Time.Before(start) {
		lo++
	}
	for hi > lo && !end.IsZero() && s.Bars[hi-1].Time.After(end) {
		hi--
	}
	if lo >= hi {
		return 0, 0, fmt.Errorf("%w: no bars in [%s, %s]", ErrEmptyRange,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return lo, hi, nil
}

// Window exposes bars [0, i] only.
func (s *Series) Window(i int) Window {
	if i < 0 || i >= len(s.Bars) {
		panic(fmt.Sprintf("market: window index %d out of range [0,%d)", i, len(s.Bars)))
	}
	return Window{
		symbol: s.Symbol,
		tf:     s.Timeframe,
		bars:   s.Bars[: i+1 : i+1],
	}
}
