package market

import "time"

// Window is the trailing view a strategy gets at one step of a run. It ends
// at the current bar and never exposes anything after it. Slices returned
// from a Window are copies.
type Window struct {
	symbol string
	tf     Timeframe
	bars   []Bar
}

// NewWindow wraps bars as a window whose last element is the current bar.
// The bars are copied.
func NewWindow(symbol string, tf Timeframe, bars []Bar) Window {
	cp := make([]Bar, len(bars))
	copy(cp, bars)
	return Window{symbol: symbol, tf: tf, bars: cp}
}

func (w Window) Symbol() string       { return w.symbol }
func (w Window) Timeframe() Timeframe { return w.tf }
func (w Window) Len() int             { return len(w.bars) }

// At returns bar i counted from the oldest bar in the window.
func (w Window) At(i int) Bar { return w.bars[i] }

// Last is the current bar.
func (w Window) Last() Bar { return w.bars[len(w.bars)-1] }

// Back returns the bar n steps before the current one; Back(0) == Last().
func (w Window) Back(n int) Bar { return w.bars[len(w.bars)-1-n] }

// Time is the timestamp of the current bar.
func (w Window) Time() time.Time { return w.Last().Time }

// Tail returns a copy of the last n bars (fewer if the window is shorter).
func (w Window) Tail(n int) []Bar {
	if n > len(w.bars) {
		n = len(w.bars)
	}
	if n <= 0 {
		return nil
	}
	out := make([]Bar, n)
	copy(out, w.bars[len(w.bars)-n:])
	return out
}

// Bars returns a copy of every bar in the window.
func (w Window) Bars() []Bar { return w.Tail(len(w.bars)) }

// Closes returns the last n closes, oldest first.
func (w Window) Closes(n int) []float64 {
	tail := w.Tail(n)
	out := make([]float64, len(tail))
	for i, b := range tail {
		out[i] = b.Close
	}
	return out
}

// Volumes returns the last n volumes, oldest first.
func (w Window) Volumes(n int) []float64 {
	tail := w.Tail(n)
	out := make([]float64, len(tail))
	for i, b := range tail {
		out[i] = float64(b.Volume)
	}
	return out
}

// Trim drops the newest n bars, giving the window as it looked n steps ago.
func (w Window) Trim(n int) Window {
	end := len(w.bars) - n
	if end < 0 {
		end = 0
	}
	return Window{symbol: w.symbol, tf: w.tf, bars: w.bars[:end:end]}
}
