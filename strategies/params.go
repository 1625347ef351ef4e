package strategies

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rustyeddy/backtester/market"
)

// Params overrides a variant's default thresholds by name.
type Params map[string]float64

type setter func(v float64) error

func floatParam(dst *float64) setter {
	return func(v float64) error {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("must be finite")
		}
		*dst = v
		return nil
	}
}

func intParam(dst *int) setter {
	return func(v float64) error {
		if v != math.Trunc(v) || v < 1 {
			return fmt.Errorf("must be a positive whole number")
		}
		*dst = int(v)
		return nil
	}
}

func applyParams(id ID, p Params, setters map[string]setter) error {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		set, ok := setters[k]
		if !ok {
			known := make([]string, 0, len(setters))
			for name := range setters {
				known = append(known, name)
			}
			sort.Strings(known)
			return fmt.Errorf("%s: unknown parameter %q (known: %s)", id, k, strings.Join(known, ", "))
		}
		if err := set(p[k]); err != nil {
			return fmt.Errorf("%s: parameter %s: %w", id, k, err)
		}
	}
	return nil
}

// condition is one named entry rule.
type condition struct {
	name string
	ok   bool
}

type conditions []condition

func (cs conditions) all(names ...string) bool {
	for _, n := range names {
		if !cs.get(n) {
			return false
		}
	}
	return true
}

func (cs conditions) any(names ...string) bool {
	for _, n := range names {
		if cs.get(n) {
			return true
		}
	}
	return false
}

func (cs conditions) get(name string) bool {
	for _, c := range cs {
		if c.name == name {
			return c.ok
		}
	}
	return false
}

// reason joins the satisfied rule names in declaration order.
func (cs conditions) reason() string {
	var met []string
	for _, c := range cs {
		if c.ok {
			met = append(met, c.name)
		}
	}
	return strings.Join(met, ", ")
}

func (cs conditions) strength() float64 {
	if len(cs) == 0 {
		return 0
	}
	n := 0
	for _, c := range cs {
		if c.ok {
			n++
		}
	}
	return float64(n) / float64(len(cs))
}

func newSignal(id ID, w market.Window, stop, take float64, cs conditions) *Signal {
	last := w.Last()
	return &Signal{
		Symbol:     w.Symbol(),
		Time:       last.Time,
		Direction:  Buy,
		Price:      last.Close,
		StopLoss:   stop,
		TakeProfit: take,
		Strategy:   id,
		Reason:     cs.reason(),
		Strength:   cs.strength(),
	}
}

func checkBar(b market.Bar) error {
	if b.Open <= 0 || b.Close <= 0 || b.Low <= 0 || b.High <= 0 {
		return fmt.Errorf("malformed bar at %s: non-positive price", b.Time)
	}
	return nil
}
