package metrics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Kind tells a defined metric from the degenerate cases.
type Kind uint8

const (
	Defined Kind = iota
	Undefined
	PosInf
)

// Value is a metric that may be undefined (zero variance, no trades) or
// infinite (no losing trades). It marshals to a JSON number, null or "+Inf".
type Value struct {
	kind Kind
	v    float64
}

// Of wraps v. NaN becomes Undefined and +Inf becomes PosInf.
func Of(v float64) Value {
	switch {
	case math.IsNaN(v):
		return Value{kind: Undefined}
	case math.IsInf(v, 1):
		return Value{kind: PosInf}
	}
	return Value{v: v}
}

func Null() Value { return Value{kind: Undefined} }
func Inf() Value  { return Value{kind: PosInf} }

func (v Value) Kind() Kind        { return v.kind }
func (v Value) IsDefined() bool   { return v.kind == Defined }
func (v Value) IsUndefined() bool { return v.kind == Undefined }
func (v Value) IsInf() bool       { return v.kind == PosInf }

// Float returns the value and whether it is a finite number.
func (v Value) Float() (float64, bool) {
	return v.v, v.kind == Defined
}

// Float64 maps Undefined to NaN and PosInf to +Inf.
func (v Value) Float64() float64 {
	switch v.kind {
	case Undefined:
		return math.NaN()
	case PosInf:
		return math.Inf(1)
	}
	return v.v
}

// Format renders a defined value with the given precision.
func (v Value) Format(prec int) string {
	switch v.kind {
	case Undefined:
		return "n/a"
	case PosInf:
		return "inf"
	}
	return strconv.FormatFloat(v.v, 'f', prec, 64)
}

func (v Value) String() string { return v.Format(4) }

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case Undefined:
		return []byte("null"), nil
	case PosInf:
		return []byte(`"+Inf"`), nil
	}
	return json.Marshal(v.v)
}

func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*v = Null()
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		switch s {
		case "+Inf", "Inf", "inf":
			*v = Inf()
			return nil
		}
		return fmt.Errorf("metrics: invalid value %q", s)
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*v = Of(f)
	return nil
}
