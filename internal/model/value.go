package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ValueKind tags an indicator value as numeric or categorical.
type ValueKind uint8

const (
	KindNumeric ValueKind = iota + 1
	KindCategorical
)

// Value is a single named indicator reading attached to a candle by the
// upstream indicator pipeline. The zero Value is "absent".
type Value struct {
	Kind ValueKind
	Num  float64
	Str  string
}

// Number returns a numeric Value.
func Number(f float64) Value { return Value{Kind: KindNumeric, Num: f} }

// Category returns a categorical Value.
func Category(s string) Value { return Value{Kind: KindCategorical, Str: s} }

// ParseValue turns a raw CSV cell into a Value. Empty cells are absent,
// finite floats are numeric, anything else is categorical.
func ParseValue(raw string) (Value, bool) {
	if raw == "" {
		return Value{}, false
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Value{}, false
		}
		return Number(f), true
	}
	return Category(raw), true
}

// Present reports whether the value carries data.
func (v Value) Present() bool { return v.Kind != 0 }

func (v Value) String() string {
	switch v.Kind {
	case KindNumeric:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindCategorical:
		return v.Str
	default:
		return "<absent>"
	}
}

// MarshalJSON encodes numeric values as JSON numbers and categorical
// values as strings so ledgers stay readable.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNumeric:
		return json.Marshal(v.Num)
	case KindCategorical:
		return json.Marshal(v.Str)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = Value{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*v = Number(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("indicator value: %w", err)
	}
	*v = Category(s)
	return nil
}
