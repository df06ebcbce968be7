package model

import (
	"sort"
	"time"
)

// Candle is one row of the Market Series: OHLCV plus the indicator columns
// produced upstream. Candles are never mutated once the series is loaded.
type Candle struct {
	TS         time.Time        `json:"ts"`
	Open       float64          `json:"open"`
	High       float64          `json:"high"`
	Low        float64          `json:"low"`
	Close      float64          `json:"close"`
	Volume     float64          `json:"volume"`
	Indicators map[string]Value `json:"indicators,omitempty"`
}

// Lookup returns the named indicator, or false when the column is absent
// or empty for this candle.
func (c *Candle) Lookup(name string) (Value, bool) {
	v, ok := c.Indicators[name]
	if !ok || !v.Present() {
		return Value{}, false
	}
	return v, true
}

// Num returns a numeric indicator. Categorical values count as absent.
func (c *Candle) Num(name string) (float64, bool) {
	v, ok := c.Lookup(name)
	if !ok || v.Kind != KindNumeric {
		return 0, false
	}
	return v.Num, true
}

// Cat returns a categorical indicator. Numeric values are rendered as text
// so a volume state encoded as 0/1 still matches a required "1".
func (c *Candle) Cat(name string) (string, bool) {
	v, ok := c.Lookup(name)
	if !ok {
		return "", false
	}
	return v.String(), true
}

// Gap reports a candle with no indicator data at all (a hole in the
// upstream pipeline's output).
func (c *Candle) Gap() bool {
	for _, v := range c.Indicators {
		if v.Present() {
			return false
		}
	}
	return true
}

// Series is the ordered Market Series for one run. Skipped counts the
// malformed input rows dropped during ingestion.
type Series struct {
	Name    string
	Candles []Candle
	Skipped int
}

// Len returns the number of candles.
func (s Series) Len() int { return len(s.Candles) }

// IndicatorNames returns the sorted set of indicator columns seen anywhere
// in the series.
func (s Series) IndicatorNames() []string {
	seen := make(map[string]struct{})
	for i := range s.Candles {
		for k := range s.Candles[i].Indicators {
			seen[k] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
