package signal

import (
	"math"
	"strings"

	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/model"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/rules"
)

// evalContext carries per-candle state between filters. window never
// extends past the candle under evaluation.
type evalContext struct {
	window   []model.Candle
	cur      *model.Candle
	dir      model.Direction
	override bool
	snap     map[string]model.Value
}

func (c *evalContext) num(field string) (float64, bool) {
	v, ok := c.cur.Num(field)
	if ok {
		c.snap[field] = model.Number(v)
	}
	return v, ok
}

func (c *evalContext) cat(field string) (string, bool) {
	v, ok := c.cur.Cat(field)
	if ok {
		c.snap[field] = model.Category(v)
	}
	return v, ok
}

type filter struct {
	name  string
	check func(*evalContext) Result
}

func factorPoints(f rules.Factor, strength float64) float64 {
	return math.Min(f.Points*strength, f.MaxPoints)
}

func historyFilter(lookback int) filter {
	return filter{name: "history", check: func(c *evalContext) Result {
		if len(c.window)-1 < lookback {
			return fail(ReasonInsufficientHistory)
		}
		return pass()
	}}
}

// ReadDirection returns the primary direction reading of a candle: the
// flip field when the rule requires one, else the alignment thresholds.
// ok is false when the indicator is absent.
func ReadDirection(r rules.DirectionRule, c *model.Candle) (dir model.Direction, ok bool) {
	if r.RequireFlip {
		v, ok := c.Cat(r.FlipField)
		if !ok {
			return model.DirNone, false
		}
		return parseFlip(v), true
	}
	a, ok := c.Num(r.AlignmentField)
	if !ok {
		return model.DirNone, false
	}
	switch {
	case a >= r.LongThreshold:
		return model.DirLong, true
	case a <= r.ShortThreshold:
		return model.DirShort, true
	}
	return model.DirNone, true
}

func parseFlip(v string) model.Direction {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "long", "bull", "bullish", "up", "1":
		return model.DirLong
	case "short", "bear", "bearish", "down", "-1":
		return model.DirShort
	}
	return model.DirNone
}

func directionFilter(r rules.DirectionRule) filter {
	return filter{name: "direction", check: func(c *evalContext) Result {
		field := r.AlignmentField
		if r.RequireFlip {
			field = r.FlipField
			if _, ok := c.cat(field); !ok {
				return fail(MissingReason(field))
			}
		} else if _, ok := c.num(field); !ok {
			return fail(MissingReason(field))
		}

		dir, _ := ReadDirection(r, c.cur)
		if dir == model.DirNone && r.Override.Enabled {
			var reason string
			dir, reason = overrideDirection(r, c)
			if reason != "" {
				return fail(reason)
			}
			c.override = dir != model.DirNone
		}
		if dir == model.DirNone {
			return fail(ReasonNoDirection)
		}
		c.dir = dir
		return scored(factorPoints(r.Factor, 1))
	}}
}

// overrideDirection lets a strict acceleration reading settle a borderline
// candle. Evidence on both sides cancels out.
func overrideDirection(r rules.DirectionRule, c *evalContext) (model.Direction, string) {
	o := r.Override
	lv, lok := c.num(o.LongField)
	sv, sok := c.num(o.ShortField)
	longHit := lok && lv >= o.StrictThreshold
	shortHit := sok && sv >= o.StrictThreshold
	if longHit && shortHit {
		return model.DirNone, ReasonConflictingOverride
	}

	borderLong, borderShort := true, true
	if !r.RequireFlip {
		a, _ := c.cur.Num(r.AlignmentField)
		borderLong = a >= r.LongThreshold-o.BorderlineMargin
		borderShort = a <= r.ShortThreshold+o.BorderlineMargin
	}
	switch {
	case longHit && borderLong:
		return model.DirLong, ""
	case shortHit && borderShort:
		return model.DirShort, ""
	}
	return model.DirNone, ""
}

// compressionFilter looks at the lookback candles before the current one
// and passes when the ribbon was compressed past the threshold. The
// current candle is not part of the window.
func compressionFilter(r rules.CompressionRule, lookback int) filter {
	return filter{name: "compression", check: func(c *evalContext) Result {
		last := len(c.window) - 1
		from := last - lookback
		if from < 0 {
			from = 0
		}
		peak, seen := 0.0, false
		for i := from; i < last; i++ {
			v, ok := c.window[i].Num(r.Field)
			if !ok {
				continue
			}
			if !seen || v > peak {
				peak = v
			}
			seen = true
		}
		if !seen {
			return fail(MissingReason(r.Field))
		}
		c.num(r.Field)
		c.snap[r.Field+"_recent_max"] = model.Number(peak)
		if peak < r.Threshold {
			return fail(ReasonCompressionLow)
		}
		return scored(factorPoints(r.Factor, peak/r.Threshold))
	}}
}

func alignmentFilter(r rules.AlignmentRule, field string) filter {
	return filter{name: "alignment", check: func(c *evalContext) Result {
		a, ok := c.num(field)
		if !ok {
			return fail(MissingReason(field))
		}
		ratio := a
		if c.dir == model.DirShort {
			ratio = 1 - a
		}
		if ratio < r.MinRatio {
			return fail(ReasonAlignmentLow)
		}
		return scored(factorPoints(r.Factor, ratio/r.MinRatio))
	}}
}

func volumeStateFilter(r rules.VolumeStateRule) filter {
	return filter{name: "volume_state", check: func(c *evalContext) Result {
		v, ok := c.cat(r.Field)
		if !ok {
			return fail(MissingReason(r.Field))
		}
		for _, want := range r.Required {
			if strings.EqualFold(strings.TrimSpace(v), want) {
				return scored(factorPoints(r.Factor, 1))
			}
		}
		return fail(ReasonVolumeState)
	}}
}

func confirmationFilter(r rules.ConfirmationRule) filter {
	return filter{name: "confirmation", check: func(c *evalContext) Result {
		v, ok := c.num(r.Field)
		if !ok {
			return fail(MissingReason(r.Field))
		}
		agrees := (c.dir == model.DirLong && v > r.LongMin) ||
			(c.dir == model.DirShort && v < r.ShortMax)
		if !agrees {
			return fail(ReasonConfirmation)
		}
		return scored(factorPoints(r.Factor, 1))
	}}
}

func rsiRangeFilter(r rules.RSIRangeRule) filter {
	return filter{name: "rsi_range", check: func(c *evalContext) Result {
		v, ok := c.num(r.Field)
		if !ok {
			return fail(MissingReason(r.Field))
		}
		lo, hi := r.LongMin, r.LongMax
		if c.dir == model.DirShort {
			lo, hi = r.ShortMin, r.ShortMax
		}
		if v < lo || v > hi {
			return fail(ReasonRSIRange)
		}
		return scored(factorPoints(r.Factor, 1))
	}}
}
