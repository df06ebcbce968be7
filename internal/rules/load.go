package rules

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrInvalidRuleSet wraps every validation failure. A run must not start
// with a rule set that fails validation.
var ErrInvalidRuleSet = errors.New("invalid rule set")

// Load reads a rule set document from path. Fields missing from the
// document keep their Default values.
func Load(path string) (RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("rules open: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Parse decodes a rule set from raw JSON.
func Parse(data []byte) (RuleSet, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads, defaults and validates a rule set. Unknown fields are
// rejected so a typo cannot silently fall back to a default.
func Decode(r io.Reader) (RuleSet, error) {
	rs := Default()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rs); err != nil {
		return RuleSet{}, fmt.Errorf("rules decode: %w", err)
	}
	if err := rs.Validate(); err != nil {
		return RuleSet{}, err
	}
	return rs, nil
}

// Validate checks ranges and cross-field consistency. All violations are
// reported together.
func (rs RuleSet) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	c := rs.Capital
	if c.Initial <= 0 {
		bad("capital.initial must be > 0, got %v", c.Initial)
	}
	if c.PositionSizePct <= 0 || c.PositionSizePct > 100 {
		bad("capital.position_size_pct must be in (0,100], got %v", c.PositionSizePct)
	}
	if c.CommissionPct < 0 {
		bad("capital.commission_pct must be >= 0, got %v", c.CommissionPct)
	}
	if c.MaxConcurrentTrades < 1 {
		bad("capital.max_concurrent_trades must be >= 1, got %d", c.MaxConcurrentTrades)
	}

	e := rs.Entry
	if e.LookbackCandles < 1 {
		bad("entry.lookback_candles must be >= 1, got %d", e.LookbackCandles)
	}
	if e.MinQualityScore < 0 || e.MinQualityScore > 100 {
		bad("entry.min_quality_score must be in [0,100], got %v", e.MinQualityScore)
	}

	checkFactor := func(name string, f Factor) {
		if f.Points < 0 {
			bad("entry.%s.points must be >= 0, got %v", name, f.Points)
		}
		if f.MaxPoints < 0 {
			bad("entry.%s.max_points must be >= 0, got %v", name, f.MaxPoints)
		}
		if f.MaxPoints > 100 {
			bad("entry.%s.max_points must be <= 100, got %v", name, f.MaxPoints)
		}
	}

	d := e.Direction
	checkFactor("direction", d.Factor)
	if d.RequireFlip && d.FlipField == "" {
		bad("entry.direction.flip_field is required when require_flip is set")
	}
	if !d.RequireFlip {
		if d.AlignmentField == "" {
			bad("entry.direction.alignment_field is required")
		}
		if d.LongThreshold < 0 || d.LongThreshold > 1 || d.ShortThreshold < 0 || d.ShortThreshold > 1 {
			bad("entry.direction thresholds must be in [0,1], got long=%v short=%v", d.LongThreshold, d.ShortThreshold)
		}
		if d.LongThreshold <= d.ShortThreshold {
			bad("entry.direction.long_threshold (%v) must be above short_threshold (%v)", d.LongThreshold, d.ShortThreshold)
		}
	}
	if o := d.Override; o.Enabled {
		if o.LongField == "" || o.ShortField == "" {
			bad("entry.direction.override needs both long_field and short_field")
		}
		if o.StrictThreshold <= 0 {
			bad("entry.direction.override.strict_threshold must be > 0, got %v", o.StrictThreshold)
		}
		if o.BorderlineMargin < 0 {
			bad("entry.direction.override.borderline_margin must be >= 0, got %v", o.BorderlineMargin)
		}
	}

	if cr := e.Compression; cr.Enabled {
		checkFactor("compression", cr.Factor)
		if cr.Field == "" {
			bad("entry.compression.field is required")
		}
		if cr.Threshold <= 0 {
			bad("entry.compression.threshold must be > 0, got %v", cr.Threshold)
		}
	}
	if ar := e.Alignment; ar.Enabled {
		checkFactor("alignment", ar.Factor)
		if ar.MinRatio <= 0 || ar.MinRatio > 1 {
			bad("entry.alignment.min_ratio must be in (0,1], got %v", ar.MinRatio)
		}
		if d.AlignmentField == "" {
			bad("entry.alignment needs entry.direction.alignment_field")
		}
	}
	if vr := e.VolumeState; vr.Enabled {
		checkFactor("volume_state", vr.Factor)
		if vr.Field == "" {
			bad("entry.volume_state.field is required")
		}
		if len(vr.Required) == 0 {
			bad("entry.volume_state.required must list at least one state")
		}
	}
	if cf := e.Confirmation; cf.Enabled {
		checkFactor("confirmation", cf.Factor)
		if cf.Field == "" {
			bad("entry.confirmation.field is required")
		}
	}
	if rr := e.RSIRange; rr.Enabled {
		checkFactor("rsi_range", rr.Factor)
		if rr.Field == "" {
			bad("entry.rsi_range.field is required")
		}
		if rr.LongMin > rr.LongMax || rr.ShortMin > rr.ShortMax {
			bad("entry.rsi_range bands must have min <= max")
		}
		if rr.LongMin < 0 || rr.ShortMin < 0 || rr.LongMax > 100 || rr.ShortMax > 100 {
			bad("entry.rsi_range bands must be within [0,100]")
		}
	}

	x := rs.Exit
	if x.TakeProfitPct <= 0 {
		bad("exit.take_profit_pct must be > 0, got %v", x.TakeProfitPct)
	}
	if x.StopLossPct >= 0 {
		bad("exit.stop_loss_pct must be < 0, got %v", x.StopLossPct)
	}
	if x.TrailingActivationPct < 0 {
		bad("exit.trailing_activation_pct must be >= 0, got %v", x.TrailingActivationPct)
	}
	if x.TrailingWidthPct < 0 {
		bad("exit.trailing_width_pct must be >= 0, got %v", x.TrailingWidthPct)
	}
	if x.ProfitLockPct < 0 {
		bad("exit.profit_lock_pct must be >= 0, got %v", x.ProfitLockPct)
	}
	if x.MaxHoldCandles < 1 {
		bad("exit.max_hold_candles must be >= 1, got %d", x.MaxHoldCandles)
	}
	if x.RibbonReversal && !d.RequireFlip && d.AlignmentField == "" {
		bad("exit.ribbon_reversal needs a direction indicator")
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidRuleSet, errors.Join(errs...))
}
