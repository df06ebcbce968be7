// Package rules defines the Rule Set document that drives entry filters,
// quality weights and exit parameters for one simulation run.
//
// A RuleSet is produced outside this module (by hand or by an optimizer
// between runs), loaded once, validated, and then treated as immutable.
package rules

// RuleSet is one versioned configuration snapshot.
type RuleSet struct {
	Version string  `json:"version"`
	Capital Capital `json:"capital"`
	Entry   Entry   `json:"entry"`
	Exit    Exit    `json:"exit"`
}

// Capital holds account and sizing parameters.
type Capital struct {
	Initial             float64 `json:"initial"`
	PositionSizePct     float64 `json:"position_size_pct"` // % of current balance per entry
	CommissionPct       float64 `json:"commission_pct"`    // round-trip cost, in P&L %
	MaxConcurrentTrades int     `json:"max_concurrent_trades"`
}

// Factor is the point allotment of a scored filter. A passing filter
// contributes min(Points*strength, MaxPoints).
type Factor struct {
	Points    float64 `json:"points"`
	MaxPoints float64 `json:"max_points"`
}

// Entry configures the Signal Detector.
type Entry struct {
	LookbackCandles int     `json:"lookback_candles"`
	MinQualityScore float64 `json:"min_quality_score"`

	Direction    DirectionRule    `json:"direction"`
	Compression  CompressionRule  `json:"compression"`
	Alignment    AlignmentRule    `json:"alignment"`
	VolumeState  VolumeStateRule  `json:"volume_state"`
	Confirmation ConfirmationRule `json:"confirmation"`
	RSIRange     RSIRangeRule     `json:"rsi_range"`
}

// DirectionRule resolves long/short. With RequireFlip the categorical
// FlipField ("long"/"short") decides; otherwise the AlignmentField (0..1,
// fraction of ribbon averages pointing up) crossing the thresholds does.
type DirectionRule struct {
	Factor
	RequireFlip    bool         `json:"require_flip"`
	FlipField      string       `json:"flip_field"`
	AlignmentField string       `json:"alignment_field"`
	LongThreshold  float64      `json:"long_threshold"`
	ShortThreshold float64      `json:"short_threshold"`
	Override       OverrideRule `json:"override"`
}

// OverrideRule lets a strong acceleration reading rescue a borderline
// alignment. The opposite side's evidence must be absent.
type OverrideRule struct {
	Enabled          bool    `json:"enabled"`
	LongField        string  `json:"long_field"`
	ShortField       string  `json:"short_field"`
	StrictThreshold  float64 `json:"strict_threshold"`
	BorderlineMargin float64 `json:"borderline_margin"`
}

// CompressionRule requires the ribbon to have been compressed recently.
type CompressionRule struct {
	Factor
	Enabled   bool    `json:"enabled"`
	Field     string  `json:"field"`
	Threshold float64 `json:"threshold"`
}

// AlignmentRule requires a minimum share of the ribbon pointing the trade's way.
type AlignmentRule struct {
	Factor
	Enabled  bool    `json:"enabled"`
	MinRatio float64 `json:"min_ratio"`
}

// VolumeStateRule requires one of the listed categorical volume states.
type VolumeStateRule struct {
	Factor
	Enabled  bool     `json:"enabled"`
	Field    string   `json:"field"`
	Required []string `json:"required"`
}

// ConfirmationRule requires a directional indicator to agree: above
// LongMin for longs, below ShortMax for shorts.
type ConfirmationRule struct {
	Factor
	Enabled  bool    `json:"enabled"`
	Field    string  `json:"field"`
	LongMin  float64 `json:"long_min"`
	ShortMax float64 `json:"short_max"`
}

// RSIRangeRule keeps entries inside a per-direction RSI band.
type RSIRangeRule struct {
	Factor
	Enabled  bool    `json:"enabled"`
	Field    string  `json:"field"`
	LongMin  float64 `json:"long_min"`
	LongMax  float64 `json:"long_max"`
	ShortMin float64 `json:"short_min"`
	ShortMax float64 `json:"short_max"`
}

// Exit configures the Exit State Machine. StopLossPct is negative. A zero
// TrailingWidthPct or ProfitLockPct disables that rule.
type Exit struct {
	TakeProfitPct         float64 `json:"take_profit_pct"`
	StopLossPct           float64 `json:"stop_loss_pct"`
	TrailingActivationPct float64 `json:"trailing_activation_pct"`
	TrailingWidthPct      float64 `json:"trailing_width_pct"`
	ProfitLockPct         float64 `json:"profit_lock_pct"`
	MaxHoldCandles        int     `json:"max_hold_candles"`
	RibbonReversal        bool    `json:"ribbon_reversal"`
}

// Default returns the baseline rule set used when a document leaves
// fields out.
func Default() RuleSet {
	return RuleSet{
		Version: "default",
		Capital: Capital{
			Initial:             10000,
			PositionSizePct:     10,
			CommissionPct:       0.1,
			MaxConcurrentTrades: 1,
		},
		Entry: Entry{
			LookbackCandles: 5,
			MinQualityScore: 60,
			Direction: DirectionRule{
				Factor:         Factor{Points: 20, MaxPoints: 20},
				FlipField:      "ribbon_flip",
				AlignmentField: "ribbon_alignment",
				LongThreshold:  0.8,
				ShortThreshold: 0.2,
				Override: OverrideRule{
					LongField:        "bull_acceleration",
					ShortField:       "bear_acceleration",
					StrictThreshold:  0.5,
					BorderlineMargin: 0.1,
				},
			},
			Compression: CompressionRule{
				Factor:    Factor{Points: 20, MaxPoints: 30},
				Enabled:   true,
				Field:     "ribbon_compression",
				Threshold: 0.5,
			},
			Alignment: AlignmentRule{
				Factor:   Factor{Points: 20, MaxPoints: 25},
				Enabled:  true,
				MinRatio: 0.7,
			},
			VolumeState: VolumeStateRule{
				Factor:   Factor{Points: 15, MaxPoints: 15},
				Enabled:  true,
				Field:    "volume_status",
				Required: []string{"spike", "elevated"},
			},
			Confirmation: ConfirmationRule{
				Factor:  Factor{Points: 10, MaxPoints: 10},
				Enabled: true,
				Field:   "macd_histogram",
			},
			RSIRange: RSIRangeRule{
				Field:    "rsi_14",
				LongMin:  40,
				LongMax:  70,
				ShortMin: 30,
				ShortMax: 60,
			},
		},
		Exit: Exit{
			TakeProfitPct:         2.0,
			StopLossPct:           -1.0,
			TrailingActivationPct: 1.0,
			TrailingWidthPct:      0.9,
			ProfitLockPct:         0.7,
			MaxHoldCandles:        48,
			RibbonReversal:        true,
		},
	}
}
