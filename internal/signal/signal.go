// Package signal implements the entry Signal Detector.
//
// A Detector evaluates one candle, plus a bounded lookback of earlier
// candles, against a rule set. Evaluation walks an ordered list of filter
// checks; the first failure short-circuits and names the reason, and each
// passing filter adds its capped points to a 0..100 quality score.
package signal

import (
	"time"

	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/model"
)

// Failure reasons that are not tied to a specific indicator field.
const (
	ReasonInsufficientHistory = "insufficient_history"
	ReasonNoDirection         = "no_direction"
	ReasonConflictingOverride = "conflicting_override"
	ReasonCompressionLow      = "compression_below_threshold"
	ReasonAlignmentLow        = "alignment_below_threshold"
	ReasonVolumeState         = "volume_state_not_allowed"
	ReasonConfirmation        = "confirmation_disagrees"
	ReasonRSIRange            = "rsi_out_of_range"
	ReasonLowQuality          = "low_quality_score"
	ReasonIndexOutOfRange     = "index_out_of_range"
)

// MissingReason is the failure reason for an absent indicator column.
func MissingReason(field string) string { return "missing_" + field }

// Signal is the detector's verdict for one candle.
type Signal struct {
	Index        int                    `json:"index"`
	TS           time.Time              `json:"ts"`
	IsSignal     bool                   `json:"is_signal"`
	Direction    model.Direction        `json:"direction"`
	QualityScore float64                `json:"quality_score"`
	FailedReason string                 `json:"failed_reason,omitempty"`
	Override     bool                   `json:"override,omitempty"`
	Factors      []FactorScore          `json:"factors,omitempty"`
	Snapshot     map[string]model.Value `json:"snapshot,omitempty"`
}

// FactorScore is the contribution of one passing filter.
type FactorScore struct {
	Name   string  `json:"name"`
	Points float64 `json:"points"`
}

// Outcome tags a filter result.
type Outcome uint8

const (
	OutcomePass Outcome = iota
	OutcomeFail
	OutcomeScore
)

// Result is what a single filter check returns.
type Result struct {
	Outcome Outcome
	Reason  string
	Points  float64
}

func pass() Result                 { return Result{Outcome: OutcomePass} }
func fail(reason string) Result    { return Result{Outcome: OutcomeFail, Reason: reason} }
func scored(points float64) Result { return Result{Outcome: OutcomeScore, Points: points} }
