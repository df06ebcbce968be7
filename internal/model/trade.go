package model

import "time"

// ExitReason is drawn from a fixed taxonomy. The order of ExitReasons is
// the evaluation priority of the exit state machine.
type ExitReason string

const (
	ExitTakeProfit     ExitReason = "take_profit"
	ExitStopLoss       ExitReason = "stop_loss"
	ExitProfitLock     ExitReason = "profit_lock"
	ExitTrailingStop   ExitReason = "trailing_stop"
	ExitRibbonReversal ExitReason = "ribbon_reversal"
	ExitMaxHoldTime    ExitReason = "max_hold_time"
)

// ExitReasons lists the taxonomy in priority order.
var ExitReasons = []ExitReason{
	ExitTakeProfit,
	ExitStopLoss,
	ExitProfitLock,
	ExitTrailingStop,
	ExitRibbonReversal,
	ExitMaxHoldTime,
}

// Valid reports whether r belongs to the taxonomy.
func (r ExitReason) Valid() bool {
	for _, x := range ExitReasons {
		if x == r {
			return true
		}
	}
	return false
}

// Trade is an immutable completed position.
type Trade struct {
	Direction        Direction        `json:"direction"`
	EntryTime        time.Time        `json:"entry_time"`
	ExitTime         time.Time        `json:"exit_time"`
	EntryIndex       int              `json:"entry_index"`
	ExitIndex        int              `json:"exit_index"`
	EntryPrice       float64          `json:"entry_price"`
	ExitPrice        float64          `json:"exit_price"`
	PnLPct           float64          `json:"pnl_pct"`     // gross, from prices
	NetPnLPct        float64          `json:"net_pnl_pct"` // after commission
	PnLValue         float64          `json:"pnl_value"`   // capital units
	SizeValue        float64          `json:"size_value"`
	HoldCandles      int              `json:"hold_candles"`
	HoldDuration     time.Duration    `json:"hold_duration"`
	ExitReason       ExitReason       `json:"exit_reason"`
	PeakFavorablePct float64          `json:"peak_favorable_pct"`
	MAEPct           float64          `json:"mae_pct"` // worst adverse excursion, as a positive %
	EntryQuality     float64          `json:"entry_quality,omitempty"`
	EntryIndicators  map[string]Value `json:"entry_indicators,omitempty"`
}

// Win reports a trade that made money after costs.
func (t *Trade) Win() bool { return t.NetPnLPct > 0 }
