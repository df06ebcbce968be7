// Package exit implements the per-position Exit State Machine.
//
// A position is OPEN until one evaluation returns Close; CLOSED is terminal.
// Exit rules are an explicit ordered list and the first match wins, so
// reordering them is a visible change to Priority().
package exit

import (
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/model"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/rules"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/signal"
)

// Decision is the result of evaluating one position on one candle.
type Decision struct {
	Close      bool             `json:"close"`
	Reason     model.ExitReason `json:"reason,omitempty"`
	Skipped    bool             `json:"skipped,omitempty"` // data gap, nothing evaluated
	CurrentPct float64          `json:"current_pct"`
}

type state struct {
	pos     *model.Position
	candle  *model.Candle
	index   int
	current float64
}

type exitRule struct {
	reason model.ExitReason
	hit    func(*state) bool
}

// Machine evaluates exits for any number of positions; it keeps no state
// of its own between calls.
type Machine struct {
	rules []exitRule
}

// NewMachine builds the exit rule list from a rule set.
func NewMachine(rs rules.RuleSet) *Machine {
	x := rs.Exit
	dirRule := rs.Entry.Direction

	m := &Machine{}
	m.rules = []exitRule{
		{model.ExitTakeProfit, func(s *state) bool {
			return s.current >= x.TakeProfitPct
		}},
		{model.ExitStopLoss, func(s *state) bool {
			return s.current <= x.StopLossPct
		}},
		{model.ExitProfitLock, func(s *state) bool {
			return x.ProfitLockPct > 0 &&
				s.pos.PeakFavorablePct > x.ProfitLockPct &&
				s.current <= 0
		}},
		{model.ExitTrailingStop, func(s *state) bool {
			return x.TrailingWidthPct > 0 &&
				s.pos.PeakFavorablePct > x.TrailingActivationPct &&
				s.pos.PeakFavorablePct-s.current > x.TrailingWidthPct
		}},
		{model.ExitRibbonReversal, func(s *state) bool {
			if !x.RibbonReversal || s.current < 0 {
				return false
			}
			dir, ok := signal.ReadDirection(dirRule, s.candle)
			return ok && dir == s.pos.Direction.Opposite()
		}},
		{model.ExitMaxHoldTime, func(s *state) bool {
			return s.index-s.pos.EntryIndex >= x.MaxHoldCandles
		}},
	}
	return m
}

// Priority returns the exit reasons in evaluation order.
func (m *Machine) Priority() []model.ExitReason {
	out := make([]model.ExitReason, len(m.rules))
	for i, r := range m.rules {
		out[i] = r.reason
	}
	return out
}

// Evaluate checks pos against candle c at series index i. It advances the
// position's excursion trackers before testing the rules. Candles at or
// before the entry index and data-gap candles are never evaluated.
func (m *Machine) Evaluate(pos *model.Position, c *model.Candle, i int) Decision {
	if i <= pos.EntryIndex || c.Gap() {
		return Decision{Skipped: true}
	}
	s := &state{pos: pos, candle: c, index: i, current: pos.CurrentPct(c.Close)}
	pos.Observe(s.current)

	for _, r := range m.rules {
		if r.hit(s) {
			return Decision{Close: true, Reason: r.reason, CurrentPct: s.current}
		}
	}
	return Decision{CurrentPct: s.current}
}
