package model

import "time"

// Direction is the side of a signal, position or trade.
type Direction string

const (
	DirNone  Direction = "none"
	DirLong  Direction = "long"
	DirShort Direction = "short"
)

// Opposite returns the other side; none stays none.
func (d Direction) Opposite() Direction {
	switch d {
	case DirLong:
		return DirShort
	case DirShort:
		return DirLong
	default:
		return DirNone
	}
}

// MovePct returns the favorable percentage move from entry to price for
// the given direction. Positive means profit.
func MovePct(d Direction, entry, price float64) float64 {
	if entry <= 0 {
		return 0
	}
	switch d {
	case DirLong:
		return (price - entry) / entry * 100
	case DirShort:
		return (entry - price) / entry * 100
	default:
		return 0
	}
}

// Position is one open trade. Only the excursion trackers change while it
// is open; PeakFavorablePct never decreases.
type Position struct {
	ID               string           `json:"id"`
	Direction        Direction        `json:"direction"`
	EntryPrice       float64          `json:"entry_price"`
	EntryTime        time.Time        `json:"entry_time"`
	EntryIndex       int              `json:"entry_index"`
	PeakFavorablePct float64          `json:"peak_favorable_pct"`
	WorstAdversePct  float64          `json:"worst_adverse_pct"`
	Size             float64          `json:"size"`       // fraction of balance committed
	SizeValue        float64          `json:"size_value"` // capital units committed
	EntryQuality     float64          `json:"entry_quality"`
	EntrySnapshot    map[string]Value `json:"entry_snapshot,omitempty"`
}

// CurrentPct returns the unrealized favorable % at price.
func (p *Position) CurrentPct(price float64) float64 {
	return MovePct(p.Direction, p.EntryPrice, price)
}

// Observe advances the excursion trackers with the current favorable %.
func (p *Position) Observe(currentPct float64) {
	if currentPct > p.PeakFavorablePct {
		p.PeakFavorablePct = currentPct
	}
	if -currentPct > p.WorstAdversePct {
		p.WorstAdversePct = -currentPct
	}
}
