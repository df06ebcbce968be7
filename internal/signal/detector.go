package signal

import (
	"math"

	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/model"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/rules"
)

// Detector evaluates entry conditions. It holds no per-candle state and is
// safe to share between goroutines.
type Detector struct {
	entry   rules.Entry
	filters []filter
}

// NewDetector builds the ordered filter list for the enabled entry rules.
// The order is part of the contract: the first failing filter names the
// rejection reason.
func NewDetector(rs rules.RuleSet) *Detector {
	e := rs.Entry
	fs := []filter{
		historyFilter(e.LookbackCandles),
		directionFilter(e.Direction),
	}
	if e.Compression.Enabled {
		fs = append(fs, compressionFilter(e.Compression, e.LookbackCandles))
	}
	if e.Alignment.Enabled {
		fs = append(fs, alignmentFilter(e.Alignment, e.Direction.AlignmentField))
	}
	if e.VolumeState.Enabled {
		fs = append(fs, volumeStateFilter(e.VolumeState))
	}
	if e.Confirmation.Enabled {
		fs = append(fs, confirmationFilter(e.Confirmation))
	}
	if e.RSIRange.Enabled {
		fs = append(fs, rsiRangeFilter(e.RSIRange))
	}
	return &Detector{entry: e, filters: fs}
}

// Filters returns the filter names in evaluation order.
func (d *Detector) Filters() []string {
	names := make([]string, len(d.filters))
	for i, f := range d.filters {
		names[i] = f.name
	}
	return names
}

// Evaluate decides whether candle i is an entry. Only series[:i+1] is
// visible to the filters.
func (d *Detector) Evaluate(series []model.Candle, i int) Signal {
	if i < 0 || i >= len(series) {
		return Signal{Index: i, Direction: model.DirNone, FailedReason: ReasonIndexOutOfRange}
	}
	window := series[: i+1 : i+1]
	ctx := &evalContext{
		window: window,
		cur:    &window[i],
		dir:    model.DirNone,
		snap:   make(map[string]model.Value),
	}
	sig := Signal{Index: i, TS: ctx.cur.TS, Direction: model.DirNone}

	var total float64
	for _, f := range d.filters {
		res := f.check(ctx)
		switch res.Outcome {
		case OutcomeFail:
			sig.Direction = ctx.dir
			sig.Override = ctx.override
			sig.FailedReason = res.Reason
			sig.QualityScore = clampScore(total)
			sig.Snapshot = ctx.snap
			return sig
		case OutcomeScore:
			total += res.Points
			sig.Factors = append(sig.Factors, FactorScore{Name: f.name, Points: res.Points})
		}
	}

	sig.Direction = ctx.dir
	sig.Override = ctx.override
	sig.QualityScore = clampScore(total)
	sig.Snapshot = ctx.snap
	if sig.QualityScore < d.entry.MinQualityScore {
		sig.FailedReason = ReasonLowQuality
		return sig
	}
	sig.IsSignal = true
	return sig
}

func clampScore(s float64) float64 {
	return math.Max(0, math.Min(100, s))
}
