// Package optimal computes, with full hindsight, the best non-overlapping
// trade sequence over a Market Series. The result is a ceiling benchmark
// for rule-driven backtests and does not depend on any rule set.
package optimal

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/model"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/performance"
)

// ErrInvalidFinder is returned by Validate for unusable finder parameters.
var ErrInvalidFinder = errors.New("invalid optimal finder")

// Finder scans a series for the most favorable move reachable from each
// unconsumed candle.
type Finder struct {
	StartOffset    int     // first candle index considered for entry
	MaxHoldCandles int     // look-ahead window, in candles
	MinProfitPct   float64 // smallest favorable move worth recording
	Logger         *slog.Logger
}

// Result is the optimal ledger with its statistics.
type Result struct {
	Trades     []model.Trade                      `json:"trades"`
	Summary    performance.Summary                `json:"summary"`
	Directions map[model.Direction]DirectionStats `json:"directions"`
	Indicators IndicatorReport                    `json:"indicators"`
}

// extreme is the best price reached in the look-ahead window for one side.
type extreme struct {
	index int
	price float64
	pct   float64
}

// Validate rejects a finder that could never record a trade or would record
// losing ones.
func (f Finder) Validate() error {
	if f.MaxHoldCandles < 1 {
		return fmt.Errorf("%w: max_hold_candles must be >= 1, got %d", ErrInvalidFinder, f.MaxHoldCandles)
	}
	if f.MinProfitPct < 0 {
		return fmt.Errorf("%w: min_profit_pct must be >= 0, got %v", ErrInvalidFinder, f.MinProfitPct)
	}
	return nil
}

// Find runs the scan. Trades are recorded with exit reason take_profit and
// never overlap: scanning resumes on the candle after each exit.
func (f Finder) Find(series model.Series) Result {
	log := f.Logger
	if log == nil {
		log = slog.Default()
	}
	candles := series.Candles
	trades := make([]model.Trade, 0, 32)

	i := f.StartOffset
	if i < 0 {
		i = 0
	}
	for i < len(candles)-1 {
		tr, ok := f.bestFrom(candles, i)
		if !ok {
			i++
			continue
		}
		trades = append(trades, tr)
		i = tr.ExitIndex + 1
	}

	sum := performance.Summarize(trades)
	sum.SkippedRows = series.Skipped
	log.Info("optimal scan finished",
		slog.String("series", series.Name),
		slog.Int("trades", len(trades)),
		slog.Float64("total_pnl_pct", sum.TotalPnLPct))

	return Result{
		Trades:     trades,
		Summary:    sum,
		Directions: directionStats(trades),
		Indicators: indicatorReport(trades),
	}
}

// bestFrom looks ahead from entry index i and returns the better of the
// long and short trades, if it clears MinProfitPct.
func (f Finder) bestFrom(candles []model.Candle, i int) (model.Trade, bool) {
	end := i + f.MaxHoldCandles
	if end > len(candles)-1 {
		end = len(candles) - 1
	}
	if end <= i {
		return model.Trade{}, false
	}
	entry := candles[i].Close

	hi := extreme{index: i + 1, price: candles[i+1].High}
	lo := extreme{index: i + 1, price: candles[i+1].Low}
	for j := i + 2; j <= end; j++ {
		if candles[j].High > hi.price {
			hi = extreme{index: j, price: candles[j].High}
		}
		if candles[j].Low < lo.price {
			lo = extreme{index: j, price: candles[j].Low}
		}
	}
	hi.pct = model.MovePct(model.DirLong, entry, hi.price)
	lo.pct = model.MovePct(model.DirShort, entry, lo.price)

	dir, best := model.DirLong, hi
	if lo.pct > hi.pct {
		dir, best = model.DirShort, lo
	}
	if best.pct <= 0 || best.pct < f.MinProfitPct {
		return model.Trade{}, false
	}

	in, out := &candles[i], &candles[best.index]
	return model.Trade{
		Direction:        dir,
		EntryTime:        in.TS,
		ExitTime:         out.TS,
		EntryIndex:       i,
		ExitIndex:        best.index,
		EntryPrice:       entry,
		ExitPrice:        best.price,
		PnLPct:           best.pct,
		NetPnLPct:        best.pct,
		HoldCandles:      best.index - i,
		HoldDuration:     out.TS.Sub(in.TS),
		ExitReason:       model.ExitTakeProfit,
		PeakFavorablePct: best.pct,
		MAEPct:           adverseBefore(candles, dir, entry, i, best.index),
		EntryIndicators:  maps.Clone(in.Indicators),
	}, true
}

// adverseBefore returns the worst adverse excursion, as a positive %, on
// the candles strictly between entry and exit.
func adverseBefore(candles []model.Candle, dir model.Direction, entry float64, from, to int) float64 {
	var worst float64
	for j := from + 1; j < to; j++ {
		price := candles[j].Low
		if dir == model.DirShort {
			price = candles[j].High
		}
		if adv := -model.MovePct(dir, entry, price); adv > worst {
			worst = adv
		}
	}
	return worst
}
