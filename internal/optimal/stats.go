package optimal

import (
	"math"
	"sort"

	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/model"
)

// DirectionStats aggregates optimal trades of one side.
type DirectionStats struct {
	Count          int     `json:"count"`
	SharePct       float64 `json:"share_pct"`
	AvgPnLPct      float64 `json:"avg_pnl_pct"`
	MaxPnLPct      float64 `json:"max_pnl_pct"`
	AvgHoldCandles float64 `json:"avg_hold_candles"`
	AvgMAEPct      float64 `json:"avg_mae_pct"`
}

// NumericStats describes one numeric indicator across trade entries.
type NumericStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"stddev"`
}

// IndicatorStats holds the entry-time distribution of the indicators,
// split into numeric and categorical columns.
type IndicatorStats struct {
	Numeric     map[string]NumericStats   `json:"numeric"`
	Categorical map[string]map[string]int `json:"categorical"`
}

// IndicatorReport is the entry-indicator distribution overall and per side.
type IndicatorReport struct {
	Overall     IndicatorStats                     `json:"overall"`
	ByDirection map[model.Direction]IndicatorStats `json:"by_direction"`
}

func directionStats(trades []model.Trade) map[model.Direction]DirectionStats {
	out := make(map[model.Direction]DirectionStats, 2)
	for _, d := range []model.Direction{model.DirLong, model.DirShort} {
		var s DirectionStats
		var pnl, hold, mae float64
		for i := range trades {
			t := &trades[i]
			if t.Direction != d {
				continue
			}
			s.Count++
			pnl += t.PnLPct
			hold += float64(t.HoldCandles)
			mae += t.MAEPct
			if t.PnLPct > s.MaxPnLPct {
				s.MaxPnLPct = t.PnLPct
			}
		}
		if s.Count > 0 {
			n := float64(s.Count)
			s.SharePct = 100 * n / float64(len(trades))
			s.AvgPnLPct = pnl / n
			s.AvgHoldCandles = hold / n
			s.AvgMAEPct = mae / n
		}
		out[d] = s
	}
	return out
}

func indicatorReport(trades []model.Trade) IndicatorReport {
	rep := IndicatorReport{
		Overall:     indicatorStats(trades, model.DirNone),
		ByDirection: make(map[model.Direction]IndicatorStats, 2),
	}
	for _, d := range []model.Direction{model.DirLong, model.DirShort} {
		rep.ByDirection[d] = indicatorStats(trades, d)
	}
	return rep
}

// indicatorStats summarizes entry indicators of trades on side d, or of
// all trades when d is DirNone.
func indicatorStats(trades []model.Trade, d model.Direction) IndicatorStats {
	nums := make(map[string][]float64)
	cats := make(map[string]map[string]int)
	for i := range trades {
		t := &trades[i]
		if d != model.DirNone && t.Direction != d {
			continue
		}
		for name, v := range t.EntryIndicators {
			switch v.Kind {
			case model.KindNumeric:
				nums[name] = append(nums[name], v.Num)
			case model.KindCategorical:
				if cats[name] == nil {
					cats[name] = make(map[string]int)
				}
				cats[name][v.Str]++
			}
		}
	}

	st := IndicatorStats{
		Numeric:     make(map[string]NumericStats, len(nums)),
		Categorical: cats,
	}
	for name, xs := range nums {
		st.Numeric[name] = describe(xs)
	}
	return st
}

// describe sorts xs in place.
func describe(xs []float64) NumericStats {
	sort.Float64s(xs)
	n := len(xs)
	s := NumericStats{Count: n, Min: xs[0], Max: xs[n-1]}

	var sum float64
	for _, x := range xs {
		sum += x
	}
	s.Mean = sum / float64(n)

	if n%2 == 1 {
		s.Median = xs[n/2]
	} else {
		s.Median = (xs[n/2-1] + xs[n/2]) / 2
	}

	var ss float64
	for _, x := range xs {
		ss += (x - s.Mean) * (x - s.Mean)
	}
	s.StdDev = math.Sqrt(ss / float64(n))
	return s
}
