package optimal

import (
	"math"
	"testing"

	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/model"
)

func TestDescribe(t *testing.T) {
	s := describe([]float64{4, 1, 3, 2})
	if s.Count != 4 || s.Min != 1 || s.Max != 4 {
		t.Fatalf("unexpected bounds %+v", s)
	}
	if s.Mean != 2.5 || s.Median != 2.5 {
		t.Errorf("mean/median = %v/%v, want 2.5/2.5", s.Mean, s.Median)
	}
	if math.Abs(s.StdDev-math.Sqrt(1.25)) > 1e-12 {
		t.Errorf("stddev = %v", s.StdDev)
	}
}

func TestIndicatorReport(t *testing.T) {
	trades := []model.Trade{
		{Direction: model.DirLong, PnLPct: 2, EntryIndicators: map[string]model.Value{
			"rsi_14": model.Number(40), "volume_status": model.Category("spike"),
		}},
		{Direction: model.DirLong, PnLPct: 4, EntryIndicators: map[string]model.Value{
			"rsi_14": model.Number(60), "volume_status": model.Category("spike"),
		}},
		{Direction: model.DirShort, PnLPct: 3, EntryIndicators: map[string]model.Value{
			"rsi_14": model.Number(80), "volume_status": model.Category("normal"),
		}},
	}

	rep := indicatorReport(trades)
	if got := rep.Overall.Numeric["rsi_14"]; got.Count != 3 || got.Median != 60 {
		t.Errorf("overall rsi = %+v", got)
	}
	if got := rep.ByDirection[model.DirLong].Numeric["rsi_14"]; got.Mean != 50 {
		t.Errorf("long rsi mean = %v, want 50", got.Mean)
	}
	if got := rep.Overall.Categorical["volume_status"]; got["spike"] != 2 || got["normal"] != 1 {
		t.Errorf("volume frequencies = %v", got)
	}

	dirs := directionStats(trades)
	long := dirs[model.DirLong]
	if long.Count != 2 || long.AvgPnLPct != 3 || long.MaxPnLPct != 4 {
		t.Errorf("long stats = %+v", long)
	}
	if math.Abs(dirs[model.DirShort].SharePct-100.0/3) > 1e-9 {
		t.Errorf("short share = %v", dirs[model.DirShort].SharePct)
	}
}
