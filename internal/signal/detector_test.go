package signal

import (
	"reflect"
	"testing"
	"time"

	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/model"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/rules"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func makeCandle(i int, ind map[string]model.Value) model.Candle {
	return model.Candle{
		TS:         t0.Add(time.Duration(i) * 5 * time.Minute),
		Open:       100,
		High:       101,
		Low:        99,
		Close:      100,
		Volume:     10,
		Indicators: ind,
	}
}

// setupSeries returns n candles where the last one satisfies every default
// entry filter for dir.
func setupSeries(n int, dir model.Direction) []model.Candle {
	align, macd := 0.9, 0.5
	if dir == model.DirShort {
		align, macd = 0.1, -0.5
	}
	out := make([]model.Candle, n)
	for i := range out {
		out[i] = makeCandle(i, map[string]model.Value{
			"ribbon_alignment":   model.Number(0.5),
			"ribbon_compression": model.Number(0.2),
			"volume_status":      model.Category("normal"),
			"macd_histogram":     model.Number(0),
		})
	}
	out[n-3].Indicators["ribbon_compression"] = model.Number(0.8)
	last := out[n-1].Indicators
	last["ribbon_alignment"] = model.Number(align)
	last["volume_status"] = model.Category("spike")
	last["macd_histogram"] = model.Number(macd)
	return out
}

func TestEvaluate_InsufficientHistory(t *testing.T) {
	d := NewDetector(rules.Default())
	series := setupSeries(10, model.DirLong)

	sig := d.Evaluate(series, 4)
	if sig.IsSignal {
		t.Fatal("expected no signal near series start")
	}
	if sig.FailedReason != ReasonInsufficientHistory {
		t.Errorf("expected %q, got %q", ReasonInsufficientHistory, sig.FailedReason)
	}
}

func TestEvaluate_LongSignalFullScore(t *testing.T) {
	d := NewDetector(rules.Default())
	series := setupSeries(10, model.DirLong)

	sig := d.Evaluate(series, 9)
	if !sig.IsSignal {
		t.Fatalf("expected signal, failed with %q (score %.2f)", sig.FailedReason, sig.QualityScore)
	}
	if sig.Direction != model.DirLong {
		t.Errorf("expected long, got %s", sig.Direction)
	}
	if sig.QualityScore != 100 {
		t.Errorf("expected score 100, got %.4f", sig.QualityScore)
	}
	if len(sig.Factors) != 5 {
		t.Errorf("expected 5 scored factors, got %d", len(sig.Factors))
	}
	if v, ok := sig.Snapshot["ribbon_compression_recent_max"]; !ok || v.Num != 0.8 {
		t.Errorf("expected recent compression max 0.8 in snapshot, got %v", v)
	}
}

func TestEvaluate_ShortSignal(t *testing.T) {
	d := NewDetector(rules.Default())
	series := setupSeries(10, model.DirShort)

	sig := d.Evaluate(series, 9)
	if !sig.IsSignal || sig.Direction != model.DirShort {
		t.Fatalf("expected short signal, got %+v", sig)
	}
}

func TestEvaluate_MissingIndicatorFailsFilter(t *testing.T) {
	d := NewDetector(rules.Default())
	series := setupSeries(10, model.DirLong)
	delete(series[9].Indicators, "volume_status")

	sig := d.Evaluate(series, 9)
	if sig.IsSignal {
		t.Fatal("expected no signal with missing volume column")
	}
	if want := MissingReason("volume_status"); sig.FailedReason != want {
		t.Errorf("expected %q, got %q", want, sig.FailedReason)
	}
	// Earlier filters still scored.
	if sig.QualityScore <= 0 {
		t.Errorf("expected partial score, got %.2f", sig.QualityScore)
	}
}

func TestEvaluate_ShortCircuitOrder(t *testing.T) {
	d := NewDetector(rules.Default())
	series := setupSeries(10, model.DirLong)
	// Break compression and confirmation; compression comes first.
	for i := range series {
		series[i].Indicators["ribbon_compression"] = model.Number(0.1)
	}
	series[9].Indicators["macd_histogram"] = model.Number(-1)

	sig := d.Evaluate(series, 9)
	if sig.FailedReason != ReasonCompressionLow {
		t.Errorf("expected %q, got %q", ReasonCompressionLow, sig.FailedReason)
	}
}

func TestEvaluate_CompressionExcludesCurrentCandle(t *testing.T) {
	d := NewDetector(rules.Default())
	series := setupSeries(10, model.DirLong)
	for i := range series {
		series[i].Indicators["ribbon_compression"] = model.Number(0.1)
	}
	series[9].Indicators["ribbon_compression"] = model.Number(0.9)

	sig := d.Evaluate(series, 9)
	if sig.IsSignal || sig.FailedReason != ReasonCompressionLow {
		t.Fatalf("expected %q, got signal=%v reason=%q", ReasonCompressionLow, sig.IsSignal, sig.FailedReason)
	}
	if v := sig.Snapshot["ribbon_compression_recent_max"]; v.Num != 0.1 {
		t.Errorf("expected recent max 0.1 from preceding candles, got %v", v)
	}

	// The oldest candle of the window still counts.
	series[4].Indicators["ribbon_compression"] = model.Number(0.9)
	if sig := d.Evaluate(series, 9); !sig.IsSignal {
		t.Errorf("expected signal with compression at window start, got %q", sig.FailedReason)
	}
}

func TestEvaluate_LowQualityScore(t *testing.T) {
	rs := rules.Default()
	rs.Entry.MinQualityScore = 95
	d := NewDetector(rs)
	series := setupSeries(10, model.DirLong)
	series[7].Indicators["ribbon_compression"] = model.Number(0.5) // strength 1 -> 20 pts

	sig := d.Evaluate(series, 9)
	if sig.IsSignal {
		t.Fatal("expected rejection for low score")
	}
	if sig.FailedReason != ReasonLowQuality {
		t.Errorf("expected %q, got %q", ReasonLowQuality, sig.FailedReason)
	}
	if sig.QualityScore != 90 {
		t.Errorf("expected score 90, got %.4f", sig.QualityScore)
	}
}

func TestEvaluate_NoDirection(t *testing.T) {
	d := NewDetector(rules.Default())
	series := setupSeries(10, model.DirLong)
	series[9].Indicators["ribbon_alignment"] = model.Number(0.5)

	sig := d.Evaluate(series, 9)
	if sig.FailedReason != ReasonNoDirection || sig.Direction != model.DirNone {
		t.Errorf("expected no_direction/none, got %q/%s", sig.FailedReason, sig.Direction)
	}
}

func TestEvaluate_FlipDirection(t *testing.T) {
	rs := rules.Default()
	rs.Entry.Direction.RequireFlip = true
	d := NewDetector(rs)
	series := setupSeries(10, model.DirLong)

	sig := d.Evaluate(series, 9)
	if sig.FailedReason != MissingReason("ribbon_flip") {
		t.Fatalf("expected missing flip field, got %q", sig.FailedReason)
	}

	series[9].Indicators["ribbon_flip"] = model.Category("bullish")
	sig = d.Evaluate(series, 9)
	if !sig.IsSignal || sig.Direction != model.DirLong {
		t.Errorf("expected long signal from flip, got %+v", sig)
	}
}

func overrideRules() rules.RuleSet {
	rs := rules.Default()
	rs.Entry.Direction.Override.Enabled = true
	return rs
}

func TestEvaluate_OverrideBorderlineLong(t *testing.T) {
	d := NewDetector(overrideRules())
	series := setupSeries(10, model.DirLong)
	series[9].Indicators["ribbon_alignment"] = model.Number(0.75)
	series[9].Indicators["bull_acceleration"] = model.Number(0.8)

	sig := d.Evaluate(series, 9)
	if !sig.IsSignal {
		t.Fatalf("expected override signal, failed with %q", sig.FailedReason)
	}
	if sig.Direction != model.DirLong || !sig.Override {
		t.Errorf("expected long via override, got %s override=%v", sig.Direction, sig.Override)
	}
}

func TestEvaluate_OverrideBothSidesIsNoSignal(t *testing.T) {
	d := NewDetector(overrideRules())
	series := setupSeries(10, model.DirLong)
	series[9].Indicators["ribbon_alignment"] = model.Number(0.75)
	series[9].Indicators["bull_acceleration"] = model.Number(0.8)
	series[9].Indicators["bear_acceleration"] = model.Number(0.9)

	sig := d.Evaluate(series, 9)
	if sig.IsSignal {
		t.Fatal("expected no signal when both sides have override evidence")
	}
	if sig.FailedReason != ReasonConflictingOverride || sig.Direction != model.DirNone {
		t.Errorf("expected conflicting_override/none, got %q/%s", sig.FailedReason, sig.Direction)
	}
}

func TestEvaluate_OverrideNotBorderline(t *testing.T) {
	d := NewDetector(overrideRules())
	series := setupSeries(10, model.DirLong)
	series[9].Indicators["ribbon_alignment"] = model.Number(0.5)
	series[9].Indicators["bull_acceleration"] = model.Number(0.8)

	sig := d.Evaluate(series, 9)
	if sig.IsSignal || sig.FailedReason != ReasonNoDirection {
		t.Errorf("expected no_direction far from threshold, got %+v", sig)
	}
}

func TestEvaluate_NoLookAhead(t *testing.T) {
	d := NewDetector(rules.Default())
	full := setupSeries(20, model.DirLong)
	prefix := make([]model.Candle, 12)
	copy(prefix, full[:12])

	// Future candles differ wildly; they must not matter.
	for i := 12; i < 20; i++ {
		full[i].Indicators = map[string]model.Value{"ribbon_compression": model.Number(99)}
	}
	for i := 0; i < 12; i++ {
		a, b := d.Evaluate(full, i), d.Evaluate(prefix, i)
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("candle %d: signal depends on future data:\n%+v\n%+v", i, a, b)
		}
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	d := NewDetector(rules.Default())
	series := setupSeries(10, model.DirLong)
	first := d.Evaluate(series, 9)
	for n := 0; n < 5; n++ {
		if got := d.Evaluate(series, 9); !reflect.DeepEqual(first, got) {
			t.Fatalf("run %d differs: %+v vs %+v", n, first, got)
		}
	}
}

func TestEvaluate_IndexOutOfRange(t *testing.T) {
	d := NewDetector(rules.Default())
	sig := d.Evaluate(nil, 0)
	if sig.IsSignal || sig.FailedReason != ReasonIndexOutOfRange {
		t.Errorf("expected out-of-range rejection, got %+v", sig)
	}
}

func TestFilters_Order(t *testing.T) {
	rs := rules.Default()
	rs.Entry.RSIRange.Enabled = true
	got := NewDetector(rs).Filters()
	want := []string{"history", "direction", "compression", "alignment", "volume_state", "confirmation", "rsi_range"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestReadDirection(t *testing.T) {
	r := rules.Default().Entry.Direction
	c := makeCandle(0, map[string]model.Value{"ribbon_alignment": model.Number(0.15)})
	if dir, ok := ReadDirection(r, &c); !ok || dir != model.DirShort {
		t.Errorf("expected short, got %s ok=%v", dir, ok)
	}
	empty := makeCandle(0, nil)
	if _, ok := ReadDirection(r, &empty); ok {
		t.Error("expected ok=false for missing alignment")
	}
}
