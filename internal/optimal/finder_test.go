package optimal

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/model"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func makeCandle(i int, open, high, low, close float64) model.Candle {
	return model.Candle{
		TS:    t0.Add(time.Duration(i) * 5 * time.Minute),
		Open:  open,
		High:  high,
		Low:   low,
		Close: close,
	}
}

// risingSeries is one flat candle at 100 followed by n candles climbing
// monotonically to 100+gain.
func risingSeries(n int, gain float64) model.Series {
	s := model.Series{Name: "rally"}
	s.Candles = append(s.Candles, makeCandle(0, 100, 100, 100, 100))
	prev := 100.0
	for k := 1; k <= n; k++ {
		c := 100 + gain*float64(k)/float64(n)
		s.Candles = append(s.Candles, makeCandle(k, prev, c, prev, c))
		prev = c
	}
	return s
}

func TestFind_SingleTradeOverRally(t *testing.T) {
	f := Finder{MaxHoldCandles: 24, MinProfitPct: 1.0}
	res := f.Find(risingSeries(24, 5))

	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.Direction != model.DirLong {
		t.Errorf("direction = %s, want long", tr.Direction)
	}
	if tr.EntryIndex != 0 || tr.ExitIndex != 24 {
		t.Errorf("trade %d->%d, want 0->24", tr.EntryIndex, tr.ExitIndex)
	}
	if math.Abs(tr.PnLPct-5) > 1e-9 {
		t.Errorf("pnl = %.6f, want 5", tr.PnLPct)
	}
	if tr.ExitReason != model.ExitTakeProfit {
		t.Errorf("exit reason = %s", tr.ExitReason)
	}
	if tr.MAEPct != 0 {
		t.Errorf("mae = %.4f, want 0 on a monotonic rally", tr.MAEPct)
	}
}

func TestFind_BelowMinProfit(t *testing.T) {
	f := Finder{MaxHoldCandles: 24, MinProfitPct: 10}
	res := f.Find(risingSeries(24, 5))
	if len(res.Trades) != 0 {
		t.Fatalf("expected no trades, got %d", len(res.Trades))
	}
	if res.Summary.TotalTrades != 0 || res.Summary.WinRate != 0 {
		t.Errorf("unexpected summary %+v", res.Summary)
	}
}

func TestFind_TieGoesLong(t *testing.T) {
	s := model.Series{Candles: []model.Candle{
		makeCandle(0, 100, 100, 100, 100),
		makeCandle(1, 100, 102, 98, 100),
	}}
	res := Finder{MaxHoldCandles: 5, MinProfitPct: 1}.Find(s)
	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}
	if res.Trades[0].Direction != model.DirLong {
		t.Errorf("direction = %s, want long on a tie", res.Trades[0].Direction)
	}
}

func TestFind_ShortWhenDropIsLarger(t *testing.T) {
	s := model.Series{Candles: []model.Candle{
		makeCandle(0, 100, 100, 100, 100),
		makeCandle(1, 100, 101, 99, 99),
		makeCandle(2, 99, 99, 95, 95),
	}}
	res := Finder{MaxHoldCandles: 5, MinProfitPct: 1}.Find(s)
	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.Direction != model.DirShort || tr.ExitIndex != 2 || tr.ExitPrice != 95 {
		t.Errorf("got %s exit %d @ %.2f, want short exit 2 @ 95", tr.Direction, tr.ExitIndex, tr.ExitPrice)
	}
	if math.Abs(tr.MAEPct-1) > 1e-9 {
		t.Errorf("mae = %.4f, want 1", tr.MAEPct)
	}
}

func TestFind_MAEBeforeExtreme(t *testing.T) {
	s := model.Series{Candles: []model.Candle{
		makeCandle(0, 100, 100, 100, 100),
		makeCandle(1, 100, 100, 97, 98),
		makeCandle(2, 98, 110, 98, 109),
		makeCandle(3, 109, 109, 90, 91),
	}}
	res := Finder{MaxHoldCandles: 5, MinProfitPct: 1}.Find(s)
	if len(res.Trades) == 0 {
		t.Fatal("expected a trade")
	}
	tr := res.Trades[0]
	if tr.Direction != model.DirLong || tr.ExitIndex != 2 {
		t.Fatalf("got %s exit %d, want long exit 2", tr.Direction, tr.ExitIndex)
	}
	if math.Abs(tr.MAEPct-3) > 1e-9 {
		t.Errorf("mae = %.4f, want 3", tr.MAEPct)
	}
}

func TestFind_EarliestExtremeOnTies(t *testing.T) {
	s := model.Series{Candles: []model.Candle{
		makeCandle(0, 100, 100, 100, 100),
		makeCandle(1, 100, 103, 100, 102),
		makeCandle(2, 102, 103, 101, 102),
	}}
	res := Finder{MaxHoldCandles: 5, MinProfitPct: 1}.Find(s)
	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}
	if res.Trades[0].ExitIndex != 1 {
		t.Errorf("exit index = %d, want earliest extreme 1", res.Trades[0].ExitIndex)
	}
}

func TestFind_NeverOverlaps(t *testing.T) {
	s := model.Series{}
	for i := 0; i < 300; i++ {
		c := 100 + 4*math.Sin(float64(i)/7) + math.Cos(float64(i)/2)
		s.Candles = append(s.Candles, makeCandle(i, c, c*1.003, c*0.997, c))
	}
	res := Finder{StartOffset: 5, MaxHoldCandles: 12, MinProfitPct: 0.5}.Find(s)
	if len(res.Trades) < 2 {
		t.Fatalf("expected several trades, got %d", len(res.Trades))
	}
	if res.Trades[0].EntryIndex < 5 {
		t.Errorf("first entry %d before start offset", res.Trades[0].EntryIndex)
	}
	for k := 1; k < len(res.Trades); k++ {
		prev, cur := res.Trades[k-1], res.Trades[k]
		if cur.EntryIndex <= prev.ExitIndex {
			t.Fatalf("trade %d enters at %d before previous exit %d", k, cur.EntryIndex, prev.ExitIndex)
		}
		if cur.HoldCandles > 12 {
			t.Errorf("trade %d held %d candles", k, cur.HoldCandles)
		}
	}
}

func TestFinderValidate(t *testing.T) {
	if err := (Finder{MaxHoldCandles: 24, MinProfitPct: 1}).Validate(); err != nil {
		t.Fatalf("valid finder rejected: %v", err)
	}
	for _, f := range []Finder{
		{MaxHoldCandles: 0, MinProfitPct: 1},
		{MaxHoldCandles: -3, MinProfitPct: 1},
		{MaxHoldCandles: 24, MinProfitPct: -0.5},
	} {
		if err := f.Validate(); !errors.Is(err, ErrInvalidFinder) {
			t.Errorf("%+v: expected ErrInvalidFinder, got %v", f, err)
		}
	}
}
