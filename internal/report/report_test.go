package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/backtest"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/model"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/optimal"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/performance"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func sampleTrades() []model.Trade {
	return []model.Trade{
		{
			Direction: model.DirLong, EntryTime: t0, ExitTime: t0.Add(15 * time.Minute),
			EntryIndex: 5, ExitIndex: 8, EntryPrice: 100, ExitPrice: 102,
			PnLPct: 2, NetPnLPct: 1.9, PnLValue: 19, SizeValue: 1000, HoldCandles: 3,
			ExitReason: model.ExitTakeProfit, PeakFavorablePct: 2, EntryQuality: 85,
			EntryIndicators: map[string]model.Value{"volume_status": model.Category("spike")},
		},
		{
			Direction: model.DirShort, EntryTime: t0.Add(time.Hour), ExitTime: t0.Add(2 * time.Hour),
			EntryIndex: 17, ExitIndex: 29, EntryPrice: 101, ExitPrice: 102.01,
			PnLPct: -1, NetPnLPct: -1.1, PnLValue: -11.2, SizeValue: 1018, HoldCandles: 12,
			ExitReason: model.ExitStopLoss, MAEPct: 1, EntryQuality: 70,
		},
	}
}

func TestNewBacktestLedger_EmptyIsArray(t *testing.T) {
	l := NewBacktestLedger(backtest.Result{RuleSetVersion: "v1"})
	var buf bytes.Buffer
	if err := EncodeJSON(&buf, l); err != nil {
		t.Fatalf("EncodeJSON: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"trades": []`) {
		t.Errorf("expected empty trades array, got:\n%s", out)
	}
	if !strings.Contains(out, `"open_positions": []`) {
		t.Errorf("expected empty open positions array, got:\n%s", out)
	}
}

func TestEncodeJSON_Deterministic(t *testing.T) {
	trades := sampleTrades()
	l := NewBacktestLedger(backtest.Result{
		RuleSetVersion: "v1",
		Trades:         trades,
		Summary:        performance.Summarize(trades),
	})

	var a, b bytes.Buffer
	if err := EncodeJSON(&a, l); err != nil {
		t.Fatal(err)
	}
	if err := EncodeJSON(&b, l); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatal("encoding is not deterministic")
	}

	var back BacktestLedger
	if err := json.Unmarshal(a.Bytes(), &back); err != nil {
		t.Fatalf("ledger does not decode: %v", err)
	}
	if back.Trades[0].EntryIndicators["volume_status"].Str != "spike" {
		t.Errorf("indicator snapshot lost: %+v", back.Trades[0].EntryIndicators)
	}
}

func TestWriteTradesCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTradesCSV(&buf, sampleTrades()); err != nil {
		t.Fatalf("WriteTradesCSV: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("csv does not parse: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "direction" || len(rows[0]) != len(tradeHeader) {
		t.Errorf("unexpected header %v", rows[0])
	}
	if rows[1][12] != "take_profit" || rows[2][12] != "stop_loss" {
		t.Errorf("exit reasons = %q, %q", rows[1][12], rows[2][12])
	}
	if rows[2][8] != "-1.1" {
		t.Errorf("net pnl = %q, want -1.1", rows[2][8])
	}
}

func TestWriteJSON_CreatesDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "nested", "optimal.json")
	l := NewOptimalLedger(optimal.Result{})
	if err := WriteJSON(path, l); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(data), "\n") {
		t.Error("expected trailing newline")
	}
	if !strings.Contains(string(data), `"trades": []`) {
		t.Errorf("expected empty trades array, got:\n%s", data)
	}
}
