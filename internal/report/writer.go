package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/model"
)

// EncodeJSON writes v as indented JSON followed by a newline.
func EncodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("report encode: %w", err)
	}
	return nil
}

// WriteJSON writes v to path, creating parent directories.
func WriteJSON(path string, v any) error {
	return writeFile(path, func(w io.Writer) error { return EncodeJSON(w, v) })
}

var tradeHeader = []string{
	"direction", "entry_time", "exit_time", "entry_index", "exit_index",
	"entry_price", "exit_price", "pnl_pct", "net_pnl_pct", "pnl_value",
	"size_value", "hold_candles", "exit_reason", "peak_favorable_pct",
	"mae_pct", "entry_quality",
}

// WriteTradesCSV writes one row per trade.
func WriteTradesCSV(w io.Writer, trades []model.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradeHeader); err != nil {
		return fmt.Errorf("report csv header: %w", err)
	}
	for i := range trades {
		t := &trades[i]
		err := cw.Write([]string{
			string(t.Direction),
			t.EntryTime.Format(time.RFC3339),
			t.ExitTime.Format(time.RFC3339),
			strconv.Itoa(t.EntryIndex),
			strconv.Itoa(t.ExitIndex),
			formatF(t.EntryPrice),
			formatF(t.ExitPrice),
			formatF(t.PnLPct),
			formatF(t.NetPnLPct),
			formatF(t.PnLValue),
			formatF(t.SizeValue),
			strconv.Itoa(t.HoldCandles),
			string(t.ExitReason),
			formatF(t.PeakFavorablePct),
			formatF(t.MAEPct),
			formatF(t.EntryQuality),
		})
		if err != nil {
			return fmt.Errorf("report csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTradesCSVFile writes trades to a CSV file at path.
func WriteTradesCSVFile(path string, trades []model.Trade) error {
	return writeFile(path, func(w io.Writer) error { return WriteTradesCSV(w, trades) })
}

func writeFile(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("report mkdir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report create: %w", err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
