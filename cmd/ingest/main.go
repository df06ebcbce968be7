// cmd/ingest loads a CSV Market Series into SQLite so later backtests can
// read it by name.
//
// Usage:
//
//	go run ./cmd/ingest --data=data/btc_5m.csv --db=data/backtest.db --series=btc_5m
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/config"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/marketdata/csvfeed"
	sqlitestore "github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	cfg := config.Load()

	dataPath := flag.String("data", cfg.DataCSV, "CSV file to ingest")
	dbPath := flag.String("db", firstNonEmpty(cfg.SQLitePath, "data/backtest.db"), "Path to SQLite database")
	name := flag.String("series", cfg.SeriesName, "Series name (default: CSV file name)")
	flag.Parse()

	if *dataPath == "" {
		log.Fatal("[ingest] no CSV given (--data or DATA_CSV)")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	series, err := csvfeed.LoadFile(*dataPath)
	if err != nil {
		log.Fatalf("[ingest] load failed: %v", err)
	}
	if *name != "" {
		series.Name = *name
	}
	log.Printf("[ingest] parsed %s: %d candles, %d rows skipped, %d indicator columns",
		series.Name, series.Len(), series.Skipped, len(series.IndicatorNames()))

	w, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: *dbPath})
	if err != nil {
		log.Fatalf("[ingest] sqlite init failed: %v", err)
	}
	defer w.Close()

	if err := w.SaveSeries(ctx, series); err != nil {
		log.Fatalf("[ingest] store failed: %v", err)
	}
	log.Printf("[ingest] done")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
