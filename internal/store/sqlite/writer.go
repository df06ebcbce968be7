// Package sqlite persists Market Series and the run journal in a local
// SQLite database, so ingestion and simulation can run as separate steps.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/model"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/report"

	_ "github.com/mattn/go-sqlite3"
)

const defaultBatchSize = 500

// Trade kinds stored in the journal.
const (
	KindBacktest = "backtest"
	KindOptimal  = "optimal"
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/backtest.db"
}

// Writer is a single-connection SQLite writer.
type Writer struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New opens the database in WAL mode and creates the schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", dsn(cfg.DBPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db}, nil
}

func dsn(path string) string {
	return path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS series (
			name       TEXT    PRIMARY KEY,
			candles    INTEGER NOT NULL,
			skipped    INTEGER NOT NULL,
			loaded_at  INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS candles (
			series     TEXT    NOT NULL,
			seq        INTEGER NOT NULL,
			ts         INTEGER NOT NULL,
			open       REAL    NOT NULL,
			high       REAL    NOT NULL,
			low        REAL    NOT NULL,
			close      REAL    NOT NULL,
			volume     REAL    NOT NULL,
			indicators TEXT,
			PRIMARY KEY (series, seq)
		);

		CREATE TABLE IF NOT EXISTS runs (
			run_id     TEXT    PRIMARY KEY,
			series     TEXT    NOT NULL,
			rule_set   TEXT    NOT NULL,
			started_at INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			backtest   TEXT    NOT NULL,
			optimal    TEXT,
			error      TEXT
		);

		CREATE TABLE IF NOT EXISTS trades (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id       TEXT    NOT NULL,
			kind         TEXT    NOT NULL,
			seq          INTEGER NOT NULL,
			direction    TEXT    NOT NULL,
			entry_ts     INTEGER NOT NULL,
			exit_ts      INTEGER NOT NULL,
			entry_index  INTEGER NOT NULL,
			exit_index   INTEGER NOT NULL,
			entry_price  REAL    NOT NULL,
			exit_price   REAL    NOT NULL,
			pnl_pct      REAL    NOT NULL,
			net_pnl_pct  REAL    NOT NULL,
			pnl_value    REAL    NOT NULL,
			hold_candles INTEGER NOT NULL,
			exit_reason  TEXT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id, kind, seq);
		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`)
	return err
}

// SaveSeries replaces the stored series of the same name. Candles are
// inserted in batched transactions.
func (w *Writer) SaveSeries(ctx context.Context, s model.Series) error {
	if s.Name == "" {
		return fmt.Errorf("sqlite save series: empty name")
	}
	start := time.Now()

	if _, err := w.db.ExecContext(ctx, `DELETE FROM candles WHERE series = ?`, s.Name); err != nil {
		return fmt.Errorf("sqlite clear series %s: %w", s.Name, err)
	}
	for from := 0; from < len(s.Candles); from += defaultBatchSize {
		to := from + defaultBatchSize
		if to > len(s.Candles) {
			to = len(s.Candles)
		}
		if err := w.insertBatch(ctx, s.Name, from, s.Candles[from:to]); err != nil {
			return fmt.Errorf("sqlite insert series %s: %w", s.Name, err)
		}
	}

	_, err := w.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO series (name, candles, skipped, loaded_at)
		VALUES (?, ?, ?, ?)
	`, s.Name, len(s.Candles), s.Skipped, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("sqlite upsert series %s: %w", s.Name, err)
	}

	log.Printf("[sqlite] stored series %s: %d candles in %v", s.Name, len(s.Candles), time.Since(start))
	return nil
}

// insertBatch inserts candles in a single transaction. offset is the
// sequence number of the first candle.
func (w *Writer) insertBatch(ctx context.Context, series string, offset int, candles []model.Candle) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (series, seq, ts, open, high, low, close, volume, indicators)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range candles {
		c := &candles[i]
		ind, err := json.Marshal(c.Indicators)
		if err != nil {
			tx.Rollback()
			return err
		}
		_, err = stmt.ExecContext(ctx, series, offset+i, c.TS.UnixMilli(),
			c.Open, c.High, c.Low, c.Close, c.Volume, string(ind))
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// RecordRun journals a run and its trades in one transaction.
func (w *Writer) RecordRun(ctx context.Context, rec report.RunRecord, backtest, optimal []model.Trade) error {
	bt, err := json.Marshal(rec.Backtest)
	if err != nil {
		return fmt.Errorf("marshal backtest summary: %w", err)
	}
	var opt sql.NullString
	if rec.Optimal != nil {
		b, err := json.Marshal(rec.Optimal)
		if err != nil {
			return fmt.Errorf("marshal optimal summary: %w", err)
		}
		opt = sql.NullString{String: string(b), Valid: true}
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, series, rule_set, started_at, duration_ms, backtest, optimal, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.RunID, rec.Series, rec.RuleSetVersion, rec.StartedAt.UnixMilli(),
		rec.Duration.Milliseconds(), string(bt), opt, rec.Error)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (run_id, kind, seq, direction, entry_ts, exit_ts, entry_index, exit_index,
			entry_price, exit_price, pnl_pct, net_pnl_pct, pnl_value, hold_candles, exit_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite prepare trades: %w", err)
	}
	defer stmt.Close()

	for _, set := range []struct {
		kind   string
		trades []model.Trade
	}{{KindBacktest, backtest}, {KindOptimal, optimal}} {
		for i := range set.trades {
			t := &set.trades[i]
			_, err := stmt.ExecContext(ctx, rec.RunID, set.kind, i, string(t.Direction),
				t.EntryTime.UnixMilli(), t.ExitTime.UnixMilli(), t.EntryIndex, t.ExitIndex,
				t.EntryPrice, t.ExitPrice, t.PnLPct, t.NetPnLPct, t.PnLValue, t.HoldCandles,
				string(t.ExitReason))
			if err != nil {
				tx.Rollback()
				return fmt.Errorf("sqlite insert trade %s/%d: %w", set.kind, i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit run: %w", err)
	}
	log.Printf("[sqlite] journaled run %s (%d backtest, %d optimal trades)", rec.RunID, len(backtest), len(optimal))
	return nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
