package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/model"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/performance"

	_ "github.com/mattn/go-sqlite3"
)

// ErrSeriesNotFound is returned when no series of the requested name exists.
var ErrSeriesNotFound = errors.New("sqlite: series not found")

// Reader provides read-only access to stored series and the run journal.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// SeriesInfo describes a stored series.
type SeriesInfo struct {
	Name     string    `json:"name"`
	Candles  int       `json:"candles"`
	Skipped  int       `json:"skipped"`
	LoadedAt time.Time `json:"loaded_at"`
}

// ListSeries returns every stored series, by name.
func (r *Reader) ListSeries(ctx context.Context) ([]SeriesInfo, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, candles, skipped, loaded_at FROM series ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query series: %w", err)
	}
	defer rows.Close()

	var out []SeriesInfo
	for rows.Next() {
		var s SeriesInfo
		var loaded int64
		if err := rows.Scan(&s.Name, &s.Candles, &s.Skipped, &loaded); err != nil {
			return nil, fmt.Errorf("sqlite scan series: %w", err)
		}
		s.LoadedAt = time.Unix(loaded, 0).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

// ReadSeries loads a stored series in sequence order.
func (r *Reader) ReadSeries(ctx context.Context, name string) (model.Series, error) {
	s := model.Series{Name: name}
	err := r.db.QueryRowContext(ctx, `SELECT skipped FROM series WHERE name = ?`, name).Scan(&s.Skipped)
	if errors.Is(err, sql.ErrNoRows) {
		return s, fmt.Errorf("%w: %s", ErrSeriesNotFound, name)
	}
	if err != nil {
		return s, fmt.Errorf("sqlite read series %s: %w", name, err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume, indicators
		FROM candles
		WHERE series = ?
		ORDER BY seq ASC
	`, name)
	if err != nil {
		return s, fmt.Errorf("sqlite query candles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c model.Candle
		var tsMilli int64
		var ind sql.NullString
		if err := rows.Scan(&tsMilli, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &ind); err != nil {
			return s, fmt.Errorf("sqlite scan candles: %w", err)
		}
		c.TS = time.UnixMilli(tsMilli).UTC()
		if ind.Valid && ind.String != "" {
			if err := json.Unmarshal([]byte(ind.String), &c.Indicators); err != nil {
				return s, fmt.Errorf("sqlite decode indicators: %w", err)
			}
		}
		s.Candles = append(s.Candles, c)
	}
	return s, rows.Err()
}

// RunRow is a journaled run.
type RunRow struct {
	RunID      string               `json:"run_id"`
	Series     string               `json:"series"`
	RuleSet    string               `json:"rule_set"`
	StartedAt  time.Time            `json:"started_at"`
	DurationMs int64                `json:"duration_ms"`
	Backtest   performance.Summary  `json:"backtest"`
	Optimal    *performance.Summary `json:"optimal,omitempty"`
	Error      string               `json:"error,omitempty"`
}

// RecentRuns returns the last limit runs, newest first.
func (r *Reader) RecentRuns(ctx context.Context, limit int) ([]RunRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT run_id, series, rule_set, started_at, duration_ms, backtest, optimal, error
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var row RunRow
		var started int64
		var bt string
		var opt, errText sql.NullString
		if err := rows.Scan(&row.RunID, &row.Series, &row.RuleSet, &started,
			&row.DurationMs, &bt, &opt, &errText); err != nil {
			return nil, fmt.Errorf("sqlite scan runs: %w", err)
		}
		row.StartedAt = time.UnixMilli(started).UTC()
		row.Error = errText.String
		if err := json.Unmarshal([]byte(bt), &row.Backtest); err != nil {
			return nil, fmt.Errorf("sqlite decode backtest summary: %w", err)
		}
		if opt.Valid {
			row.Optimal = &performance.Summary{}
			if err := json.Unmarshal([]byte(opt.String), row.Optimal); err != nil {
				return nil, fmt.Errorf("sqlite decode optimal summary: %w", err)
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// RunTrades returns the journaled trades of one run and kind, in ledger
// order. Indicator snapshots are not journaled.
func (r *Reader) RunTrades(ctx context.Context, runID, kind string) ([]model.Trade, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT direction, entry_ts, exit_ts, entry_index, exit_index, entry_price, exit_price,
			pnl_pct, net_pnl_pct, pnl_value, hold_candles, exit_reason
		FROM trades WHERE run_id = ? AND kind = ? ORDER BY seq ASC
	`, runID, kind)
	if err != nil {
		return nil, fmt.Errorf("sqlite query trades: %w", err)
	}
	defer rows.Close()

	var out []model.Trade
	for rows.Next() {
		var t model.Trade
		var dir, reason string
		var entryMs, exitMs int64
		if err := rows.Scan(&dir, &entryMs, &exitMs, &t.EntryIndex, &t.ExitIndex,
			&t.EntryPrice, &t.ExitPrice, &t.PnLPct, &t.NetPnLPct, &t.PnLValue,
			&t.HoldCandles, &reason); err != nil {
			return nil, fmt.Errorf("sqlite scan trades: %w", err)
		}
		t.Direction = model.Direction(dir)
		t.ExitReason = model.ExitReason(reason)
		t.EntryTime = time.UnixMilli(entryMs).UTC()
		t.ExitTime = time.UnixMilli(exitMs).UTC()
		t.HoldDuration = t.ExitTime.Sub(t.EntryTime)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
