// Package csvfeed loads a Market Series from a CSV file: one row per
// candle, a timestamp column, OHLCV, and any number of indicator columns.
//
// Bad rows are skipped and counted, never fatal. Only an unreadable file
// or a header missing a required column fails the load.
package csvfeed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/model"
)

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("csvfeed: missing required column")

var timeColumns = []string{"timestamp", "time", "date", "datetime", "open_time"}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// columns maps header names to record positions.
type columns struct {
	ts, open, high, low, close, volume int
	indicators                         map[int]string
	width                              int
}

func parseHeader(header []string) (columns, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}

	cols := columns{ts: -1, width: len(header), indicators: make(map[int]string)}
	for _, name := range timeColumns {
		if i, ok := idx[name]; ok {
			cols.ts = i
			break
		}
	}
	if cols.ts < 0 {
		return cols, fmt.Errorf("%w: timestamp", ErrMissingColumn)
	}

	for _, req := range []struct {
		name string
		dst  *int
	}{
		{"open", &cols.open}, {"high", &cols.high}, {"low", &cols.low},
		{"close", &cols.close}, {"volume", &cols.volume},
	} {
		i, ok := idx[req.name]
		if !ok {
			return cols, fmt.Errorf("%w: %s", ErrMissingColumn, req.name)
		}
		*req.dst = i
	}

	used := map[int]bool{cols.ts: true, cols.open: true, cols.high: true,
		cols.low: true, cols.close: true, cols.volume: true}
	for i, h := range header {
		if used[i] {
			continue
		}
		name := strings.TrimSpace(h)
		if name == "" {
			continue
		}
		cols.indicators[i] = name
	}
	return cols, nil
}

// Load reads a series from r. name labels the result.
func Load(r io.Reader, name string) (model.Series, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return model.Series{}, fmt.Errorf("csvfeed read header: %w", err)
	}
	cols, err := parseHeader(header)
	if err != nil {
		return model.Series{}, err
	}

	s := model.Series{Name: name, Candles: make([]model.Candle, 0, 1024)}
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				s.Skipped++
				continue
			}
			return s, fmt.Errorf("csvfeed read line %d: %w", line, err)
		}

		c, reason := parseRow(rec, cols)
		if reason == "" && len(s.Candles) > 0 && c.TS.Before(s.Candles[len(s.Candles)-1].TS) {
			reason = "timestamp regression"
		}
		if reason != "" {
			s.Skipped++
			slog.Debug("csvfeed row skipped", slog.Int("line", line), slog.String("reason", reason))
			continue
		}
		s.Candles = append(s.Candles, c)
	}

	if s.Skipped > 0 {
		slog.Warn("csvfeed rows skipped", slog.String("series", name), slog.Int("skipped", s.Skipped))
	}
	return s, nil
}

// LoadFile opens path and loads it. The series is named after the file.
func LoadFile(path string) (model.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Series{}, fmt.Errorf("csvfeed open: %w", err)
	}
	defer f.Close()
	return Load(f, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
}

// parseRow returns the candle or a non-empty reason the row is unusable.
func parseRow(rec []string, cols columns) (model.Candle, string) {
	if len(rec) != cols.width {
		return model.Candle{}, "column count"
	}
	ts, ok := ParseTime(rec[cols.ts])
	if !ok {
		return model.Candle{}, "bad timestamp"
	}

	var px [5]float64
	for k, i := range [5]int{cols.open, cols.high, cols.low, cols.close, cols.volume} {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return model.Candle{}, "non-finite ohlcv"
		}
		px[k] = v
	}
	c := model.Candle{TS: ts, Open: px[0], High: px[1], Low: px[2], Close: px[3], Volume: px[4]}
	switch {
	case c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0:
		return model.Candle{}, "non-positive price"
	case c.Low > c.High || c.Open < c.Low || c.Open > c.High || c.Close < c.Low || c.Close > c.High:
		return model.Candle{}, "inconsistent ohlc"
	case c.Volume < 0:
		return model.Candle{}, "negative volume"
	}

	c.Indicators = make(map[string]model.Value, len(cols.indicators))
	for i, name := range cols.indicators {
		if v, ok := model.ParseValue(strings.TrimSpace(rec[i])); ok {
			c.Indicators[name] = v
		}
	}
	return c, ""
}

// ParseTime accepts the supported text layouts and unix seconds or
// milliseconds. Times are returned in UTC.
func ParseTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > 1e11 || n < -1e11 {
			return time.UnixMilli(n).UTC(), true
		}
		return time.Unix(n, 0).UTC(), true
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
