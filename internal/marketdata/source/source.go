// Package source resolves where a run's Market Series comes from: a CSV
// file, or a series previously ingested into SQLite.
package source

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/marketdata/csvfeed"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/model"
	sqlitestore "github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/store/sqlite"
)

// ErrNoSource is returned when neither a CSV file nor a stored series is
// configured.
var ErrNoSource = errors.New("source: no CSV path or stored series configured")

// Config selects the series. CSVPath wins when both are set.
type Config struct {
	CSVPath    string
	SQLitePath string
	SeriesName string // stored series name; also renames a CSV series
}

// Load reads the series and logs what was loaded.
func Load(ctx context.Context, cfg Config) (model.Series, error) {
	var (
		s   model.Series
		err error
	)
	switch {
	case cfg.CSVPath != "":
		s, err = csvfeed.LoadFile(cfg.CSVPath)
		if err == nil && cfg.SeriesName != "" {
			s.Name = cfg.SeriesName
		}
	case cfg.SQLitePath != "" && cfg.SeriesName != "":
		s, err = fromSQLite(ctx, cfg.SQLitePath, cfg.SeriesName)
	default:
		return model.Series{}, ErrNoSource
	}
	if err != nil {
		return model.Series{}, err
	}

	if s.Len() == 0 {
		log.Printf("[source] series %s has no usable candles (%d rows skipped)", s.Name, s.Skipped)
		return s, nil
	}
	log.Printf("[source] loaded %s: %d candles %s .. %s, %d rows skipped",
		s.Name, s.Len(), s.Candles[0].TS.Format("2006-01-02 15:04"),
		s.Candles[s.Len()-1].TS.Format("2006-01-02 15:04"), s.Skipped)
	return s, nil
}

func fromSQLite(ctx context.Context, path, name string) (model.Series, error) {
	reader, err := sqlitestore.NewReader(path)
	if err != nil {
		return model.Series{}, err
	}
	defer reader.Close()

	s, err := reader.ReadSeries(ctx, name)
	if err != nil {
		return model.Series{}, fmt.Errorf("source: %w", err)
	}
	return s, nil
}
