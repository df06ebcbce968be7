// cmd/backtest runs a rule set against a Market Series, computes the
// hindsight optimal ledger over the same series, and writes both ledgers.
// Runs are journaled to SQLite and published to Redis when configured.
//
// Usage:
//
//	go run ./cmd/backtest --data=data/btc_5m.csv --rules=rules/v3.json --out=out
//	go run ./cmd/backtest --db=data/backtest.db --series=btc_5m --variants=rules/a.json,rules/b.json
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/config"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/backtest"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/logger"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/marketdata/source"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/metrics"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/model"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/notification"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/optimal"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/performance"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/report"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/rules"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/runner"
	redisstore "github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/store/redis"
	sqlitestore "github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	cfg := config.Load()

	// Flags (defaults from the environment)
	dataPath := flag.String("data", cfg.DataCSV, "CSV Market Series")
	dbPath := flag.String("db", cfg.SQLitePath, "SQLite database for stored series and the run journal")
	seriesName := flag.String("series", cfg.SeriesName, "Series name (stored series, or rename for CSV)")
	rulesPath := flag.String("rules", cfg.RulesPath, "Rule set JSON (default: built-in rule set)")
	variants := flag.String("variants", cfg.RuleVariants, "Comma-separated extra rule sets to compare")
	outDir := flag.String("out", cfg.OutputDir, "Output directory for ledgers")
	metricsFile := flag.String("metrics", cfg.MetricsFile, "Write Prometheus metrics to this textfile")
	webhook := flag.String("webhook", cfg.WebhookURL, "Webhook URL for run alerts")
	redisAddr := flag.String("redis", cfg.RedisAddr, "Redis address for run publishing (empty disables)")
	minProfit := flag.Float64("optimal-min-profit", cfg.OptimalMinProfitPct, "Optimal finder minimum profit, percent")
	maxHold := flag.Int("optimal-max-hold", cfg.OptimalMaxHold, "Optimal finder look-ahead, candles")
	optStart := flag.Int("optimal-start", cfg.OptimalStart, "Optimal finder start index (-1: rule set lookback)")
	noOptimal := flag.Bool("no-optimal", false, "Skip the optimal finder")
	logLevel := flag.String("log-level", cfg.LogLevel, "debug|info|warn|error")
	flag.Parse()

	base := logger.Init("backtest", logger.ParseLevel(*logLevel))
	runID := logger.NewRunID()

	// Setup context
	ctx, cancel := context.WithCancel(logger.WithRunID(context.Background(), runID))
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("[backtest] interrupted")
		cancel()
	}()

	lg := logger.ForRun(ctx, base)

	rs, err := loadRuleSet(*rulesPath)
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}

	series, err := source.Load(ctx, source.Config{
		CSVPath:    *dataPath,
		SQLitePath: *dbPath,
		SeriesName: *seriesName,
	})
	if err != nil {
		log.Fatalf("[backtest] load series: %v", err)
	}

	m := metrics.NewMetrics()
	r := &runner.Runner{Observers: m.Observer, Logger: lg}

	var finder *optimal.Finder
	if !*noOptimal {
		start := *optStart
		if start < 0 {
			start = rs.Entry.LookbackCandles
		}
		finder = &optimal.Finder{
			StartOffset:    start,
			MaxHoldCandles: *maxHold,
			MinProfitPct:   *minProfit,
			Logger:         lg,
		}
	}

	startedAt := time.Now().UTC()
	out, runErr := r.Run(ctx, series, rs, finder)
	if runErr != nil && !errors.Is(runErr, backtest.ErrCapitalUnderflow) {
		log.Fatalf("[backtest] run failed: %v", runErr)
	}
	m.RecordBacktest(rs.Version, out.Backtest, out.BacktestTook)
	if out.Optimal != nil {
		m.RecordOptimal(*out.Optimal, out.OptimalTook)
	}

	if err := writeLedgers(*outDir, out); err != nil {
		log.Fatalf("[backtest] write ledgers: %v", err)
	}
	printSummary(rs.Version, out.Backtest.Summary)

	cfg.RuleVariants = *variants
	if paths := cfg.ParseVariants(); len(paths) > 0 {
		if err := compareVariants(ctx, r, series, out, paths, *outDir); err != nil {
			log.Printf("[backtest] variants: %v", err)
		}
	}

	rec := report.RunRecord{
		RunID:          runID,
		Series:         series.Name,
		RuleSetVersion: rs.Version,
		StartedAt:      startedAt,
		Duration:       time.Since(startedAt),
		Backtest:       out.Backtest.Summary,
	}
	if out.Optimal != nil {
		rec.Optimal = &out.Optimal.Summary
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}

	if *dbPath != "" {
		journal(ctx, m, *dbPath, rec, out)
	}
	if *redisAddr != "" {
		publish(ctx, m, redisstore.Config{Addr: *redisAddr, Password: cfg.RedisPassword}, rec)
	}

	var notifier notification.Multi
	notifier = append(notifier, notification.NewLogNotifier())
	if *webhook != "" {
		notifier = append(notifier, notification.NewWebhookNotifier(*webhook))
	}
	if err := notifier.Send(ctx, notification.RunAlert(rec)); err != nil {
		log.Printf("[backtest] alert delivery: %v", err)
	}

	if *metricsFile != "" {
		if err := m.WriteTextfile(*metricsFile); err != nil {
			log.Printf("[backtest] metrics textfile: %v", err)
		}
	}

	if runErr != nil {
		log.Printf("[backtest] run halted: %v", runErr)
		os.Exit(1)
	}
	lg.Info("run complete", slog.String("series", series.Name), slog.String("rule_set", rs.Version))
}

func loadRuleSet(path string) (rules.RuleSet, error) {
	if path == "" {
		log.Println("[backtest] no rule set given, using built-in default")
		return rules.Default(), nil
	}
	rs, err := rules.Load(path)
	if err != nil {
		return rules.RuleSet{}, fmt.Errorf("load rules %s: %w", path, err)
	}
	return rs, nil
}

func writeLedgers(dir string, out runner.Outcome) error {
	ver := fileSafe(out.Backtest.RuleSetVersion)
	if err := report.WriteJSON(filepath.Join(dir, "backtest_"+ver+".json"), report.NewBacktestLedger(out.Backtest)); err != nil {
		return err
	}
	if err := report.WriteTradesCSVFile(filepath.Join(dir, "backtest_"+ver+"_trades.csv"), out.Backtest.Trades); err != nil {
		return err
	}
	if out.Optimal == nil {
		return nil
	}
	if err := report.WriteJSON(filepath.Join(dir, "optimal.json"), report.NewOptimalLedger(*out.Optimal)); err != nil {
		return err
	}
	return report.WriteTradesCSVFile(filepath.Join(dir, "optimal_trades.csv"), out.Optimal.Trades)
}

type variantRow struct {
	RuleSetVersion string  `json:"rule_set_version"`
	Trades         int     `json:"trades"`
	WinRate        float64 `json:"win_rate"`
	ReturnPct      float64 `json:"return_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	ProfitFactor   float64 `json:"profit_factor"`
	Halted         bool    `json:"halted,omitempty"`
	Error          string  `json:"error,omitempty"`
}

func compareVariants(ctx context.Context, r *runner.Runner, series model.Series, primary runner.Outcome, paths []string, dir string) error {
	extra := make([]rules.RuleSet, 0, len(paths))
	for _, p := range paths {
		rs, err := rules.Load(p)
		if err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
		extra = append(extra, rs)
	}

	rows, err := variantRows(ctx, r, series, primary, extra)
	if err != nil {
		return err
	}
	return report.WriteJSON(filepath.Join(dir, "variants.json"), rows)
}

// variantRows backtests the extra rule sets and returns one row per rule
// set, the primary first. The primary is not run again, so its observer
// counters are not doubled.
func variantRows(ctx context.Context, r *runner.Runner, series model.Series, primary runner.Outcome, extra []rules.RuleSet) ([]variantRow, error) {
	results, err := r.RunVariants(ctx, series, extra)
	if err != nil {
		return nil, err
	}

	all := make([]runner.Variant, 0, len(results)+1)
	all = append(all, runner.Variant{
		RuleSet: primary.Backtest.RuleSetVersion,
		Result:  primary.Backtest,
		Err:     primary.BacktestErr,
		Took:    primary.BacktestTook,
	})
	all = append(all, results...)

	rows := make([]variantRow, 0, len(all))
	for _, v := range all {
		s := v.Result.Summary
		row := variantRow{
			RuleSetVersion: v.RuleSet,
			Trades:         s.TotalTrades,
			WinRate:        s.WinRate,
			ReturnPct:      s.ReturnPct,
			MaxDrawdownPct: s.MaxDrawdownPct,
			ProfitFactor:   s.ProfitFactor,
			Halted:         s.Halted,
		}
		if v.Err != nil {
			row.Error = v.Err.Error()
		}
		rows = append(rows, row)
		log.Printf("[backtest] variant %-16s trades=%d win=%.1f%% return=%.2f%% dd=%.2f%% took=%s",
			v.RuleSet, s.TotalTrades, s.WinRate, s.ReturnPct, s.MaxDrawdownPct, v.Took)
	}
	return rows, nil
}

func journal(ctx context.Context, m *metrics.Metrics, dbPath string, rec report.RunRecord, out runner.Outcome) {
	w, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: dbPath})
	if err != nil {
		log.Printf("[backtest] sqlite journal disabled: %v", err)
		return
	}
	defer w.Close()

	if err := m.CheckSQLite(ctx, w.DB()); err != nil {
		log.Printf("[backtest] sqlite health: %v", err)
		return
	}

	var optimalTrades []model.Trade
	if out.Optimal != nil {
		optimalTrades = out.Optimal.Trades
	}
	if err := w.RecordRun(ctx, rec, out.Backtest.Trades, optimalTrades); err != nil {
		log.Printf("[backtest] journal run: %v", err)
		return
	}
	log.Printf("[backtest] run %s journaled to %s", rec.RunID, dbPath)
}

func publish(ctx context.Context, m *metrics.Metrics, cfg redisstore.Config, rec report.RunRecord) {
	pub, err := redisstore.New(cfg)
	if err != nil {
		m.DependencyUp.WithLabelValues("redis").Set(0)
		log.Printf("[backtest] redis disabled: %v", err)
		return
	}
	defer pub.Close()

	pub.Breaker().OnStateChange = func(from, to redisstore.State) {
		m.RedisBreakerState.Set(float64(to))
		log.Printf("[backtest] redis breaker %s -> %s", from, to)
	}
	pub.OnBuffer = func() { m.RedisBufferedWrites.Inc() }

	if err := m.CheckRedis(ctx, pub); err != nil {
		log.Printf("[backtest] redis health: %v", err)
	}

	prev, ok, err := pub.Latest(ctx, rec.Series, rec.RuleSetVersion)
	switch {
	case err != nil:
		log.Printf("[backtest] redis latest: %v", err)
	case ok:
		log.Printf("[backtest] previous run %s on %s: return %.2f%% -> %.2f%%",
			prev.RunID, prev.StartedAt.Format(time.RFC3339), prev.Backtest.ReturnPct, rec.Backtest.ReturnPct)
	}

	if err := pub.PublishRun(ctx, rec); err != nil {
		log.Printf("[backtest] redis publish: %v", err)
	}
	if n := pub.PendingCount(); n > 0 {
		log.Printf("[backtest] %d run records left unpublished", n)
	}
}

func printSummary(version string, s performance.Summary) {
	fmt.Printf("\n=== %s ===\n", version)
	fmt.Printf("trades        %d (%d wins, %d losses, %d open)\n", s.TotalTrades, s.Wins, s.Losses, s.OpenAtEnd)
	fmt.Printf("win rate      %.2f%%\n", s.WinRate)
	fmt.Printf("total pnl     %.2f%% (%.2f)\n", s.TotalPnLPct, s.TotalPnLValue)
	fmt.Printf("capital       %.2f -> %.2f (%.2f%%)\n", s.InitialCapital, s.FinalCapital, s.ReturnPct)
	fmt.Printf("max drawdown  %.2f%%\n", s.MaxDrawdownPct)
	fmt.Printf("profit factor %.2f\n", s.ProfitFactor)
	fmt.Printf("signals       %d accepted / %d evaluated, %d refused\n", s.SignalsAccepted, s.SignalsEvaluated, s.EntriesRefused)
	if s.Halted {
		fmt.Println("HALTED: capital underflow")
	}
}

func fileSafe(s string) string {
	if s == "" {
		return "unversioned"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, s)
}
