// Package metrics records simulation runs as Prometheus metrics on a
// private registry. Runs are short-lived, so metrics are exported as a
// node-exporter textfile instead of being served.
package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/backtest"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/model"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/optimal"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/signal"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for backtest runs.
type Metrics struct {
	reg *prometheus.Registry

	CandlesTotal   *prometheus.CounterVec // labels: rule_set
	SignalsTotal   *prometheus.CounterVec // labels: rule_set, outcome=accepted|rejected
	RejectsTotal   *prometheus.CounterVec // labels: rule_set, reason
	EntriesRefused *prometheus.CounterVec // labels: rule_set
	TradesTotal    *prometheus.CounterVec // labels: rule_set, exit_reason
	TradePnL       *prometheus.HistogramVec
	OptimalTrades  *prometheus.CounterVec // labels: direction
	SkippedRows    prometheus.Gauge
	FinalCapital   *prometheus.GaugeVec     // labels: rule_set
	MaxDrawdownPct *prometheus.GaugeVec     // labels: rule_set
	RunDuration    *prometheus.HistogramVec // labels: kind=backtest|optimal
	RunsHalted     prometheus.Counter

	// Backing services
	DependencyUp        *prometheus.GaugeVec // labels: dependency
	DependencyLatency   *prometheus.GaugeVec // labels: dependency
	RedisBreakerState   prometheus.Gauge     // 0=closed, 1=open, 2=half-open
	RedisBufferedWrites prometheus.Counter
}

// NewMetrics registers and returns all metrics on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),

		CandlesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_candles_total",
			Help: "Candles processed by the simulation engine",
		}, []string{"rule_set"}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_signals_total",
			Help: "Entry evaluations by outcome",
		}, []string{"rule_set", "outcome"}),
		RejectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_signal_rejects_total",
			Help: "Rejected entry evaluations by failed filter",
		}, []string{"rule_set", "reason"}),
		EntriesRefused: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_entries_refused_total",
			Help: "Accepted signals refused for lack of free capital",
		}, []string{"rule_set"}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_trades_total",
			Help: "Closed trades by exit reason",
		}, []string{"rule_set", "exit_reason"}),
		TradePnL: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "backtest_trade_net_pnl_pct",
			Help:    "Net P&L percentage of closed trades",
			Buckets: []float64{-5, -2, -1, -0.5, 0, 0.5, 1, 2, 5},
		}, []string{"rule_set"}),
		OptimalTrades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optimal_trades_total",
			Help: "Optimal trades found by direction",
		}, []string{"direction"}),
		SkippedRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backtest_skipped_rows",
			Help: "Malformed input rows skipped while loading the series",
		}),
		FinalCapital: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "backtest_final_capital",
			Help: "Capital balance at the end of the run",
		}, []string{"rule_set"}),
		MaxDrawdownPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "backtest_max_drawdown_pct",
			Help: "Largest peak-to-trough decline of the capital curve",
		}, []string{"rule_set"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "backtest_run_duration_seconds",
			Help:    "Wall time of a simulation pass",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"kind"}),
		RunsHalted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_runs_halted_total",
			Help: "Runs halted by capital underflow",
		}),

		DependencyUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "backtest_dependency_up",
			Help: "Whether a backing service answered its probe (1) or not (0)",
		}, []string{"dependency"}),
		DependencyLatency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "backtest_dependency_latency_seconds",
			Help: "Latency of the last dependency probe",
		}, []string{"dependency"}),
		RedisBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backtest_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisBufferedWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_redis_buffered_writes_total",
			Help: "Run records buffered while Redis was unavailable",
		}),
	}

	m.reg.MustRegister(
		m.CandlesTotal,
		m.SignalsTotal,
		m.RejectsTotal,
		m.EntriesRefused,
		m.TradesTotal,
		m.TradePnL,
		m.OptimalTrades,
		m.SkippedRows,
		m.FinalCapital,
		m.MaxDrawdownPct,
		m.RunDuration,
		m.RunsHalted,
		m.DependencyUp,
		m.DependencyLatency,
		m.RedisBreakerState,
		m.RedisBufferedWrites,
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Observer returns a backtest observer that feeds the counters of one
// rule set. Counters are safe for concurrent runs.
func (m *Metrics) Observer(ruleSet string) backtest.Observer {
	return &runObserver{
		candles:  m.CandlesTotal.WithLabelValues(ruleSet),
		accepted: m.SignalsTotal.WithLabelValues(ruleSet, "accepted"),
		rejected: m.SignalsTotal.WithLabelValues(ruleSet, "rejected"),
		rejects:  m.RejectsTotal.MustCurryWith(prometheus.Labels{"rule_set": ruleSet}),
		refused:  m.EntriesRefused.WithLabelValues(ruleSet),
		trades:   m.TradesTotal.MustCurryWith(prometheus.Labels{"rule_set": ruleSet}),
		pnl:      m.TradePnL.WithLabelValues(ruleSet),
	}
}

type runObserver struct {
	candles, accepted, rejected, refused prometheus.Counter
	rejects, trades                      *prometheus.CounterVec
	pnl                                  prometheus.Observer
}

func (o *runObserver) OnCandle(int) { o.candles.Inc() }

func (o *runObserver) OnSignal(sig signal.Signal) {
	if sig.IsSignal {
		o.accepted.Inc()
		return
	}
	o.rejected.Inc()
	o.rejects.WithLabelValues(sig.FailedReason).Inc()
}

func (o *runObserver) OnEntry(model.Position) {}

func (o *runObserver) OnEntryRefused(signal.Signal, error) { o.refused.Inc() }

func (o *runObserver) OnExit(tr model.Trade) {
	o.trades.WithLabelValues(string(tr.ExitReason)).Inc()
	o.pnl.Observe(tr.NetPnLPct)
}

// RecordBacktest sets the end-of-run gauges.
func (m *Metrics) RecordBacktest(ruleSet string, res backtest.Result, took time.Duration) {
	m.SkippedRows.Set(float64(res.Summary.SkippedRows))
	m.FinalCapital.WithLabelValues(ruleSet).Set(res.Summary.FinalCapital)
	m.MaxDrawdownPct.WithLabelValues(ruleSet).Set(res.Summary.MaxDrawdownPct)
	m.RunDuration.WithLabelValues("backtest").Observe(took.Seconds())
	if res.Summary.Halted {
		m.RunsHalted.Inc()
	}
}

// RecordOptimal counts optimal trades by direction.
func (m *Metrics) RecordOptimal(res optimal.Result, took time.Duration) {
	for i := range res.Trades {
		m.OptimalTrades.WithLabelValues(string(res.Trades[i].Direction)).Inc()
	}
	m.RunDuration.WithLabelValues("optimal").Observe(took.Seconds())
}

// Pinger is a backing service that can be probed.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CheckRedis pings Redis and records latency and reachability.
func (m *Metrics) CheckRedis(ctx context.Context, rdb Pinger) error {
	start := time.Now()
	err := rdb.Ping(ctx)
	m.recordProbe("redis", time.Since(start), err)
	return err
}

// CheckSQLite pings the database and records latency and reachability.
func (m *Metrics) CheckSQLite(ctx context.Context, db *sql.DB) error {
	start := time.Now()
	err := db.PingContext(ctx)
	m.recordProbe("sqlite", time.Since(start), err)
	return err
}

func (m *Metrics) recordProbe(dep string, took time.Duration, err error) {
	up := 1.0
	if err != nil {
		up = 0
	}
	m.DependencyUp.WithLabelValues(dep).Set(up)
	m.DependencyLatency.WithLabelValues(dep).Set(took.Seconds())
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("metrics write %s: %w", path, err)
	}
	log.Printf("[metrics] wrote %s", path)
	return nil
}
