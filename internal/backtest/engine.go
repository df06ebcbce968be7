// Package backtest drives the Signal Detector and Exit State Machine
// forward through a Market Series, keeping one Capital Account and the set
// of open positions, and produces a time-ordered trade ledger.
//
// A run is a single deterministic pass. Running the same series and rule
// set twice yields identical results.
package backtest

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/exit"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/model"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/performance"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/portfolio"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/rules"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/signal"
)

// ErrCapitalUnderflow halts a run whose balance would drop to or below zero.
var ErrCapitalUnderflow = errors.New("backtest: capital underflow")

// positionNS namespaces position IDs so they are stable across runs.
var positionNS = uuid.MustParse("5b0e1f7a-3c2d-4e8b-9a61-0f4c2d7e9b13")

// Result is the output of one run.
type Result struct {
	RuleSetVersion string                  `json:"rule_set_version"`
	Trades         []model.Trade           `json:"trades"`
	OpenPositions  []model.Position        `json:"open_positions"`
	EquityCurve    []portfolio.EquityPoint `json:"equity_curve"`
	Summary        performance.Summary     `json:"summary"`
}

// Engine runs backtests for one rule set. It is safe to call Run from
// several goroutines; each call owns its own account and positions.
type Engine struct {
	rs       rules.RuleSet
	detector *signal.Detector
	exits    *exit.Machine
	obs      Observer
	log      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver attaches run hooks (metrics, tracing).
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.obs = o
		}
	}
}

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// New validates rs and builds an engine. An invalid rule set is fatal.
func New(rs rules.RuleSet, opts ...Option) (*Engine, error) {
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		rs:       rs,
		detector: signal.NewDetector(rs),
		exits:    exit.NewMachine(rs),
		obs:      NopObserver{},
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// run holds the mutable state of a single pass.
type run struct {
	e       *Engine
	candles []model.Candle
	acct    *portfolio.Account
	open    []*model.Position
	trades  []model.Trade

	evaluated, accepted, refused int
}

// Run simulates the whole series. On capital underflow it stops and
// returns the last valid state together with an error wrapping
// ErrCapitalUnderflow.
func (e *Engine) Run(series model.Series) (Result, error) {
	acct, err := portfolio.NewAccount(e.rs.Capital.Initial)
	if err != nil {
		return Result{}, err
	}
	r := &run{
		e:       e,
		candles: series.Candles,
		acct:    acct,
		trades:  make([]model.Trade, 0, 64),
	}

	e.log.Info("backtest started",
		slog.String("rule_set", e.rs.Version),
		slog.Int("candles", len(series.Candles)),
		slog.Int("skipped_rows", series.Skipped))

	for i := range r.candles {
		e.obs.OnCandle(i)
		if err := r.exitStep(i); err != nil {
			res := r.result(series)
			res.Summary.Halted = true
			e.log.Error("backtest halted", slog.Int("candle", i), slog.Any("err", err))
			return res, fmt.Errorf("%w at candle %d: %w", ErrCapitalUnderflow, i, err)
		}
		r.entryStep(i)
	}

	res := r.result(series)
	e.log.Info("backtest finished",
		slog.String("rule_set", e.rs.Version),
		slog.Int("trades", res.Summary.TotalTrades),
		slog.Float64("final_capital", res.Summary.FinalCapital),
		slog.Float64("win_rate", res.Summary.WinRate))
	return res, nil
}

// exitStep evaluates every open position on candle i, in entry order.
func (r *run) exitStep(i int) error {
	c := &r.candles[i]
	kept := r.open[:0]
	for j, pos := range r.open {
		d := r.e.exits.Evaluate(pos, c, i)
		if !d.Close {
			kept = append(kept, pos)
			continue
		}
		tr := r.closeTrade(pos, c, i, d.Reason)
		pnl, err := r.acct.Settle(pos.SizeValue, tr.NetPnLPct, i, c.TS)
		if err != nil {
			remaining := make([]*model.Position, 0, len(kept)+len(r.open)-j)
			remaining = append(remaining, kept...)
			remaining = append(remaining, r.open[j:]...)
			r.open = remaining
			return err
		}
		tr.PnLValue = pnl
		r.trades = append(r.trades, tr)
		r.e.obs.OnExit(tr)
		r.e.log.Debug("position closed",
			slog.String("id", pos.ID),
			slog.String("reason", string(tr.ExitReason)),
			slog.Float64("pnl_pct", tr.NetPnLPct))
	}
	r.open = kept
	return nil
}

// entryStep evaluates at most one entry on candle i when capacity remains.
func (r *run) entryStep(i int) {
	if len(r.open) >= r.e.rs.Capital.MaxConcurrentTrades {
		return
	}
	sig := r.e.detector.Evaluate(r.candles, i)
	r.evaluated++
	r.e.obs.OnSignal(sig)
	if !sig.IsSignal {
		return
	}

	size, err := r.acct.Reserve(r.e.rs.Capital.PositionSizePct)
	if err != nil {
		r.refused++
		r.e.obs.OnEntryRefused(sig, err)
		r.e.log.Debug("entry refused", slog.Int("candle", i), slog.Any("err", err))
		return
	}
	r.accepted++

	c := &r.candles[i]
	pos := &model.Position{
		ID:            uuid.NewSHA1(positionNS, []byte(r.e.rs.Version+"/"+strconv.Itoa(i))).String(),
		Direction:     sig.Direction,
		EntryPrice:    c.Close,
		EntryTime:     c.TS,
		EntryIndex:    i,
		Size:          r.e.rs.Capital.PositionSizePct / 100,
		SizeValue:     size,
		EntryQuality:  sig.QualityScore,
		EntrySnapshot: sig.Snapshot,
	}
	r.open = append(r.open, pos)
	r.e.obs.OnEntry(*pos)
	r.e.log.Debug("position opened",
		slog.String("id", pos.ID),
		slog.String("direction", string(pos.Direction)),
		slog.Float64("price", pos.EntryPrice),
		slog.Float64("quality", pos.EntryQuality))
}

func (r *run) closeTrade(pos *model.Position, c *model.Candle, i int, reason model.ExitReason) model.Trade {
	gross := model.MovePct(pos.Direction, pos.EntryPrice, c.Close)
	return model.Trade{
		Direction:        pos.Direction,
		EntryTime:        pos.EntryTime,
		ExitTime:         c.TS,
		EntryIndex:       pos.EntryIndex,
		ExitIndex:        i,
		EntryPrice:       pos.EntryPrice,
		ExitPrice:        c.Close,
		PnLPct:           gross,
		NetPnLPct:        gross - r.e.rs.Capital.CommissionPct,
		SizeValue:        pos.SizeValue,
		HoldCandles:      i - pos.EntryIndex,
		HoldDuration:     c.TS.Sub(pos.EntryTime),
		ExitReason:       reason,
		PeakFavorablePct: pos.PeakFavorablePct,
		MAEPct:           pos.WorstAdversePct,
		EntryQuality:     pos.EntryQuality,
		EntryIndicators:  pos.EntrySnapshot,
	}
}

func (r *run) result(series model.Series) Result {
	s := performance.Summarize(r.trades)
	s.MaxDrawdownPct = r.acct.MaxDrawdownPct()
	s.InitialCapital = r.acct.Initial()
	s.FinalCapital = r.acct.Balance()
	s.ReturnPct = r.acct.ReturnPct()
	s.SkippedRows = series.Skipped
	s.SignalsEvaluated = r.evaluated
	s.SignalsAccepted = r.accepted
	s.EntriesRefused = r.refused
	s.OpenAtEnd = len(r.open)

	open := make([]model.Position, len(r.open))
	for k, p := range r.open {
		open[k] = *p
	}
	return Result{
		RuleSetVersion: r.e.rs.Version,
		Trades:         r.trades,
		OpenPositions:  open,
		EquityCurve:    r.acct.Curve(),
		Summary:        s,
	}
}
