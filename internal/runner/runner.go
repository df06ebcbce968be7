// Package runner orchestrates independent simulation passes over one
// shared, read-only series: the backtest and the optimal finder side by
// side, and any number of rule-set variants.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/backtest"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/model"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/optimal"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/rules"
)

// ObserverFunc returns the observer for a rule set version, or nil.
type ObserverFunc func(ruleSet string) backtest.Observer

// Runner holds what every pass shares.
type Runner struct {
	Observers ObserverFunc
	Logger    *slog.Logger
	Parallel  int // max concurrent variants; 0 means GOMAXPROCS
}

// Outcome is the result of one backtest and, optionally, the optimal
// finder over the same series.
type Outcome struct {
	Backtest     backtest.Result
	BacktestErr  error
	BacktestTook time.Duration
	Optimal      *optimal.Result
	OptimalTook  time.Duration
}

// Run executes the backtest for rs and, when finder is non-nil, the
// optimal finder concurrently. An invalid rule set or finder fails before
// either starts. A halted backtest is reported in Outcome.BacktestErr and also
// returned.
func (r *Runner) Run(ctx context.Context, series model.Series, rs rules.RuleSet, finder *optimal.Finder) (Outcome, error) {
	engine, err := r.engine(rs)
	if err != nil {
		return Outcome{}, err
	}
	if finder != nil {
		if err := finder.Validate(); err != nil {
			return Outcome{}, err
		}
	}

	var out Outcome
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		out.Backtest, out.BacktestErr = engine.Run(series)
		out.BacktestTook = time.Since(start)
		return nil
	})
	if finder != nil {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f := *finder
			if f.Logger == nil {
				f.Logger = r.log()
			}
			start := time.Now()
			res := f.Find(series)
			out.OptimalTook = time.Since(start)
			out.Optimal = &res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, out.BacktestErr
}

// Variant is the backtest of one rule set among several.
type Variant struct {
	RuleSet string
	Result  backtest.Result
	Err     error
	Took    time.Duration
}

// RunVariants backtests every rule set against the same series, in
// parallel. Results come back in input order. Every rule set is validated
// before any run starts; a halted variant does not stop the others.
func (r *Runner) RunVariants(ctx context.Context, series model.Series, sets []rules.RuleSet) ([]Variant, error) {
	engines := make([]*backtest.Engine, len(sets))
	for i, rs := range sets {
		e, err := r.engine(rs)
		if err != nil {
			return nil, fmt.Errorf("variant %d (%s): %w", i, rs.Version, err)
		}
		engines[i] = e
	}

	out := make([]Variant, len(sets))
	g, ctx := errgroup.WithContext(ctx)
	limit := r.Parallel
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(limit)

	for i := range engines {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			res, err := engines[i].Run(series)
			out[i] = Variant{RuleSet: sets[i].Version, Result: res, Err: err, Took: time.Since(start)}
			if err != nil {
				r.log().Warn("variant halted", slog.String("rule_set", sets[i].Version), slog.Any("err", err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Runner) engine(rs rules.RuleSet) (*backtest.Engine, error) {
	opts := []backtest.Option{backtest.WithLogger(r.log())}
	if r.Observers != nil {
		opts = append(opts, backtest.WithObserver(r.Observers(rs.Version)))
	}
	return backtest.New(rs, opts...)
}

func (r *Runner) log() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
