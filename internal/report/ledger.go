// Package report turns run results into the documents handed to
// downstream consumers: the trade ledger, the optimal ledger and the run
// record journaled for every invocation.
package report

import (
	"time"

	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/backtest"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/model"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/optimal"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/performance"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/portfolio"
)

// BacktestLedger is the trade ledger of one backtest run. It carries no
// run ID or wall-clock data, so identical inputs give identical bytes.
type BacktestLedger struct {
	RuleSetVersion string                  `json:"rule_set_version"`
	Trades         []model.Trade           `json:"trades"`
	Summary        performance.Summary     `json:"summary"`
	OpenPositions  []model.Position        `json:"open_positions"`
	EquityCurve    []portfolio.EquityPoint `json:"equity_curve,omitempty"`
}

// OptimalLedger is the hindsight benchmark ledger.
type OptimalLedger struct {
	Trades     []model.Trade                              `json:"trades"`
	Summary    performance.Summary                        `json:"summary"`
	Directions map[model.Direction]optimal.DirectionStats `json:"directions"`
	Indicators optimal.IndicatorReport                    `json:"indicators"`
}

// RunRecord describes one invocation for journals and alerts.
type RunRecord struct {
	RunID          string               `json:"run_id"`
	Series         string               `json:"series"`
	RuleSetVersion string               `json:"rule_set_version"`
	StartedAt      time.Time            `json:"started_at"`
	Duration       time.Duration        `json:"duration"`
	Backtest       performance.Summary  `json:"backtest"`
	Optimal        *performance.Summary `json:"optimal,omitempty"`
	Error          string               `json:"error,omitempty"`
}

// NewBacktestLedger builds the ledger document for res.
func NewBacktestLedger(res backtest.Result) BacktestLedger {
	l := BacktestLedger{
		RuleSetVersion: res.RuleSetVersion,
		Trades:         res.Trades,
		Summary:        res.Summary,
		OpenPositions:  res.OpenPositions,
		EquityCurve:    res.EquityCurve,
	}
	if l.Trades == nil {
		l.Trades = []model.Trade{}
	}
	if l.OpenPositions == nil {
		l.OpenPositions = []model.Position{}
	}
	return l
}

// NewOptimalLedger builds the optimal ledger document for res.
func NewOptimalLedger(res optimal.Result) OptimalLedger {
	l := OptimalLedger{
		Trades:     res.Trades,
		Summary:    res.Summary,
		Directions: res.Directions,
		Indicators: res.Indicators,
	}
	if l.Trades == nil {
		l.Trades = []model.Trade{}
	}
	return l
}
