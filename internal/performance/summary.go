// Package performance rolls a trade ledger up into summary statistics.
package performance

import (
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/model"
)

// ProfitFactorCap stands in for an infinite profit factor (wins, no losses)
// so the summary stays JSON-encodable.
const ProfitFactorCap = 999

// Summary is the roll-up written next to every ledger. Percentages are net
// of commission.
type Summary struct {
	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate"` // percent

	TotalPnLPct   float64 `json:"total_pnl_pct"`
	AvgPnLPct     float64 `json:"avg_pnl_pct"`
	TotalPnLValue float64 `json:"total_pnl_value"`
	AvgWinPct     float64 `json:"avg_win_pct"`
	AvgLossPct    float64 `json:"avg_loss_pct"`
	ProfitFactor  float64 `json:"profit_factor"`

	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	InitialCapital float64 `json:"initial_capital,omitempty"`
	FinalCapital   float64 `json:"final_capital,omitempty"`
	ReturnPct      float64 `json:"return_pct,omitempty"`

	AvgHoldCandles      float64                  `json:"avg_hold_candles"`
	AvgPeakFavorablePct float64                  `json:"avg_peak_favorable_pct"`
	AvgMAEPct           float64                  `json:"avg_mae_pct"`
	ExitReasons         map[model.ExitReason]int `json:"exit_reasons"`

	SkippedRows      int  `json:"skipped_rows"`
	SignalsEvaluated int  `json:"signals_evaluated,omitempty"`
	SignalsAccepted  int  `json:"signals_accepted,omitempty"`
	EntriesRefused   int  `json:"entries_refused,omitempty"`
	OpenAtEnd        int  `json:"open_at_end,omitempty"`
	Halted           bool `json:"halted,omitempty"`
}

// Summarize computes the trade-derived fields. Capital fields are left for
// the caller; MaxDrawdownPct is taken from the additive curve of net
// percentages, which callers holding a capital account overwrite.
func Summarize(trades []model.Trade) Summary {
	s := Summary{
		TotalTrades: len(trades),
		ExitReasons: make(map[model.ExitReason]int),
	}
	if len(trades) == 0 {
		return s
	}

	var winSum, lossSum, holdSum, peakSum, maeSum float64
	for i := range trades {
		t := &trades[i]
		s.TotalPnLPct += t.NetPnLPct
		s.TotalPnLValue += t.PnLValue
		holdSum += float64(t.HoldCandles)
		peakSum += t.PeakFavorablePct
		maeSum += t.MAEPct
		s.ExitReasons[t.ExitReason]++
		if t.Win() {
			s.Wins++
			winSum += t.NetPnLPct
		} else {
			s.Losses++
			lossSum += t.NetPnLPct
		}
	}

	n := float64(len(trades))
	s.WinRate = 100 * float64(s.Wins) / n
	s.AvgPnLPct = s.TotalPnLPct / n
	s.AvgHoldCandles = holdSum / n
	s.AvgPeakFavorablePct = peakSum / n
	s.AvgMAEPct = maeSum / n
	if s.Wins > 0 {
		s.AvgWinPct = winSum / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLossPct = lossSum / float64(s.Losses)
	}
	s.ProfitFactor = ProfitFactor(winSum, -lossSum)
	s.MaxDrawdownPct = AdditiveDrawdown(trades)
	return s
}

// ProfitFactor returns gross wins over gross losses, 0 with no wins and
// ProfitFactorCap with wins but no losses.
func ProfitFactor(grossWin, grossLoss float64) float64 {
	if grossLoss <= 0 {
		if grossWin > 0 {
			return ProfitFactorCap
		}
		return 0
	}
	return grossWin / grossLoss
}

// AdditiveDrawdown is the largest peak-to-trough fall, in percentage
// points, of the running sum of net trade percentages.
func AdditiveDrawdown(trades []model.Trade) float64 {
	var cum, peak, dd float64
	for i := range trades {
		cum += trades[i].NetPnLPct
		if cum > peak {
			peak = cum
		}
		if peak-cum > dd {
			dd = peak - cum
		}
	}
	return dd
}
