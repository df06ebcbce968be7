// Package portfolio keeps the Capital Account of one simulation run:
// balance, capital committed to open positions, the capital curve and its
// peak-to-trough drawdown.
//
// Balances are kept as decimals so compounding over thousands of trades
// does not drift with float rounding.
package portfolio

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnderflow is returned when settling a trade would leave the
	// balance at or below zero. The account is left unchanged.
	ErrUnderflow = errors.New("capital underflow")

	// ErrInsufficientCapital is returned when a reservation exceeds the
	// capital not already committed to open positions.
	ErrInsufficientCapital = errors.New("insufficient free capital")
)

var hundred = decimal.NewFromInt(100)

// EquityPoint is one point of the capital curve, recorded on every
// settlement.
type EquityPoint struct {
	Index   int       `json:"index"`
	TS      time.Time `json:"ts"`
	Balance float64   `json:"balance"`
}

// Account is owned by a single run and is not safe for concurrent use.
type Account struct {
	initial   decimal.Decimal
	balance   decimal.Decimal
	committed decimal.Decimal
	peak      decimal.Decimal

	maxDrawdownPct float64
	curve          []EquityPoint
}

// NewAccount opens an account with a strictly positive starting balance.
func NewAccount(initial float64) (*Account, error) {
	if initial <= 0 {
		return nil, fmt.Errorf("portfolio: initial capital must be > 0, got %v", initial)
	}
	d := decimal.NewFromFloat(initial)
	return &Account{
		initial: d,
		balance: d,
		peak:    d,
		curve:   make([]EquityPoint, 0, 64),
	}, nil
}

// Initial returns the starting balance.
func (a *Account) Initial() float64 { return a.initial.InexactFloat64() }

// Balance returns the current balance.
func (a *Account) Balance() float64 { return a.balance.InexactFloat64() }

// Committed returns the capital tied up in open positions.
func (a *Account) Committed() float64 { return a.committed.InexactFloat64() }

// Free returns balance minus committed capital.
func (a *Account) Free() float64 { return a.balance.Sub(a.committed).InexactFloat64() }

// Reserve commits pct percent of the current balance to a new position and
// returns the committed amount. Sizing against the current balance makes
// returns compound.
func (a *Account) Reserve(pct float64) (float64, error) {
	size := a.balance.Mul(decimal.NewFromFloat(pct)).Div(hundred)
	if size.GreaterThan(a.balance.Sub(a.committed)) {
		return 0, fmt.Errorf("%w: need %s, free %s", ErrInsufficientCapital,
			size.StringFixed(2), a.balance.Sub(a.committed).StringFixed(2))
	}
	a.committed = a.committed.Add(size)
	return size.InexactFloat64(), nil
}

// Settle releases sizeValue and books sizeValue × netPnLPct / 100 into the
// balance. It returns the realized amount.
func (a *Account) Settle(sizeValue, netPnLPct float64, index int, ts time.Time) (float64, error) {
	size := decimal.NewFromFloat(sizeValue)
	pnl := size.Mul(decimal.NewFromFloat(netPnLPct)).Div(hundred)
	next := a.balance.Add(pnl)
	if !next.IsPositive() {
		return 0, fmt.Errorf("%w: balance %s, trade %s", ErrUnderflow,
			a.balance.StringFixed(2), pnl.StringFixed(2))
	}

	a.balance = next
	a.committed = a.committed.Sub(size)
	if a.committed.IsNegative() {
		a.committed = decimal.Zero
	}
	if a.balance.GreaterThan(a.peak) {
		a.peak = a.balance
	}
	if a.peak.IsPositive() {
		dd := a.peak.Sub(a.balance).Div(a.peak).Mul(hundred).InexactFloat64()
		if dd > a.maxDrawdownPct {
			a.maxDrawdownPct = dd
		}
	}
	a.curve = append(a.curve, EquityPoint{Index: index, TS: ts, Balance: a.balance.InexactFloat64()})
	return pnl.InexactFloat64(), nil
}

// MaxDrawdownPct returns the largest peak-to-trough decline of the capital
// curve, in percent of the peak.
func (a *Account) MaxDrawdownPct() float64 { return a.maxDrawdownPct }

// Curve returns a copy of the capital curve.
func (a *Account) Curve() []EquityPoint {
	cp := make([]EquityPoint, len(a.curve))
	copy(cp, a.curve)
	return cp
}

// ReturnPct returns the total return on initial capital.
func (a *Account) ReturnPct() float64 {
	return a.balance.Sub(a.initial).Div(a.initial).Mul(hundred).InexactFloat64()
}
