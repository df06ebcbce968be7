// Package notification delivers run alerts to external channels.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/report"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel        `json:"level"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Run     *report.RunRecord `json:"run,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// RunAlert summarizes a finished run. Halted or failed runs are critical,
// runs that lost money are warnings.
func RunAlert(rec report.RunRecord) Alert {
	s := rec.Backtest
	a := Alert{
		Level: AlertInfo,
		Title: fmt.Sprintf("backtest %s on %s", rec.RuleSetVersion, rec.Series),
		Message: fmt.Sprintf("%d trades, win rate %.1f%%, return %.2f%%, max drawdown %.2f%%, profit factor %.2f",
			s.TotalTrades, s.WinRate, s.ReturnPct, s.MaxDrawdownPct, s.ProfitFactor),
		Run: &rec,
	}
	if rec.Optimal != nil {
		a.Message += fmt.Sprintf("; optimal %d trades, %.2f%% total", rec.Optimal.TotalTrades, rec.Optimal.TotalPnLPct)
	}
	switch {
	case rec.Error != "" || s.Halted:
		a.Level = AlertCritical
		if rec.Error != "" {
			a.Message += "; error: " + rec.Error
		}
	case s.ReturnPct < 0:
		a.Level = AlertWarning
	}
	return a
}

// LogNotifier logs alerts.
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// Multi sends every alert to all notifiers and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
