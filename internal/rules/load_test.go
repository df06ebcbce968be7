package rules

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault_Valid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default rule set should validate: %v", err)
	}
}

func TestParse_PartialDocumentKeepsDefaults(t *testing.T) {
	rs, err := Parse([]byte(`{"version":"v7","exit":{"take_profit_pct":3.5}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rs.Version != "v7" {
		t.Errorf("expected version v7, got %q", rs.Version)
	}
	if rs.Exit.TakeProfitPct != 3.5 {
		t.Errorf("expected take profit 3.5, got %v", rs.Exit.TakeProfitPct)
	}
	if rs.Exit.StopLossPct != Default().Exit.StopLossPct {
		t.Errorf("expected default stop loss, got %v", rs.Exit.StopLossPct)
	}
	if rs.Capital.Initial != 10000 {
		t.Errorf("expected default capital, got %v", rs.Capital.Initial)
	}
}

func TestParse_UnknownFieldRejected(t *testing.T) {
	_, err := Parse([]byte(`{"exit":{"take_proft_pct":3}}`))
	if err == nil {
		t.Fatal("expected error for misspelled field")
	}
}

func TestValidate_ContradictoryThresholds(t *testing.T) {
	rs := Default()
	rs.Entry.Direction.LongThreshold = 0.3
	rs.Entry.Direction.ShortThreshold = 0.6

	err := rs.Validate()
	if !errors.Is(err, ErrInvalidRuleSet) {
		t.Fatalf("expected ErrInvalidRuleSet, got %v", err)
	}
	if !strings.Contains(err.Error(), "long_threshold") {
		t.Errorf("expected message to name long_threshold, got %v", err)
	}
}

func TestValidate_ReportsEveryViolation(t *testing.T) {
	rs := Default()
	rs.Capital.Initial = 0
	rs.Entry.Compression.Points = -5
	rs.Exit.StopLossPct = 1

	err := rs.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"capital.initial", "compression.points", "stop_loss_pct"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestValidate_DisabledFilterNotChecked(t *testing.T) {
	rs := Default()
	rs.Entry.VolumeState.Enabled = false
	rs.Entry.VolumeState.Field = ""
	rs.Entry.VolumeState.Required = nil
	if err := rs.Validate(); err != nil {
		t.Fatalf("disabled filter should not be validated: %v", err)
	}
}

func TestValidate_FlipRequiresField(t *testing.T) {
	rs := Default()
	rs.Entry.Direction.RequireFlip = true
	rs.Entry.Direction.FlipField = ""
	if err := rs.Validate(); !errors.Is(err, ErrInvalidRuleSet) {
		t.Fatalf("expected ErrInvalidRuleSet, got %v", err)
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	doc := `{"version":"file-v1","capital":{"initial":5000,"position_size_pct":25,"commission_pct":0,"max_concurrent_trades":2}}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	rs, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rs.Capital.MaxConcurrentTrades != 2 || rs.Capital.Initial != 5000 {
		t.Errorf("unexpected capital block: %+v", rs.Capital)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
