package redis

import (
	"errors"
	"testing"
	"time"
)

// fakeClock is advanced by hand instead of sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(tripAfter int) (*CircuitBreaker, *fakeClock) {
	clk := &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(tripAfter, 10*time.Second)
	cb.now = clk.now
	return cb, clk
}

var errFail = errors.New("write failed")

// write runs one admitted write with the given outcome. It returns the
// Allow error when the write was refused.
func write(cb *CircuitBreaker, outcome error) error {
	if err := cb.Allow(); err != nil {
		return err
	}
	cb.Record(outcome)
	return outcome
}

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb, _ := newTestBreaker(3)
	if cb.CurrentState() != StateClosed {
		t.Errorf("expected closed, got %v", cb.CurrentState())
	}
	if err := cb.Allow(); err != nil {
		t.Errorf("closed breaker refused a write: %v", err)
	}
}

func TestCircuitBreaker_OpensAfterStreak(t *testing.T) {
	cb, _ := newTestBreaker(3)
	for i := 0; i < 3; i++ {
		if err := write(cb, errFail); err != errFail {
			t.Fatalf("write %d: expected errFail, got %v", i, err)
		}
	}
	if cb.CurrentState() != StateOpen {
		t.Fatalf("expected open after 3 failures, got %v", cb.CurrentState())
	}
	if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_ProbeCloses(t *testing.T) {
	cb, clk := newTestBreaker(2)
	write(cb, errFail)
	write(cb, errFail)

	clk.advance(9 * time.Second)
	if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected refusal before cool-down ends, got %v", err)
	}

	clk.advance(time.Second)
	if err := write(cb, nil); err != nil {
		t.Fatalf("probe write: %v", err)
	}
	if cb.CurrentState() != StateClosed {
		t.Errorf("expected closed after successful probe, got %v", cb.CurrentState())
	}
}

func TestCircuitBreaker_SingleProbeInFlight(t *testing.T) {
	cb, clk := newTestBreaker(1)
	write(cb, errFail)
	clk.advance(10 * time.Second)

	if err := cb.Allow(); err != nil {
		t.Fatalf("probe refused: %v", err)
	}
	if cb.CurrentState() != StateHalfOpen {
		t.Fatalf("expected half-open during probe, got %v", cb.CurrentState())
	}
	if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second write during probe: expected ErrCircuitOpen, got %v", err)
	}
	cb.Record(nil)
	if err := cb.Allow(); err != nil {
		t.Errorf("write after probe: %v", err)
	}
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	cb, clk := newTestBreaker(3)
	for i := 0; i < 3; i++ {
		write(cb, errFail)
	}
	clk.advance(10 * time.Second)

	write(cb, errFail)
	if cb.CurrentState() != StateOpen {
		t.Fatalf("expected open after failed probe, got %v", cb.CurrentState())
	}
	if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected a fresh cool-down, got %v", err)
	}
}

func TestCircuitBreaker_SuccessResetsStreak(t *testing.T) {
	cb, _ := newTestBreaker(3)
	write(cb, errFail)
	write(cb, errFail)
	write(cb, nil)
	write(cb, errFail)
	write(cb, errFail)

	if cb.CurrentState() != StateClosed {
		t.Errorf("expected closed after streak reset, got %v", cb.CurrentState())
	}
}

func TestCircuitBreaker_Transitions(t *testing.T) {
	var got []State
	cb, clk := newTestBreaker(1)
	cb.OnStateChange = func(_, to State) { got = append(got, to) }

	write(cb, errFail)
	clk.advance(11 * time.Second)
	write(cb, nil)

	want := []State{StateOpen, StateHalfOpen, StateClosed}
	if len(got) != len(want) {
		t.Fatalf("transitions %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestStateString(t *testing.T) {
	if StateHalfOpen.String() != "half-open" || State(7).String() != "unknown" {
		t.Errorf("got %q and %q", StateHalfOpen.String(), State(7).String())
	}
}
