package redis

import (
	"errors"
	"sync"
	"time"
)

// State is the publisher's view of Redis health.
type State int

const (
	StateClosed   State = iota // writes go through
	StateOpen                  // writes are buffered without trying Redis
	StateHalfOpen              // one probe write is in flight
)

var stateNames = [...]string{"closed", "open", "half-open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// ErrCircuitOpen is returned by Allow while writes are held back.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker gates run writes. Callers ask Allow before a write and
// report its outcome with Record. tripAfter consecutive failures open the
// breaker for coolDown; the first write after that is a probe, and while
// it is in flight every other write is refused.
type CircuitBreaker struct {
	mu        sync.Mutex
	state     State
	streak    int
	tripAfter int
	coolDown  time.Duration
	reopenAt  time.Time
	now       func() time.Time

	// OnStateChange is called on every transition, under the breaker lock.
	OnStateChange func(from, to State)
}

// NewCircuitBreaker returns a closed breaker.
func NewCircuitBreaker(tripAfter int, coolDown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		tripAfter: max(tripAfter, 1),
		coolDown:  coolDown,
		now:       time.Now,
	}
}

// Allow admits one write or returns ErrCircuitOpen.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		return ErrCircuitOpen
	case StateOpen:
		if cb.now().Before(cb.reopenAt) {
			return ErrCircuitOpen
		}
		cb.moveTo(StateHalfOpen)
	}
	return nil
}

// Record reports the outcome of a write admitted by Allow.
func (cb *CircuitBreaker) Record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	probe := cb.state == StateHalfOpen
	if err == nil {
		cb.streak = 0
		if probe {
			cb.moveTo(StateClosed)
		}
		return
	}

	cb.streak++
	if probe || cb.streak >= cb.tripAfter {
		cb.reopenAt = cb.now().Add(cb.coolDown)
		cb.moveTo(StateOpen)
	}
}

// CurrentState returns the breaker state.
func (cb *CircuitBreaker) CurrentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) moveTo(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.OnStateChange != nil {
		cb.OnStateChange(from, to)
	}
}
