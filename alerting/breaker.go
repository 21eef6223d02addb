package alerting

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without contacting the service while the
// circuit breaker is open
var ErrCircuitOpen = errors.New("alert API circuit breaker is open")

type breakerState string

const (
	breakerClosed   breakerState = "closed"
	breakerOpen     breakerState = "open"
	breakerHalfOpen breakerState = "half_open"
)

// breaker stops calls to an alert API that keeps failing. After maxFailures
// consecutive failures it opens for cooldown, then lets one trial through:
// a successful trial closes it, a failed one reopens it.
//
// Every state change starts a new generation. An outcome only counts when
// its call was admitted in the current generation, so requests still in
// flight when the breaker opened cannot close it early.
type breaker struct {
	mu          sync.Mutex
	maxFailures int
	cooldown    time.Duration
	state       breakerState
	generation  uint64
	failures    int
	openedAt    time.Time
	trialing    bool
	now         func() time.Time
}

// ticket identifies an admitted call
type ticket struct {
	generation uint64
}

func newBreaker(maxFailures int, cooldown time.Duration) *breaker {
	return &breaker{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		state:       breakerClosed,
		now:         time.Now,
	}
}

func (b *breaker) allow() (ticket, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ticket{}, ErrCircuitOpen
		}
		b.setState(breakerHalfOpen)
		b.trialing = true
	case breakerHalfOpen:
		if b.trialing {
			return ticket{}, ErrCircuitOpen
		}
		b.trialing = true
	}
	return ticket{generation: b.generation}, nil
}

// record reports the outcome of an admitted call and returns the states
// before and after it. Outcomes from an earlier generation are dropped.
func (b *breaker) record(t ticket, failed bool) (from, to breakerState) {
	b.mu.Lock()
	defer b.mu.Unlock()

	from = b.state
	if t.generation != b.generation {
		return from, from
	}
	if b.state == breakerHalfOpen {
		b.trialing = false
	}
	if !failed {
		b.failures = 0
		b.setState(breakerClosed)
		return from, b.state
	}

	b.failures++
	if b.state == breakerHalfOpen || b.failures >= b.maxFailures {
		b.openedAt = b.now()
		b.setState(breakerOpen)
	}
	return from, b.state
}

// setState moves to state, starting a new generation when it changes.
// Callers hold mu.
func (b *breaker) setState(state breakerState) {
	if b.state == state {
		return
	}
	b.state = state
	b.generation++
	if state != breakerClosed {
		b.failures = 0
	}
}

// isServiceFailure reports whether err says the service itself is unwell.
// Client errors (4xx) and cancellations by the caller do not count.
func isServiceFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return true
}
