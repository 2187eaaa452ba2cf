// Package breaker implements a three-state circuit breaker guarding the
// Cloud tier call. Local model failures never trip it — only the executor's
// Cloud path records outcomes here.
package breaker

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
)

// State is one of the three breaker states.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Reason explains a can_proceed denial.
type Reason string

const (
	ReasonOpen             Reason = "open"
	ReasonHalfOpenInFlight Reason = "half_open_in_flight"
)

// Config holds the breaker's tunables, defaulting to threshold=5,
// timeout=60s, half_open_max_calls=1.
type Config struct {
	FailureThreshold int
	Timeout          time.Duration
	HalfOpenMaxCalls int
}

// DefaultConfig matches the spec's stated defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Timeout:          60 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// Metrics is a point-in-time snapshot returned by GetMetrics.
type Metrics struct {
	State            State
	FailureCount     int
	OpenedAt         time.Time
	HalfOpenInFlight int
}

// Breaker is a single named circuit breaker instance. The executor holds one
// shared instance for the Cloud tier.
type Breaker struct {
	mu sync.Mutex

	cfg Config

	state            State
	failureCount     int
	openedAt         time.Time
	halfOpenInFlight int

	clock clock.Clock

	stateGauge prometheus.Gauge
}

// New constructs a Breaker in the CLOSED state with cfg's tunables. gauge
// may be nil; when set, it is updated on every transition with 0=closed,
// 1=open, 2=half_open.
func New(cfg Config, gauge prometheus.Gauge) *Breaker {
	return newWithClock(cfg, gauge, clock.New())
}

func newWithClock(cfg Config, gauge prometheus.Gauge, clk clock.Clock) *Breaker {
	return &Breaker{
		cfg:        cfg,
		state:      StateClosed,
		clock:      clk,
		stateGauge: gauge,
	}
}

// CanProceed reports whether a Cloud call may be attempted right now. In
// OPEN, it transitions to HALF_OPEN once the timeout has elapsed and admits
// exactly one probe (or cfg.HalfOpenMaxCalls, but the spec default is 1).
func (b *Breaker) CanProceed() (allow bool, reason Reason) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true, ""
	case StateOpen:
		if b.clock.Now().Sub(b.openedAt) >= b.cfg.Timeout {
			b.state = StateHalfOpen
			b.halfOpenInFlight = 0
			b.setGauge()
		} else {
			return false, ReasonOpen
		}
		fallthrough
	case StateHalfOpen:
		if b.halfOpenInFlight >= b.cfg.HalfOpenMaxCalls {
			return false, ReasonHalfOpenInFlight
		}
		b.halfOpenInFlight++
		return true, ""
	}
	return false, ReasonOpen
}

// RecordSuccess transitions HALF_OPEN -> CLOSED. In every state it zeroes
// the failure count and the half-open in-flight count, so in CLOSED a
// success breaks a run of consecutive failures; it never changes an OPEN
// state.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.state = StateClosed
	}
	b.failureCount = 0
	b.halfOpenInFlight = 0
	b.setGauge()
}

// RecordFailure increments the CLOSED failure count, tripping to OPEN at
// the threshold, and immediately reopens from HALF_OPEN.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.state = StateOpen
		b.openedAt = b.clock.Now()
		b.halfOpenInFlight = 0
	case StateClosed:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			b.state = StateOpen
			b.openedAt = b.clock.Now()
		}
	}
	b.setGauge()
}

// Reset forces the breaker back to CLOSED with zeroed counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failureCount = 0
	b.halfOpenInFlight = 0
	b.setGauge()
}

// GetMetrics returns a snapshot of the breaker's internal state.
func (b *Breaker) GetMetrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Metrics{
		State:            b.state,
		FailureCount:     b.failureCount,
		OpenedAt:         b.openedAt,
		HalfOpenInFlight: b.halfOpenInFlight,
	}
}

func (b *Breaker) setGauge() {
	if b.stateGauge == nil {
		return
	}
	switch b.state {
	case StateClosed:
		b.stateGauge.Set(0)
	case StateOpen:
		b.stateGauge.Set(1)
	case StateHalfOpen:
		b.stateGauge.Set(2)
	}
}
