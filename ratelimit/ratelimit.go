// Package ratelimit implements the Cloud-tier admission control: a
// process-wide singleton tracking a sliding 60s request window, a rolling
// 24h request window, and an accumulating 24h USD spend, guarded by a single
// mutex so admission checks and recordings stay atomic.
package ratelimit

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Reason explains why admit() refused a request. The zero value is used
// only when allow is true.
type Reason string

const (
	ReasonBudgetExceeded    Reason = "budget_exceeded"
	ReasonPerMinuteExceeded Reason = "per_minute_exceeded"
	ReasonPerDayExceeded    Reason = "per_day_exceeded"
)

// Limits holds the three configurable caps, defaulting to 60/min, 10000/day,
// $10/day.
type Limits struct {
	MaxPerMinute int
	MaxPerDay    int
	DailyBudget  float64
}

// DefaultLimits matches the spec's stated defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxPerMinute: 60,
		MaxPerDay:    10000,
		DailyBudget:  10.0,
	}
}

// Stats is a point-in-time snapshot returned by Stats.
type Stats struct {
	RequestsLastMinute int
	RequestsToday      int
	CostToday          float64
	Limits             Limits
}

// Limiter is a process-wide singleton; share one instance across every
// Cloud-tier call site.
type Limiter struct {
	mu sync.Mutex

	limits Limits

	minuteWindow []time.Time

	dayWindow  []time.Time
	dayCost    float64
	dayResetAt time.Time

	clock clock.Clock
}

// New constructs a Limiter with the given limits. Pass DefaultLimits() for
// the spec's baseline defaults.
func New(limits Limits) *Limiter {
	return newWithClock(limits, clock.New())
}

func newWithClock(limits Limits, clk clock.Clock) *Limiter {
	return &Limiter{
		limits:     limits,
		dayResetAt: clk.Now(),
		clock:      clk,
	}
}

// Admit reports whether a call estimated to cost estimatedCostUSD may
// proceed. It purges expired entries from both windows and performs the
// daily reset check, but never mutates the counters themselves — callers
// must invoke Record exactly once per request that actually executes.
// Admit never panics; rejection is a normal, signalled outcome.
func (l *Limiter) Admit(estimatedCostUSD float64) (allow bool, reason Reason) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.pruneMinuteWindow(now)
	l.maybeResetDay(now)

	// Budget first (the cheapest check), then per-minute, then per-day.
	if l.dayCost+estimatedCostUSD > l.limits.DailyBudget {
		return false, ReasonBudgetExceeded
	}
	if len(l.minuteWindow) >= l.limits.MaxPerMinute {
		return false, ReasonPerMinuteExceeded
	}
	if len(l.dayWindow) >= l.limits.MaxPerDay {
		return false, ReasonPerDayExceeded
	}
	return true, ""
}

// Record appends actualCostUSD to both windows and the daily spend
// accumulator. Must be called exactly once per request admitted by Admit
// that actually executed.
func (l *Limiter) Record(actualCostUSD float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.pruneMinuteWindow(now)
	l.maybeResetDay(now)

	l.minuteWindow = append(l.minuteWindow, now)
	l.dayWindow = append(l.dayWindow, now)
	l.dayCost += actualCostUSD
}

// Stats returns a snapshot of the current window occupancy and spend.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.pruneMinuteWindow(now)
	l.maybeResetDay(now)

	return Stats{
		RequestsLastMinute: len(l.minuteWindow),
		RequestsToday:      len(l.dayWindow),
		CostToday:          l.dayCost,
		Limits:             l.limits,
	}
}

func (l *Limiter) pruneMinuteWindow(now time.Time) {
	cutoff := now.Add(-60 * time.Second)
	i := 0
	for ; i < len(l.minuteWindow); i++ {
		if l.minuteWindow[i].After(cutoff) {
			break
		}
	}
	l.minuteWindow = l.minuteWindow[i:]
}

func (l *Limiter) maybeResetDay(now time.Time) {
	if now.Sub(l.dayResetAt) > 24*time.Hour {
		l.dayWindow = nil
		l.dayCost = 0
		l.dayResetAt = now
	}
}
