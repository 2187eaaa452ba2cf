package breaker

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

func TestBreaker(t *testing.T) {
	t.Run("starts closed and allows calls", func(t *testing.T) {
		b := newWithClock(DefaultConfig(), nil, clock.NewMock())
		allow, reason := b.CanProceed()
		assert.True(t, allow)
		assert.Equal(t, Reason(""), reason)
		assert.Equal(t, StateClosed, b.GetMetrics().State)
	})

	t.Run("trips to open at threshold", func(t *testing.T) {
		cfg := Config{FailureThreshold: 3, Timeout: time.Minute, HalfOpenMaxCalls: 1}
		b := newWithClock(cfg, nil, clock.NewMock())

		b.RecordFailure()
		assert.Equal(t, StateClosed, b.GetMetrics().State)
		b.RecordFailure()
		assert.Equal(t, StateClosed, b.GetMetrics().State)
		b.RecordFailure()
		assert.Equal(t, StateOpen, b.GetMetrics().State)

		allow, reason := b.CanProceed()
		assert.False(t, allow)
		assert.Equal(t, ReasonOpen, reason)
	})

	t.Run("half-open after timeout admits one probe", func(t *testing.T) {
		mockClock := clock.NewMock()
		cfg := Config{FailureThreshold: 1, Timeout: 60 * time.Second, HalfOpenMaxCalls: 1}
		b := newWithClock(cfg, nil, mockClock)

		b.RecordFailure()
		assert.Equal(t, StateOpen, b.GetMetrics().State)

		allow, reason := b.CanProceed()
		assert.False(t, allow)
		assert.Equal(t, ReasonOpen, reason)

		mockClock.Add(61 * time.Second)

		allow, _ = b.CanProceed()
		assert.True(t, allow)
		assert.Equal(t, StateHalfOpen, b.GetMetrics().State)

		allow, reason = b.CanProceed()
		assert.False(t, allow)
		assert.Equal(t, ReasonHalfOpenInFlight, reason)
	})

	t.Run("half-open success closes and resets", func(t *testing.T) {
		mockClock := clock.NewMock()
		cfg := Config{FailureThreshold: 1, Timeout: time.Second, HalfOpenMaxCalls: 1}
		b := newWithClock(cfg, nil, mockClock)

		b.RecordFailure()
		mockClock.Add(2 * time.Second)
		allow, _ := b.CanProceed()
		assert.True(t, allow)

		b.RecordSuccess()
		m := b.GetMetrics()
		assert.Equal(t, StateClosed, m.State)
		assert.Equal(t, 0, m.FailureCount)
	})

	t.Run("half-open failure reopens", func(t *testing.T) {
		mockClock := clock.NewMock()
		cfg := Config{FailureThreshold: 1, Timeout: time.Second, HalfOpenMaxCalls: 1}
		b := newWithClock(cfg, nil, mockClock)

		b.RecordFailure()
		mockClock.Add(2 * time.Second)
		b.CanProceed()

		b.RecordFailure()
		assert.Equal(t, StateOpen, b.GetMetrics().State)
	})

	t.Run("reset forces closed", func(t *testing.T) {
		cfg := Config{FailureThreshold: 1, Timeout: time.Minute, HalfOpenMaxCalls: 1}
		b := newWithClock(cfg, nil, clock.NewMock())

		b.RecordFailure()
		assert.Equal(t, StateOpen, b.GetMetrics().State)

		b.Reset()
		m := b.GetMetrics()
		assert.Equal(t, StateClosed, m.State)
		assert.Equal(t, 0, m.FailureCount)
	})
}
