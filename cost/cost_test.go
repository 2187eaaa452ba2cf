package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimate(t *testing.T) {
	t.Run("known model", func(t *testing.T) {
		got := Estimate("gemini-1.5-flash", 1_000_000, 1_000_000)
		assert.InDelta(t, 0.075+0.30, got, 1e-9)
	})

	t.Run("unknown model falls back to default", func(t *testing.T) {
		got := Estimate("some-future-model", 1_000_000, 0)
		want := Estimate(defaultModel, 1_000_000, 0)
		assert.Equal(t, want, got)
	})

	t.Run("zero tokens is zero cost", func(t *testing.T) {
		assert.Equal(t, 0.0, Estimate("gemini-2.0-flash", 0, 0))
	})
}
