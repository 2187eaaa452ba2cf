package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/visioncap/visioncap"
	"github.com/visioncap/visioncap/semcache"
	"github.com/visioncap/visioncap/state"
)

func newTestRouter(t *testing.T) (*Router, func()) {
	backing, cleanup := state.NewMemoryManager(1024 * 1024)
	cache := semcache.New(backing, semcache.DefaultTTL, nil)
	return New(cache, nil, nil), cleanup
}

func TestRoute(t *testing.T) {
	t.Run("S1 cache hit", func(t *testing.T) {
		r, cleanup := newTestRouter(t)
		defer cleanup()

		image := []byte("image-bytes")
		primed := visioncap.CaptionRecord{Caption: "c", Origin: visioncap.TierCloud, Confidence: 1.0}
		r.cache.Store(context.Background(), image, primed)

		decision := r.Route(context.Background(), image, 600, "", 0, false)
		assert.Equal(t, visioncap.TierCache, decision.Tier)
		assert.Equal(t, visioncap.ReasonCacheHit, decision.Reason)
		assert.Empty(t, decision.FallbackChain)
		if assert.NotNil(t, decision.CachedRecord) {
			assert.Equal(t, "c", decision.CachedRecord.Caption)
		}
	})

	t.Run("S2 edge accepted", func(t *testing.T) {
		r, cleanup := newTestRouter(t)
		defer cleanup()

		decision := r.Route(context.Background(), []byte("img"), 600, "a red shoe", 0.95, true)
		assert.Equal(t, visioncap.TierEdge, decision.Tier)
		assert.Equal(t, visioncap.ReasonEdgeAccepted, decision.Reason)
		assert.Equal(t, []visioncap.Tier{visioncap.TierLocal}, decision.FallbackChain)
		assert.Equal(t, "a red shoe", decision.EdgeHint)
		assert.Equal(t, 0.95, decision.EdgeConfidence)
	})

	t.Run("S3 complexity push", func(t *testing.T) {
		r, cleanup := newTestRouter(t)
		defer cleanup()

		decision := r.Route(context.Background(), []byte("img"), 600, "a melancholic cyberpunk atmosphere", 0, false)
		assert.Equal(t, visioncap.TierCloud, decision.Tier)
		assert.Equal(t, visioncap.ReasonHighComplexity, decision.Reason)
		assert.Equal(t, []visioncap.Tier{visioncap.TierLocal}, decision.FallbackChain)
	})

	t.Run("S4 tight budget", func(t *testing.T) {
		r, cleanup := newTestRouter(t)
		defer cleanup()

		decision := r.Route(context.Background(), []byte("img"), 150, "", 0, false)
		assert.Equal(t, visioncap.TierLocal, decision.Tier)
		assert.Equal(t, visioncap.ReasonLowLatencyBudget, decision.Reason)
	})

	t.Run("default local", func(t *testing.T) {
		r, cleanup := newTestRouter(t)
		defer cleanup()

		decision := r.Route(context.Background(), []byte("img"), 600, "", 0, false)
		assert.Equal(t, visioncap.TierLocal, decision.Tier)
		assert.Equal(t, visioncap.ReasonDefaultLocal, decision.Reason)
		assert.Equal(t, []visioncap.Tier{visioncap.TierCloud}, decision.FallbackChain)
	})

	t.Run("edge rule requires both confidence and simple classification", func(t *testing.T) {
		r, cleanup := newTestRouter(t)
		defer cleanup()

		// confidence too low
		decision := r.Route(context.Background(), []byte("img"), 600, "a red shoe", 0.5, true)
		assert.NotEqual(t, visioncap.TierEdge, decision.Tier)

		// hint present but no client confidence supplied at all
		decision = r.Route(context.Background(), []byte("img"), 600, "a red shoe", 0, false)
		assert.NotEqual(t, visioncap.TierEdge, decision.Tier)
	})

	t.Run("cache probe takes priority over every other rule", func(t *testing.T) {
		r, cleanup := newTestRouter(t)
		defer cleanup()

		image := []byte("img")
		r.cache.Store(context.Background(), image, visioncap.CaptionRecord{Caption: "cached"})

		decision := r.Route(context.Background(), image, 600, "a melancholic cyberpunk atmosphere", 0.95, true)
		assert.Equal(t, visioncap.TierCache, decision.Tier)
	})
}
