// Package router implements the Router component (C5): the deterministic
// five-rule decision table that picks a tier and fallback chain for one
// caption request, consulting only the semantic cache and the complexity
// classifier before deciding.
package router

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/visioncap/visioncap"
	"github.com/visioncap/visioncap/classifier"
	"github.com/visioncap/visioncap/semcache"
	"github.com/visioncap/visioncap/telemetry"
)

// Router is stateless beyond its collaborators; a single instance is safe
// to share across concurrent requests.
type Router struct {
	cache  *semcache.Cache
	logger *zap.SugaredLogger
	rec    *telemetry.Recorder
}

// New constructs a Router. rec may be nil in tests that don't care about
// metric emission.
func New(cache *semcache.Cache, logger *zap.SugaredLogger, rec *telemetry.Recorder) *Router {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Router{cache: cache, logger: logger, rec: rec}
}

// Route is deterministic for identical inputs modulo cache state. It does
// not call models, limiters or breakers — only the single cache probe.
// hasClientConfidence reports whether the caller supplied a client
// confidence value alongside textHint (the two optional fields of §3's
// RoutingDecision metadata are independent: a hint may arrive with no
// confidence, though the edge-acceptance rule requires both).
func (r *Router) Route(ctx context.Context, imageBytes []byte, budgetMs int, textHint string, clientConfidence float64, hasClientConfidence bool) visioncap.RoutingDecision {
	start := time.Now()
	decision := r.decide(ctx, imageBytes, budgetMs, textHint, clientConfidence, hasClientConfidence)
	elapsed := time.Since(start)

	if r.rec != nil {
		r.rec.RecordRoutingDecision(string(decision.Tier), string(decision.Reason), elapsed.Seconds())
	}
	return decision
}

func (r *Router) decide(ctx context.Context, imageBytes []byte, budgetMs int, textHint string, clientConfidence float64, hasClientConfidence bool) visioncap.RoutingDecision {
	// 1. Cache probe.
	if r.cache != nil {
		if cached, err := r.cache.Lookup(ctx, imageBytes); err == nil && cached != nil {
			if r.rec != nil {
				r.rec.RecordCacheLookup("exact", true)
			}
			return visioncap.RoutingDecision{
				Tier:          visioncap.TierCache,
				Reason:        visioncap.ReasonCacheHit,
				FallbackChain: nil,
				BudgetMs:      budgetMs,
				CachedRecord:  cached,
			}
		}
		if r.rec != nil {
			r.rec.RecordCacheLookup("exact", false)
		}
	}

	hintClassification := classifier.Classify(textHint)
	hasTextHint := textHint != ""

	// 2. Edge acceptance.
	if hasTextHint && hasClientConfidence && clientConfidence > 0.8 && hintClassification.Level == classifier.LevelSimple {
		return visioncap.RoutingDecision{
			Tier:           visioncap.TierEdge,
			Reason:         visioncap.ReasonEdgeAccepted,
			FallbackChain:  []visioncap.Tier{visioncap.TierLocal},
			BudgetMs:       budgetMs,
			EdgeHint:       textHint,
			EdgeConfidence: clientConfidence,
		}
	}

	// 3. Complexity push.
	if hasTextHint && hintClassification.Score > 0.7 {
		return visioncap.RoutingDecision{
			Tier:          visioncap.TierCloud,
			Reason:        visioncap.ReasonHighComplexity,
			FallbackChain: []visioncap.Tier{visioncap.TierLocal},
			BudgetMs:      budgetMs,
		}
	}

	// 4. Budget floor.
	if budgetMs < 200 {
		return visioncap.RoutingDecision{
			Tier:          visioncap.TierLocal,
			Reason:        visioncap.ReasonLowLatencyBudget,
			FallbackChain: []visioncap.Tier{visioncap.TierCloud},
			BudgetMs:      budgetMs,
		}
	}

	// 5. Default.
	return visioncap.RoutingDecision{
		Tier:          visioncap.TierLocal,
		Reason:        visioncap.ReasonDefaultLocal,
		FallbackChain: []visioncap.Tier{visioncap.TierCloud},
		BudgetMs:      budgetMs,
	}
}
