// Package executor implements the CaptionExecutor component (C6): given a
// RoutingDecision it runs the primary tier, falling through the decision's
// fallback chain strictly sequentially on failure, consulting the rate
// limiter and circuit breaker before any Cloud attempt.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/visioncap/visioncap"
	"github.com/visioncap/visioncap/breaker"
	"github.com/visioncap/visioncap/cost"
	"github.com/visioncap/visioncap/modelhost"
	"github.com/visioncap/visioncap/ratelimit"
	"github.com/visioncap/visioncap/semcache"
	"github.com/visioncap/visioncap/telemetry"
)

// ErrCaptionUnavailable is returned when every tier in the primary-plus-
// fallback chain fails.
var ErrCaptionUnavailable = errors.New("caption_unavailable")

// conservativeCloudEstimateUSD is the admission-time cost estimate used
// before the real token count is known.
const conservativeCloudEstimateUSD = 0.001

// cloudTimeout is the hard timeout wrapped around every Cloud call.
const cloudTimeout = 30 * time.Second

// Executor wires together the tier implementations and the admission
// collaborators (C1/C2/C3) that guard the Cloud tier.
type Executor struct {
	local   modelhost.Host
	cloud   modelhost.Host
	limiter *ratelimit.Limiter
	breaker *breaker.Breaker
	cache   *semcache.Cache
	logger  *zap.SugaredLogger
	rec     *telemetry.Recorder
}

// New constructs an Executor. local and cloud are resolved once at
// construction, per the capability-interface design: a single Host handle
// per tier, shared across every call.
func New(local, cloud modelhost.Host, limiter *ratelimit.Limiter, cb *breaker.Breaker, cache *semcache.Cache, logger *zap.SugaredLogger, rec *telemetry.Recorder) *Executor {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Executor{local: local, cloud: cloud, limiter: limiter, breaker: cb, cache: cache, logger: logger, rec: rec}
}

// Execute runs decision's primary tier, falling through its fallback chain
// on failure, and returns the resulting CaptionRecord. The only error
// returned is ErrCaptionUnavailable, when every attempted tier failed.
func (e *Executor) Execute(ctx context.Context, decision visioncap.RoutingDecision, imageBytes []byte, textHint string, clientConfidence float64, hasClientConfidence bool) (visioncap.CaptionRecord, error) {
	tiers := append([]visioncap.Tier{decision.Tier}, decision.FallbackChain...)

	var lastErr error
	for _, tier := range tiers {
		record, err := e.runTier(ctx, tier, decision, imageBytes, textHint, clientConfidence, hasClientConfidence)
		if err == nil {
			return record, nil
		}
		lastErr = err
		e.logger.Warnw("caption tier failed, trying next in fallback chain", "tier", tier, "error", err)
	}

	e.logger.Errorw("every tier in the fallback chain failed", "error", lastErr)
	return visioncap.CaptionRecord{}, ErrCaptionUnavailable
}

func (e *Executor) runTier(ctx context.Context, tier visioncap.Tier, decision visioncap.RoutingDecision, imageBytes []byte, textHint string, clientConfidence float64, hasClientConfidence bool) (visioncap.CaptionRecord, error) {
	switch tier {
	case visioncap.TierCache:
		return e.runCache(decision)
	case visioncap.TierEdge:
		return e.runEdge(textHint, clientConfidence, hasClientConfidence)
	case visioncap.TierLocal:
		return e.runLocal(ctx, imageBytes)
	case visioncap.TierCloud:
		return e.runCloud(ctx, imageBytes)
	default:
		return visioncap.CaptionRecord{}, fmt.Errorf("executor: unknown tier %q", tier)
	}
}

func (e *Executor) runCache(decision visioncap.RoutingDecision) (visioncap.CaptionRecord, error) {
	if decision.CachedRecord == nil {
		return visioncap.CaptionRecord{}, fmt.Errorf("executor: cache tier selected with no cached record")
	}
	record := *decision.CachedRecord
	record.Origin = visioncap.TierCache
	return record, nil
}

func (e *Executor) runEdge(textHint string, clientConfidence float64, hasClientConfidence bool) (visioncap.CaptionRecord, error) {
	if textHint == "" {
		return visioncap.CaptionRecord{}, fmt.Errorf("executor: edge tier selected with no text hint")
	}
	confidence := 1.0
	if hasClientConfidence {
		confidence = clientConfidence
	}
	return visioncap.CaptionRecord{
		Caption:    textHint,
		Confidence: confidence,
		Origin:     visioncap.TierEdge,
		CostUsd:    0,
	}, nil
}

func (e *Executor) runLocal(ctx context.Context, imageBytes []byte) (visioncap.CaptionRecord, error) {
	start := time.Now()
	outcome, err := e.local.CaptionLocal(ctx, imageBytes)
	if err != nil {
		return visioncap.CaptionRecord{}, fmt.Errorf("local caption: %w", err)
	}
	return visioncap.CaptionRecord{
		Caption:    outcome.Caption,
		Confidence: localConfidence(outcome.Caption),
		Origin:     visioncap.TierLocal,
		LatencyMs:  time.Since(start).Milliseconds(),
		CostUsd:    0,
	}, nil
}

// localConfidence is the length-penalised proxy: conf = clamp(0.9 - 0.005 *
// max(0, len(caption) - 15), 0, 1).
func localConfidence(caption string) float64 {
	penalty := 0.005 * float64(max(0, len(caption)-15))
	conf := 0.9 - penalty
	if conf < 0 {
		return 0
	}
	if conf > 1 {
		return 1
	}
	return conf
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (e *Executor) runCloud(ctx context.Context, imageBytes []byte) (visioncap.CaptionRecord, error) {
	if allow, reason := e.breaker.CanProceed(); !allow {
		if e.rec != nil {
			e.rec.RecordBreakerRejected()
		}
		return visioncap.CaptionRecord{}, fmt.Errorf("cloud tier: breaker denied call: %s", reason)
	}

	if allow, reason := e.limiter.Admit(conservativeCloudEstimateUSD); !allow {
		if e.rec != nil {
			e.rec.RecordLimiterBlocked(string(reason))
		}
		return visioncap.CaptionRecord{}, fmt.Errorf("cloud tier: limiter denied call: %s", reason)
	}

	callCtx, cancel := context.WithTimeout(ctx, cloudTimeout)
	defer cancel()

	start := time.Now()
	outcome, err := e.cloud.CaptionCloud(callCtx, imageBytes)
	elapsed := time.Since(start)

	if err != nil {
		e.breaker.RecordFailure()
		if e.rec != nil {
			e.rec.RecordBreakerFailure()
		}
		return visioncap.CaptionRecord{}, fmt.Errorf("cloud caption: %w", err)
	}

	e.breaker.RecordSuccess()
	if e.rec != nil {
		e.rec.RecordBreakerSuccess()
		e.rec.RecordCloudRequest(elapsed.Seconds())
	}

	actualCost := cost.Estimate(e.cloud.ModelName(), outcome.TokensIn, outcome.TokensOut)
	e.limiter.Record(actualCost)

	record := visioncap.CaptionRecord{
		Caption:    outcome.Caption,
		Confidence: 1.0,
		Origin:     visioncap.TierCloud,
		LatencyMs:  elapsed.Milliseconds(),
		CostUsd:    actualCost,
		TokensIn:   outcome.TokensIn,
		TokensOut:  outcome.TokensOut,
	}

	if e.cache != nil {
		e.cache.Store(ctx, imageBytes, record)
	}

	return record, nil
}
