// Package telemetry is the Observability component (C9): a fixed set of
// Prometheus collectors plus an OpenTelemetry tracer, named and labelled
// exactly per the metric catalogue below. Metric names and label sets are
// normative; callers reach every field through the typed Recorder methods
// rather than touching the underlying collectors directly, except the
// breaker state gauge, which BreakerStateGauge hands to breaker.New.
package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	namespace = "visioncap"
)

// Recorder owns every collector named in the spec's observability catalogue
// and the tracer used to emit spans around routing and execution.
type Recorder struct {
	registry *prometheus.Registry
	tracer   trace.Tracer

	routingDecisions     *prometheus.CounterVec
	routingDecisionSecs  prometheus.Histogram
	requestsTotal        *prometheus.CounterVec
	requestDurationSecs  prometheus.Histogram
	limiterBlockedTotal  *prometheus.CounterVec
	limiterMinuteWindow  prometheus.Gauge
	limiterDayWindow     prometheus.Gauge
	limiterDailyCostUsd  prometheus.Gauge
	breakerOpensTotal    prometheus.Counter
	breakerSuccessTotal  prometheus.Counter
	breakerFailureTotal  prometheus.Counter
	breakerRejectedTotal prometheus.Counter
	breakerState         prometheus.Gauge
	cacheHitsTotal       *prometheus.CounterVec
	cloudRequestSecs     prometheus.Histogram
	imageSizeBytes       prometheus.Histogram
	responseSizeBytes    prometheus.Histogram
	inFlightRequests     prometheus.Gauge
}

// New registers every collector against a fresh registry and returns a
// Recorder ready to use. tracerName is passed through to
// otel.Tracer(tracerName).
func New(tracerName string) *Recorder {
	registry := prometheus.NewRegistry()

	r := &Recorder{
		registry: registry,
		tracer:   otel.Tracer(tracerName),

		routingDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_decisions_total",
			Help:      "Routing decisions by tier and reason.",
		}, []string{"tier", "reason"}),

		routingDecisionSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "routing_decision_duration_seconds",
			Help:      "Time spent computing a single routing decision.",
			Buckets:   prometheus.DefBuckets,
		}),

		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Caption requests by provider, model and status.",
		}, []string{"provider", "model", "status"}),

		requestDurationSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "End-to-end caption request duration.",
			Buckets:   prometheus.DefBuckets,
		}),

		limiterBlockedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "limiter_blocked_total",
			Help:      "Requests blocked by the rate limiter, by reason.",
		}, []string{"reason"}),

		limiterMinuteWindow: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "limiter_minute_window",
			Help:      "Current occupancy of the 60s admission window.",
		}),

		limiterDayWindow: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "limiter_day_window",
			Help:      "Current occupancy of the rolling 24h admission window.",
		}),

		limiterDailyCostUsd: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "limiter_daily_cost_usd",
			Help:      "Accumulated Cloud spend for the current 24h window.",
		}),

		breakerOpensTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_opens_total",
			Help:      "Circuit breaker CLOSED/HALF_OPEN -> OPEN transitions.",
		}),

		breakerSuccessTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_successes_total",
			Help:      "Circuit breaker recorded successes.",
		}),

		breakerFailureTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_failures_total",
			Help:      "Circuit breaker recorded failures.",
		}),

		breakerRejectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_rejected_total",
			Help:      "Calls refused by CanProceed while OPEN or half-open-saturated.",
		}),

		breakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Breaker state: 0=closed 1=open 2=half_open.",
		}),

		cacheHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Semantic cache lookups by hit/miss, tagged by sub-tier.",
		}, []string{"sub_tier", "hit"}),

		cloudRequestSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cloud_request_duration_seconds",
			Help:      "Cloud vision API call duration.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		imageSizeBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "image_size_bytes",
			Help:      "Size of ingested image payloads.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		}),

		responseSizeBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_size_bytes",
			Help:      "Size of HTTP response bodies.",
			Buckets:   prometheus.ExponentialBuckets(128, 4, 8),
		}),

		inFlightRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "in_flight_requests",
			Help:      "Requests currently being routed or executed.",
		}),
	}

	registry.MustRegister(
		r.routingDecisions, r.routingDecisionSecs,
		r.requestsTotal, r.requestDurationSecs,
		r.limiterBlockedTotal, r.limiterMinuteWindow, r.limiterDayWindow, r.limiterDailyCostUsd,
		r.breakerOpensTotal, r.breakerSuccessTotal, r.breakerFailureTotal, r.breakerRejectedTotal, r.breakerState,
		r.cacheHitsTotal,
		r.cloudRequestSecs, r.imageSizeBytes, r.responseSizeBytes, r.inFlightRequests,
	)

	return r
}

// Handler exposes the registry on the standard /metrics text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// BreakerStateGauge exposes the raw gauge so breaker.New can update it
// directly on every transition without routing through Recorder.
func (r *Recorder) BreakerStateGauge() prometheus.Gauge {
	return r.breakerState
}

// RecordRoutingDecision records one counter and one latency sample per
// routing decision, as required by §4.5/§4.9.
func (r *Recorder) RecordRoutingDecision(tier, reason string, decisionSeconds float64) {
	r.routingDecisions.WithLabelValues(tier, reason).Inc()
	r.routingDecisionSecs.Observe(decisionSeconds)
}

// RecordRequest records one request outcome and its end-to-end duration.
func (r *Recorder) RecordRequest(provider, model, status string, durationSeconds float64) {
	r.requestsTotal.WithLabelValues(provider, model, status).Inc()
	r.requestDurationSecs.Observe(durationSeconds)
}

// RecordLimiterBlocked records an admission refusal by reason.
func (r *Recorder) RecordLimiterBlocked(reason string) {
	r.limiterBlockedTotal.WithLabelValues(reason).Inc()
}

// SetLimiterGauges mirrors a ratelimit.Stats snapshot onto the gauges.
func (r *Recorder) SetLimiterGauges(minuteWindow, dayWindow int, dailyCostUsd float64) {
	r.limiterMinuteWindow.Set(float64(minuteWindow))
	r.limiterDayWindow.Set(float64(dayWindow))
	r.limiterDailyCostUsd.Set(dailyCostUsd)
}

// RecordBreakerOpen, RecordBreakerSuccess, RecordBreakerFailure and
// RecordBreakerRejected record the four breaker lifecycle counters.
func (r *Recorder) RecordBreakerOpen()     { r.breakerOpensTotal.Inc() }
func (r *Recorder) RecordBreakerSuccess()  { r.breakerSuccessTotal.Inc() }
func (r *Recorder) RecordBreakerFailure()  { r.breakerFailureTotal.Inc() }
func (r *Recorder) RecordBreakerRejected() { r.breakerRejectedTotal.Inc() }

// RecordCacheLookup records a semantic-cache hit or miss for a named
// sub-tier (currently only "exact", reserved for a future vector sub-tier).
func (r *Recorder) RecordCacheLookup(subTier string, hit bool) {
	hitLabel := "false"
	if hit {
		hitLabel = "true"
	}
	r.cacheHitsTotal.WithLabelValues(subTier, hitLabel).Inc()
}

// RecordCloudRequest records a completed Cloud vision API call duration.
func (r *Recorder) RecordCloudRequest(durationSeconds float64) {
	r.cloudRequestSecs.Observe(durationSeconds)
}

// RecordImageSize and RecordResponseSize record payload-size histograms.
func (r *Recorder) RecordImageSize(bytes int)    { r.imageSizeBytes.Observe(float64(bytes)) }
func (r *Recorder) RecordResponseSize(bytes int) { r.responseSizeBytes.Observe(float64(bytes)) }

// InFlightInc and InFlightDec track the in-flight request gauge around a
// request's lifetime.
func (r *Recorder) InFlightInc() { r.inFlightRequests.Inc() }
func (r *Recorder) InFlightDec() { r.inFlightRequests.Dec() }

// StartSpan opens an OpenTelemetry span named name, returning the derived
// context and the span's End func.
func (r *Recorder) StartSpan(ctx context.Context, name string) (context.Context, func()) {
	ctx, span := r.tracer.Start(ctx, name)
	return ctx, func() { span.End() }
}
