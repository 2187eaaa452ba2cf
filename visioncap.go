// Package visioncap holds the domain types shared across the caption
// pipeline: the tier/reason vocabulary of the routing cascade, the
// CaptionRecord produced by every tier, and the job/result shapes carried
// between the synchronous and asynchronous ingestion paths.
package visioncap

import (
	"time"
)

// Tier identifies one of the four caption producers in the routing cascade.
type Tier string

const (
	TierEdge  Tier = "edge"
	TierCache Tier = "cache"
	TierLocal Tier = "local"
	TierCloud Tier = "cloud"
)

// Reason explains why the router picked a given tier.
type Reason string

const (
	ReasonCacheHit          Reason = "cache_hit"
	ReasonEdgeAccepted      Reason = "edge_accepted"
	ReasonDefaultLocal      Reason = "default_local"
	ReasonLowLatencyBudget  Reason = "low_latency_budget"
	ReasonHighComplexity    Reason = "high_complexity"
	ReasonCaptionUnavailable Reason = "caption_unavailable"
)

// Visibility is the per-image access class.
type Visibility string

const (
	VisibilityPrivate     Visibility = "private"
	VisibilityPublic      Visibility = "public"
	VisibilityPublicAdmin Visibility = "public_admin"
)

// Scope is the caller-requested tenancy filter on search.
type Scope string

const (
	ScopePublic Scope = "public"
	ScopeMine   Scope = "mine"
	ScopeAll    Scope = "all"
)

// Priority is recorded on a Job but, per the baseline design, has no effect
// on dequeue order: the queue is plain FIFO.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// CaptionRecord is produced by the executor and consumed by the embed store
// and the job result slot.
type CaptionRecord struct {
	Caption    string  `json:"caption"`
	Confidence float64 `json:"confidence"`
	Origin     Tier    `json:"origin"`
	LatencyMs  int64   `json:"latency_ms"`
	CostUsd    float64 `json:"cost_usd"`
	TokensIn   int     `json:"tokens_in,omitempty"`
	TokensOut  int     `json:"tokens_out,omitempty"`
}

// RoutingDecision is the router's output, carried into the executor and,
// for async jobs, into the worker pool.
type RoutingDecision struct {
	Tier          Tier     `json:"tier"`
	Reason        Reason   `json:"reason"`
	FallbackChain []Tier   `json:"fallback_chain"`
	BudgetMs      int      `json:"budget_ms"`

	// CachedRecord is populated when Tier == TierCache.
	CachedRecord *CaptionRecord `json:"cached_record,omitempty"`

	// EdgeHint and EdgeConfidence are populated when Tier == TierEdge.
	EdgeHint       string  `json:"edge_hint,omitempty"`
	EdgeConfidence float64 `json:"edge_confidence,omitempty"`
}

// Job describes an asynchronous ingestion request. It is created on
// enqueue and mutated only by the worker that dequeues it.
type Job struct {
	JobID             string    `json:"job_id"`
	ImageBytes        []byte    `json:"-"`
	OwnerID           string    `json:"owner_id"`
	Visibility        Visibility `json:"visibility"`
	Priority          Priority  `json:"priority"`
	TextHint          string    `json:"text_hint,omitempty"`
	ClientConfidence  float64   `json:"client_confidence,omitempty"`
	HasClientHint     bool      `json:"has_client_hint"`
	SubmittedAt       time.Time `json:"submitted_at"`
}

// JobStatus is the lifecycle state of an asynchronous ingestion job.
type JobStatus string

const (
	// JobStatusQueued is returned only by the initial async-submission
	// response, before a result slot exists at all.
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// JobResult is the terminal (or in-flight) value stored in the job result
// slot, keyed by "<queue-prefix>:result:<job_id>" with a bounded TTL.
type JobResult struct {
	Status      JobStatus `json:"status"`
	ImageID     string    `json:"image_id,omitempty"`
	Caption     string    `json:"caption,omitempty"`
	Error       string    `json:"error,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ImageRecord is the durable row persisted in the embed store: the
// combination of caption, embedding vector and tenancy fields that a search
// query is ultimately filtered and scored against.
type ImageRecord struct {
	ImageID    string
	Caption    string
	Confidence float64
	Origin     Tier
	Vector     []float32
	OwnerID    string
	Visibility Visibility
	Width      int
	Height     int
	SizeBytes  int64
	Format     string
	CreatedAt  time.Time
	DeletedAt  *time.Time
}

// SearchResult is one ranked hit returned by the search planner.
type SearchResult struct {
	ImageID string  `json:"id"`
	Score   float64 `json:"score"`
	Caption string  `json:"caption"`
}
