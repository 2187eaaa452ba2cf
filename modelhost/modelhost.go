// Package modelhost defines the ModelHost capability boundary (local
// inference, cloud vision, and embedding) and ships three implementations:
// Local (HTTP to a self-hosted inference server), Cloud (Gemini vision via
// google.golang.org/genai) and Mock (deterministic, for tests).
package modelhost

import "context"

// CaptionOutcome is the raw result of one caption call, before the executor
// wraps it into a visioncap.CaptionRecord with tier/cost bookkeeping.
type CaptionOutcome struct {
	Caption   string
	TokensIn  int
	TokensOut int
}

// Host is the capability interface every tier's model call goes through.
// Implementations are resolved once at construction (not per call) and
// shared across requests; thread-safety is the implementation's contract.
type Host interface {
	// CaptionLocal runs the self-hosted model against imageBytes.
	CaptionLocal(ctx context.Context, imageBytes []byte) (CaptionOutcome, error)

	// CaptionCloud calls the cloud vision provider against imageBytes.
	CaptionCloud(ctx context.Context, imageBytes []byte) (CaptionOutcome, error)

	// EmbedImage returns an embedding vector for imageBytes.
	EmbedImage(ctx context.Context, imageBytes []byte) ([]float32, error)

	// EmbedText returns an embedding vector for text, used by the search
	// planner to compute a query vector.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// ModelName identifies the cloud model in use, for cost estimation and
	// observability labels.
	ModelName() string
}
