// Package search implements the SearchPlanner component (C10): embed the
// query text, issue a compound cosine-distance-plus-keyword-boost query
// against the EmbedStore, and apply the tenancy scope filter.
package search

import (
	"context"
	"fmt"

	"github.com/visioncap/visioncap"
	"github.com/visioncap/visioncap/modelhost"
	"github.com/visioncap/visioncap/store"
	"github.com/visioncap/visioncap/tenancy"
)

// DefaultKeywordWeight is the weight w applied to a case-insensitive
// keyword containment match, per §4.10.
const DefaultKeywordWeight = 0.2

// Planner embeds a text query and scores it against an EmbedStore.
type Planner struct {
	embedHost     modelhost.Host
	embedStore    store.EmbedStore
	keywordWeight float64
}

// New constructs a Planner. keywordWeight <= 0 falls back to
// DefaultKeywordWeight.
func New(embedHost modelhost.Host, embedStore store.EmbedStore, keywordWeight float64) *Planner {
	if keywordWeight <= 0 {
		keywordWeight = DefaultKeywordWeight
	}
	return &Planner{embedHost: embedHost, embedStore: embedStore, keywordWeight: keywordWeight}
}

// Search returns the top-k ranked hits for qText under scope. callerID is
// ignored (and may be empty) when hasCaller is false; CheckScope enforces
// that anonymous callers cannot request mine or all.
func (p *Planner) Search(ctx context.Context, qText string, k int, scope visioncap.Scope, callerID string, hasCaller bool) ([]visioncap.SearchResult, error) {
	if err := tenancy.CheckScope(scope, hasCaller); err != nil {
		return nil, err
	}

	qVec, err := p.embedHost.EmbedText(ctx, qText)
	if err != nil {
		return nil, fmt.Errorf("search: embed query text: %w", err)
	}

	results, err := p.embedStore.Search(ctx, store.SearchQuery{
		Vector:        qVec,
		QueryText:     qText,
		KeywordWeight: p.keywordWeight,
		K:             k,
		Scope:         scope,
		CallerID:      callerID,
		HasCaller:     hasCaller,
	})
	if err != nil {
		return nil, fmt.Errorf("search: query embed store: %w", err)
	}
	return results, nil
}
