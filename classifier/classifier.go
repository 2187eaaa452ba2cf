// Package classifier rates the complexity of a text hint (edge caption or
// search query) with a pure, deterministic rule set. This is a literal
// closed-set token scan rather than real NLP, so it has no third-party
// dependency — see DESIGN.md.
package classifier

import "strings"

// Level is the coarse complexity bucket.
type Level string

const (
	LevelSimple   Level = "simple"
	LevelModerate Level = "moderate"
	LevelComplex  Level = "complex"
)

// Result is the classifier's output.
type Result struct {
	Level Level
	Score float64
}

// abstractIndicators is the closed set of tokens that mark a hint as
// conceptually abstract rather than concretely descriptive.
var abstractIndicators = map[string]struct{}{
	"atmosphere":  {},
	"mood":        {},
	"feeling":     {},
	"reminiscent": {},
	"style":       {},
	"aesthetic":   {},
	"vibe":        {},
	"essence":     {},
	"context":     {},
	"emotional":   {},
	"abstract":    {},
	"surreal":     {},
}

// Classify evaluates the rules in order and returns the first match.
func Classify(text string) Result {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Result{Level: LevelSimple, Score: 0.0}
	}

	tokens := strings.Fields(trimmed)

	for _, tok := range tokens {
		if _, ok := abstractIndicators[strings.ToLower(tok)]; ok {
			return Result{Level: LevelComplex, Score: 0.8}
		}
	}

	if len(tokens) <= 5 {
		return Result{Level: LevelSimple, Score: 0.2}
	}

	return Result{Level: LevelModerate, Score: 0.5}
}
