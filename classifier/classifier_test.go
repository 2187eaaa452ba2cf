package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		text string
		want Result
	}{
		{"empty string", "", Result{LevelSimple, 0.0}},
		{"whitespace only", "   \t\n", Result{LevelSimple, 0.0}},
		{"abstract indicator", "capture the mood of a rainy evening", Result{LevelComplex, 0.8}},
		{"abstract indicator case-insensitive", "a SURREAL dreamscape", Result{LevelComplex, 0.8}},
		{"short concrete phrase", "a red bicycle", Result{LevelSimple, 0.2}},
		{"five tokens exactly", "one two three four five", Result{LevelSimple, 0.2}},
		{"six tokens, no indicator", "a photo of a red bicycle", Result{LevelModerate, 0.5}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Classify(c.text)
			assert.Equal(t, c.want, got)
		})
	}
}
