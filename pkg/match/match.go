// Package match maps free-text customer utterances onto response branches.
//
// The Exact matcher is deliberately literal: it compares a normalized form
// of the utterance against each edge's condition value and label. Anything
// smarter (fuzzy, embedding or LLM based) plugs in through
// ports.UtteranceMatcher.
package match

import (
	"context"
	"strings"
	"unicode"

	"github.com/aretw0/callflow/pkg/domain"
)

// Exact matches utterances that equal a condition value or label after
// normalization. The first edge in insertion order wins.
type Exact struct{}

// NewExact returns the default matcher.
func NewExact() *Exact {
	return &Exact{}
}

// Match implements ports.UtteranceMatcher.
func (m *Exact) Match(_ context.Context, edges []domain.FlowEdge, utterance string) (domain.FlowEdge, bool) {
	want := Normalize(utterance)
	if want == "" {
		return domain.FlowEdge{}, false
	}
	for _, e := range edges {
		if Normalize(e.ConditionValue) == want {
			return e, true
		}
	}
	for _, e := range edges {
		if e.Label != "" && Normalize(e.Label) == want {
			return e, true
		}
	}
	return domain.FlowEdge{}, false
}

// Normalize lowercases s, strips punctuation and quotes, and collapses runs
// of whitespace, so `"Yes!"` and `yes` compare equal.
func Normalize(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			continue
		default:
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		}
	}
	return b.String()
}
