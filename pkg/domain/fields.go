package domain

import (
	"strings"
	"unicode"
)

// FieldMatch is the compatibility report between the variables a flow needs
// and the fields a contact batch provides.
type FieldMatch struct {
	Matched []string `json:"matched"`
	Missing []string `json:"missing"`
	Extra   []string `json:"extra"`
}

// Compatible reports whether every variable can be filled.
func (m FieldMatch) Compatible() bool {
	return len(m.Missing) == 0
}

// NormalizeField lowercases s and drops whitespace, '_' and '-', so that
// "Order ID", "order_id" and "order-id" compare equal.
func NormalizeField(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsSpace(r) || r == '_' || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// MatchFields compares flow variables against batch fields.
// Matched and Missing are variables; Extra are batch fields no variable uses.
// A flow without variables yields an empty report.
func MatchFields(variables, fields []string) FieldMatch {
	out := FieldMatch{Matched: []string{}, Missing: []string{}, Extra: []string{}}
	if len(variables) == 0 {
		return out
	}

	available := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		available[NormalizeField(f)] = struct{}{}
	}

	used := make(map[string]struct{}, len(variables))
	for _, v := range variables {
		norm := NormalizeField(v)
		if _, ok := available[norm]; ok {
			out.Matched = append(out.Matched, v)
			used[norm] = struct{}{}
		} else {
			out.Missing = append(out.Missing, v)
		}
	}
	for _, f := range fields {
		if _, ok := used[NormalizeField(f)]; !ok {
			out.Extra = append(out.Extra, f)
		}
	}
	return out
}
