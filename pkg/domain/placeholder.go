package domain

import (
	"regexp"
	"sort"
)

// placeholderPattern matches (name), [name] and {name}. Names may contain
// hyphens, e.g. (first-name). Square and curly brackets also take
// space-separated words such as {Order ID}; parentheses do not, so an
// ordinary parenthetical like "(please hold)" is not read as a variable.
var placeholderPattern = regexp.MustCompile(
	`\((` + fieldName + `)\)|\[(` + spacedFieldName + `)\]|\{(` + spacedFieldName + `)\}`,
)

const (
	fieldName       = `[A-Za-z_][A-Za-z0-9_-]*`
	spacedFieldName = fieldName + `(?: [A-Za-z0-9_-]+)*`
)

// ExtractPlaceholders returns the distinct variable names referenced by
// message, in order of first appearance.
func ExtractPlaceholders(message string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, m := range placeholderPattern.FindAllStringSubmatch(message, -1) {
		name := firstGroup(m)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// FlowPlaceholders aggregates the placeholders of every node of f, sorted.
func FlowPlaceholders(f Flow) []string {
	seen := make(map[string]struct{})
	for _, n := range f.Nodes {
		for _, name := range ExtractPlaceholders(n.AIMessage) {
			seen[name] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Interpolate fills placeholders in message from data. Keys are compared
// exactly first and then in normalized form (see NormalizeField). Unknown
// placeholders are left untouched.
func Interpolate(message string, data map[string]string) string {
	if len(data) == 0 {
		return message
	}
	normalized := make(map[string]string, len(data))
	for k, v := range data {
		normalized[NormalizeField(k)] = v
	}
	return placeholderPattern.ReplaceAllStringFunc(message, func(token string) string {
		name := firstGroup(placeholderPattern.FindStringSubmatch(token))
		if v, ok := data[name]; ok {
			return v
		}
		if v, ok := normalized[NormalizeField(name)]; ok {
			return v
		}
		return token
	})
}

func firstGroup(m []string) string {
	for _, g := range m[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}
