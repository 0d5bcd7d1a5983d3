package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractPlaceholders(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    []string
	}{
		{
			name:    "All Three Bracket Styles",
			message: "Hi (name), your order [order_id] ships {date}",
			want:    []string{"name", "order_id", "date"},
		},
		{
			name:    "Duplicates Collapse",
			message: "(name)? Is that you, {name}?",
			want:    []string{"name"},
		},
		{
			name:    "Plain Parenthetical Is Not A Variable",
			message: "One moment (please hold) while I check",
			want:    []string{},
		},
		{
			name:    "Hyphenated And Spaced Names",
			message: "Hi (first-name), order {Order ID} for [clinic name]",
			want:    []string{"first-name", "Order ID", "clinic name"},
		},
		{
			name:    "No Placeholders",
			message: "Thanks for your time.",
			want:    []string{},
		},
		{
			name:    "Mismatched Brackets Ignored",
			message: "(name] and [date}",
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractPlaceholders(tt.message))
		})
	}
}

func TestFlowPlaceholders_SortedUnion(t *testing.T) {
	f := Flow{Nodes: []FlowNode{
		{ID: "a", AIMessage: "Hello (name)"},
		{ID: "b", AIMessage: "Your appointment is on {date} at [clinic]"},
		{ID: "c", AIMessage: "Bye (name)"},
	}}

	assert.Equal(t, []string{"clinic", "date", "name"}, FlowPlaceholders(f))
}

func TestInterpolate(t *testing.T) {
	data := map[string]string{"name": "Ada", "Order ID": "A-42"}

	got := Interpolate("Hi (name), order [order_id] ships {date}", data)
	assert.Equal(t, "Hi Ada, order A-42 ships {date}", got)

	assert.Equal(t, "Hi (name)", Interpolate("Hi (name)", nil))

	spelled := map[string]string{"first_name": "Ada", "order_id": "A-42"}
	assert.Equal(t, "Hi Ada, order A-42", Interpolate("Hi (first-name), order {Order ID}", spelled))
	assert.Equal(t, "One moment (please hold)", Interpolate("One moment (please hold)", spelled))
}
