package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeType_Terminal(t *testing.T) {
	terminal := map[NodeType]bool{
		NodeTypeStart:     false,
		NodeTypeQuestion:  false,
		NodeTypeStatement: false,
		NodeTypeEnd:       true,
		NodeTypeTransfer:  true,
		NodeTypeCapture:   false,
	}
	require.Len(t, NodeTypes, len(terminal))
	for _, nt := range NodeTypes {
		assert.True(t, nt.Valid(), nt)
		assert.Equal(t, terminal[nt], nt.IsTerminal(), nt)
	}
	assert.False(t, NodeType("menu").Valid())
	assert.False(t, NodeType("menu").IsTerminal())
}

func TestParseNodeType(t *testing.T) {
	nt, err := ParseNodeType("capture")
	require.NoError(t, err)
	assert.Equal(t, NodeTypeCapture, nt)

	_, err = ParseNodeType("menu")
	assert.ErrorIs(t, err, ErrValidation)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "node_type", verr.Field)
}

func TestNodePatch_ApplyTo(t *testing.T) {
	label := "Confirm"
	end := NodeTypeEnd
	n := FlowNode{ID: "n1", Label: "Old", AIMessage: "keep", Type: NodeTypeQuestion}

	out := NodePatch{Label: &label, Type: &end}.ApplyTo(n)

	assert.Equal(t, "Confirm", out.Label)
	assert.Equal(t, NodeTypeEnd, out.Type)
	assert.Equal(t, "keep", out.AIMessage)
	assert.Equal(t, "Old", n.Label, "original must not be mutated")
	assert.True(t, NodePatch{}.IsEmpty())
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&ValidationError{Field: "x", Reason: "y"}, "validation"},
		{&NotFoundError{Kind: KindNode, ID: "n"}, "not_found"},
		{&InvariantError{Op: "remove_node", Reason: "root"}, "invariant"},
		{&InvalidTransitionError{EdgeID: "e"}, "invalid_transition"},
		{&TerminalNodeError{NodeID: "n", Type: NodeTypeEnd}, "terminal_node"},
		{ErrNoMatch, "no_match"},
		{ErrSessionNotFound, "not_found"},
		{errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorKind(tt.err), tt.err.Error())
	}
}
