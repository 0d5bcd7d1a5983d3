// Package tui renders preview sessions for the terminal.
package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/callflow/internal/runtime"
	"github.com/aretw0/callflow/pkg/domain"
)

// speakerIcon returns the prefix of a transcript line.
func speakerIcon(s domain.Speaker) string {
	switch s {
	case domain.SpeakerAI:
		return "🤖 **AI**"
	case domain.SpeakerCustomer:
		return "🙋 **Customer**"
	default:
		return "**" + string(s) + "**"
	}
}

func nodeIcon(t domain.NodeType) string {
	switch t {
	case domain.NodeTypeStart:
		return "▶"
	case domain.NodeTypeQuestion:
		return "?"
	case domain.NodeTypeStatement:
		return "💬"
	case domain.NodeTypeCapture:
		return "✎"
	case domain.NodeTypeTransfer:
		return "☎"
	case domain.NodeTypeEnd:
		return "■"
	default:
		return "•"
	}
}

// TranscriptMarkdown renders the call so far as markdown.
func TranscriptMarkdown(entries []domain.TranscriptEntry) string {
	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "%s: %s\n\n", speakerIcon(e.Speaker), e.Text)
	}
	return sb.String()
}

// ViewMarkdown renders the current step: the node, the numbered choices and,
// once the call stops, nothing but the node header.
func ViewMarkdown(v *runtime.View) string {
	var sb strings.Builder
	if v.Reset {
		sb.WriteString("> _The flow changed under this preview; restarting from the root._\n\n")
	}
	fmt.Fprintf(&sb, "### %s %s\n\n", nodeIcon(v.Node.Type), v.Node.Label)
	if v.Terminal {
		return sb.String()
	}
	for i, c := range v.Choices {
		fmt.Fprintf(&sb, "%d. **%s**\n", i+1, c.DisplayLabel())
	}
	return sb.String()
}
