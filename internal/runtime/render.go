package runtime

import (
	"github.com/aretw0/callflow/pkg/domain"
)

// BannerKind classifies how a simulated call stopped.
type BannerKind string

const (
	BannerCallEnded   BannerKind = "call_ended"
	BannerTransferred BannerKind = "transferred"
	BannerNoResponses BannerKind = "no_responses"
)

// Banner is the closing notice shown when the preview reaches a terminal node.
type Banner struct {
	Kind    BannerKind `json:"kind"`
	Text    string     `json:"text"`
	Outcome string     `json:"outcome,omitempty"`
}

// TerminalBanner describes why the conversation stopped at node.
func TerminalBanner(node domain.FlowNode) Banner {
	var b Banner
	switch node.Type {
	case domain.NodeTypeEnd:
		b = Banner{Kind: BannerCallEnded, Text: "Call ended", Outcome: node.Outcome}
	case domain.NodeTypeTransfer:
		b = Banner{Kind: BannerTransferred, Text: "Transferred", Outcome: node.Outcome}
	case domain.NodeTypeStart, domain.NodeTypeQuestion, domain.NodeTypeStatement, domain.NodeTypeCapture:
		return Banner{Kind: BannerNoResponses, Text: "No responses defined"}
	default:
		return Banner{Kind: BannerNoResponses, Text: "No responses defined"}
	}
	if b.Outcome != "" {
		b.Text += " · " + b.Outcome
	}
	return b
}

// View is what a preview client shows for the current step.
type View struct {
	State    *domain.PreviewState `json:"state"`
	Node     domain.FlowNode      `json:"node"`
	Message  string               `json:"message"`
	Choices  []domain.FlowEdge    `json:"choices"`
	Terminal bool                 `json:"terminal"`
	Banner   *Banner              `json:"banner,omitempty"`

	// Reset is true when the previous cursor pointed at a deleted node and
	// the preview was restarted from the root.
	Reset bool `json:"reset,omitempty"`
}

func (e *Engine) renderMessage(node domain.FlowNode, state *domain.PreviewState) string {
	return domain.Interpolate(node.AIMessage, state.Contact)
}
