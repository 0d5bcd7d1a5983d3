package domain

// PreviewStatus tells whether a simulated call can still advance.
type PreviewStatus string

const (
	PreviewActive     PreviewStatus = "active"     // Waiting for a customer response
	PreviewTerminated PreviewStatus = "terminated" // Terminal node reached
)

// Speaker identifies who said a transcript line.
type Speaker string

const (
	SpeakerAI       Speaker = "ai"
	SpeakerCustomer Speaker = "customer"
)

// TranscriptEntry is one line of a simulated call.
type TranscriptEntry struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
	NodeID  string  `json:"node_id,omitempty"`
	EdgeID  string  `json:"edge_id,omitempty"`
}

// PreviewState is the runtime snapshot of a simulated call.
// It lives apart from the graph: editing the flow never rewrites it.
type PreviewState struct {
	SessionID string `json:"session_id"`
	FlowID    string `json:"flow_id"`

	// CurrentNodeID is the cursor.
	CurrentNodeID string        `json:"current_node_id"`
	Status        PreviewStatus `json:"status"`

	Transcript []TranscriptEntry `json:"transcript"`

	// History tracks the visited node ids, including revisits through cycles.
	History []string `json:"history"`

	// Captured holds answers recorded by capture nodes, keyed by capture field.
	Captured map[string]string `json:"captured,omitempty"`

	// Contact is the contact data used to fill message placeholders.
	Contact map[string]string `json:"contact,omitempty"`
}

// NewPreviewState creates a clean state positioned on rootID.
func NewPreviewState(sessionID, flowID, rootID string) *PreviewState {
	return &PreviewState{
		SessionID:     sessionID,
		FlowID:        flowID,
		CurrentNodeID: rootID,
		Status:        PreviewActive,
		Transcript:    []TranscriptEntry{},
		History:       []string{rootID},
		Captured:      make(map[string]string),
		Contact:       make(map[string]string),
	}
}

// Clone returns a deep copy so transitions never alias the previous state.
func (s *PreviewState) Clone() *PreviewState {
	if s == nil {
		return nil
	}
	out := *s
	out.Transcript = append([]TranscriptEntry(nil), s.Transcript...)
	out.History = append([]string(nil), s.History...)
	out.Captured = make(map[string]string, len(s.Captured))
	for k, v := range s.Captured {
		out.Captured[k] = v
	}
	out.Contact = make(map[string]string, len(s.Contact))
	for k, v := range s.Contact {
		out.Contact[k] = v
	}
	return &out
}

// Terminated reports whether the simulated call is over.
func (s *PreviewState) Terminated() bool {
	return s.Status == PreviewTerminated
}
