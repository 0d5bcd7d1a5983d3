package domain

// FlowEdge is a response branch: the customer says ConditionValue while the
// call sits on FromNodeID, and the agent moves to ToNodeID.
type FlowEdge struct {
	ID             string `json:"id" yaml:"id" mapstructure:"id"`
	FromNodeID     string `json:"from_node_id" yaml:"from_node_id" mapstructure:"from_node_id"`
	ToNodeID       string `json:"to_node_id" yaml:"to_node_id" mapstructure:"to_node_id"`
	ConditionValue string `json:"condition_value" yaml:"condition_value" mapstructure:"condition_value"`
	Label          string `json:"label,omitempty" yaml:"label,omitempty" mapstructure:"label"`
}

// DisplayLabel returns the label, falling back to the condition value.
func (e FlowEdge) DisplayLabel() string {
	if e.Label != "" {
		return e.Label
	}
	return e.ConditionValue
}
