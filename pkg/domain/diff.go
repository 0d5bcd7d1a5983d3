package domain

// ChangeSet represents the changes between two versions of a flow.
// It is designed to be serialized to JSON for partial updates on the client
// and replayed onto a persistence backend.
type ChangeSet struct {
	// FlowID is always present to identify the target.
	FlowID string `json:"flow_id"`

	AddedNodes   []FlowNode `json:"added_nodes,omitempty"`
	UpdatedNodes []FlowNode `json:"updated_nodes,omitempty"`
	RemovedNodes []string   `json:"removed_nodes,omitempty"`

	AddedEdges   []FlowEdge `json:"added_edges,omitempty"`
	RemovedEdges []string   `json:"removed_edges,omitempty"`

	Meta *FlowMeta `json:"meta,omitempty"`
}

// IsEmpty checks if the change set contains any actionable changes.
func (c *ChangeSet) IsEmpty() bool {
	return c == nil || (len(c.AddedNodes) == 0 &&
		len(c.UpdatedNodes) == 0 &&
		len(c.RemovedNodes) == 0 &&
		len(c.AddedEdges) == 0 &&
		len(c.RemovedEdges) == 0 &&
		(c.Meta == nil || c.Meta.IsEmpty()))
}

// Merge appends other onto c. Used to fold the steps of a composite
// operation (e.g. node + edge of a branch) into one change set.
func (c *ChangeSet) Merge(other ChangeSet) {
	c.AddedNodes = append(c.AddedNodes, other.AddedNodes...)
	c.UpdatedNodes = append(c.UpdatedNodes, other.UpdatedNodes...)
	c.RemovedNodes = append(c.RemovedNodes, other.RemovedNodes...)
	c.AddedEdges = append(c.AddedEdges, other.AddedEdges...)
	c.RemovedEdges = append(c.RemovedEdges, other.RemovedEdges...)
	if other.Meta != nil {
		if c.Meta == nil {
			c.Meta = &FlowMeta{}
		}
		if other.Meta.Name != nil {
			c.Meta.Name = other.Meta.Name
		}
		if other.Meta.Description != nil {
			c.Meta.Description = other.Meta.Description
		}
		if other.Meta.IsActive != nil {
			c.Meta.IsActive = other.Meta.IsActive
		}
	}
}

// Diff calculates the difference between oldFlow and newFlow.
// If oldFlow is nil, it returns a change set representing the entire newFlow (initial load).
// Returns nil when nothing changed.
func Diff(oldFlow, newFlow *Flow) *ChangeSet {
	if newFlow == nil {
		return nil
	}

	diff := &ChangeSet{FlowID: newFlow.ID}

	if oldFlow == nil {
		diff.AddedNodes = append(diff.AddedNodes, newFlow.Nodes...)
		diff.AddedEdges = append(diff.AddedEdges, newFlow.Edges...)
		diff.Meta = metaOf(*newFlow)
		if diff.IsEmpty() {
			return nil
		}
		return diff
	}

	diff.AddedNodes, diff.UpdatedNodes, diff.RemovedNodes = diffNodes(oldFlow.Nodes, newFlow.Nodes)
	diff.AddedEdges, diff.RemovedEdges = diffEdges(oldFlow.Edges, newFlow.Edges)
	diff.Meta = diffMeta(*oldFlow, *newFlow)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func metaOf(f Flow) *FlowMeta {
	name, desc, active := f.Name, f.Description, f.IsActive
	return &FlowMeta{Name: &name, Description: &desc, IsActive: &active}
}

func diffMeta(old, new Flow) *FlowMeta {
	meta := &FlowMeta{}
	if old.Name != new.Name {
		meta.Name = &new.Name
	}
	if old.Description != new.Description {
		meta.Description = &new.Description
	}
	if old.IsActive != new.IsActive {
		meta.IsActive = &new.IsActive
	}
	if meta.IsEmpty() {
		return nil
	}
	return meta
}

func diffNodes(old, new []FlowNode) (added, updated []FlowNode, removed []string) {
	before := make(map[string]FlowNode, len(old))
	for _, n := range old {
		before[n.ID] = n
	}
	after := make(map[string]struct{}, len(new))
	for _, n := range new {
		after[n.ID] = struct{}{}
		prev, ok := before[n.ID]
		switch {
		case !ok:
			added = append(added, n)
		case prev != n:
			updated = append(updated, n)
		}
	}
	for _, n := range old {
		if _, ok := after[n.ID]; !ok {
			removed = append(removed, n.ID)
		}
	}
	return added, updated, removed
}

// diffEdges treats a changed edge as remove + add; edges are never patched in place.
func diffEdges(old, new []FlowEdge) (added []FlowEdge, removed []string) {
	before := make(map[string]FlowEdge, len(old))
	for _, e := range old {
		before[e.ID] = e
	}
	after := make(map[string]FlowEdge, len(new))
	for _, e := range new {
		after[e.ID] = e
	}
	for _, e := range old {
		if cur, ok := after[e.ID]; !ok || cur != e {
			removed = append(removed, e.ID)
		}
	}
	for _, e := range new {
		if prev, ok := before[e.ID]; !ok || prev != e {
			added = append(added, e)
		}
	}
	return added, removed
}
