package ports

import (
	"context"

	"github.com/aretw0/callflow/pkg/domain"
)

// FlowRepository is the persistence service contract. Every call is fallible
// and the editor treats it as a side effect applied after the in-memory
// mutation succeeded.
type FlowRepository interface {
	FlowLoader

	// CreateFlow stores a new flow (normally empty-with-root).
	CreateFlow(ctx context.Context, flow domain.Flow) error

	// DeleteFlow removes the flow with all its nodes and edges.
	DeleteFlow(ctx context.Context, flowID string) error

	// UpdateFlowMeta renames, describes or toggles a flow.
	UpdateFlowMeta(ctx context.Context, flowID string, meta domain.FlowMeta) error

	CreateNode(ctx context.Context, flowID string, node domain.FlowNode) error
	UpdateNode(ctx context.Context, flowID, nodeID string, patch domain.NodePatch) error

	// DeleteNode removes the node and cascades to its incident edges.
	DeleteNode(ctx context.Context, flowID, nodeID string) error

	CreateEdge(ctx context.Context, flowID string, edge domain.FlowEdge) error
	DeleteEdge(ctx context.Context, flowID, edgeID string) error
}
