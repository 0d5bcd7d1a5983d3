package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/callflow/pkg/adapters/internal/flowops"
	"github.com/aretw0/callflow/pkg/domain"
)

// Repository implements ports.FlowRepository in memory.
// Flows are listed in creation order. Safe for concurrent use.
type Repository struct {
	mu    sync.RWMutex
	flows map[string]*domain.Flow
	order []string
}

// NewRepository creates a repository seeded with flows.
func NewRepository(flows ...domain.Flow) *Repository {
	r := &Repository{flows: make(map[string]*domain.Flow)}
	for _, f := range flows {
		c := f.Clone()
		r.flows[f.ID] = &c
		r.order = append(r.order, f.ID)
	}
	return r
}

// LoadFlow returns a deep copy of the stored flow.
func (r *Repository) LoadFlow(ctx context.Context, flowID string) (domain.Flow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.flows[flowID]
	if !ok {
		return domain.Flow{}, &domain.NotFoundError{Kind: domain.KindFlow, ID: flowID}
	}
	return f.Clone(), nil
}

// ListFlows returns the catalogue in creation order.
func (r *Repository) ListFlows(ctx context.Context) ([]domain.FlowSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.FlowSummary, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.flows[id].Summary())
	}
	return out, nil
}

// CreateFlow stores a new flow.
func (r *Repository) CreateFlow(ctx context.Context, flow domain.Flow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.flows[flow.ID]; exists {
		return &domain.ValidationError{Field: "id", Reason: fmt.Sprintf("flow %q already exists", flow.ID)}
	}
	c := flow.Clone()
	r.flows[flow.ID] = &c
	r.order = append(r.order, flow.ID)
	return nil
}

// DeleteFlow removes a flow.
func (r *Repository) DeleteFlow(ctx context.Context, flowID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.flows[flowID]; !ok {
		return &domain.NotFoundError{Kind: domain.KindFlow, ID: flowID}
	}
	delete(r.flows, flowID)
	for i, id := range r.order {
		if id == flowID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// UpdateFlowMeta applies meta to the flow.
func (r *Repository) UpdateFlowMeta(ctx context.Context, flowID string, meta domain.FlowMeta) error {
	return r.update(flowID, func(f *domain.Flow) error {
		meta.ApplyTo(f)
		return nil
	})
}

func (r *Repository) CreateNode(ctx context.Context, flowID string, node domain.FlowNode) error {
	return r.update(flowID, func(f *domain.Flow) error {
		return flowops.AddNode(f, node)
	})
}

func (r *Repository) UpdateNode(ctx context.Context, flowID, nodeID string, patch domain.NodePatch) error {
	return r.update(flowID, func(f *domain.Flow) error {
		return flowops.UpdateNode(f, nodeID, patch)
	})
}

func (r *Repository) DeleteNode(ctx context.Context, flowID, nodeID string) error {
	return r.update(flowID, func(f *domain.Flow) error {
		return flowops.DeleteNode(f, nodeID)
	})
}

func (r *Repository) CreateEdge(ctx context.Context, flowID string, edge domain.FlowEdge) error {
	return r.update(flowID, func(f *domain.Flow) error {
		return flowops.AddEdge(f, edge)
	})
}

func (r *Repository) DeleteEdge(ctx context.Context, flowID, edgeID string) error {
	return r.update(flowID, func(f *domain.Flow) error {
		return flowops.DeleteEdge(f, edgeID)
	})
}

// update mutates a copy and swaps it in only when fn succeeds.
func (r *Repository) update(flowID string, fn func(*domain.Flow) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.flows[flowID]
	if !ok {
		return &domain.NotFoundError{Kind: domain.KindFlow, ID: flowID}
	}
	c := f.Clone()
	if err := fn(&c); err != nil {
		return err
	}
	r.flows[flowID] = &c
	return nil
}
