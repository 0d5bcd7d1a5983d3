package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/callflow/pkg/adapters/internal/flowops"
	"github.com/aretw0/callflow/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// maxTxRetries bounds optimistic retries when a flow changes under WATCH.
const maxTxRetries = 10

// Repository implements ports.FlowRepository using Redis.
// Each flow is one JSON document; a sorted set keeps the catalogue in
// creation order.
type Repository struct {
	client *backend.Client
	prefix string
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*Repository)

// WithFlowPrefix sets the key prefix for flows.
func WithFlowPrefix(prefix string) RepositoryOption {
	return func(r *Repository) {
		r.prefix = prefix
	}
}

// NewRepository creates a flow repository over an existing client.
func NewRepository(client *backend.Client, opts ...RepositoryOption) *Repository {
	r := &Repository{
		client: client,
		prefix: "callflow:flow:",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository) key(flowID string) string {
	return r.prefix + flowID
}

func (r *Repository) indexKey() string {
	return r.prefix + "index"
}

func (r *Repository) seqKey() string {
	return r.prefix + "seq"
}

func (r *Repository) decode(flowID string, data []byte) (domain.Flow, error) {
	var f domain.Flow
	if err := json.Unmarshal(data, &f); err != nil {
		return domain.Flow{}, fmt.Errorf("failed to unmarshal flow %q: %w", flowID, err)
	}
	return f.Clone(), nil
}

// LoadFlow reads one flow.
func (r *Repository) LoadFlow(ctx context.Context, flowID string) (domain.Flow, error) {
	data, err := r.client.Get(ctx, r.key(flowID)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return domain.Flow{}, &domain.NotFoundError{Kind: domain.KindFlow, ID: flowID}
		}
		return domain.Flow{}, fmt.Errorf("failed to get flow from redis: %w", err)
	}
	return r.decode(flowID, data)
}

// ListFlows returns the catalogue in creation order.
func (r *Repository) ListFlows(ctx context.Context) ([]domain.FlowSummary, error) {
	ids, err := r.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}
	out := make([]domain.FlowSummary, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read flows: %w", err)
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Index entry outlived its document.
			continue
		}
		f, err := r.decode(ids[i], []byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, f.Summary())
	}
	return out, nil
}

// CreateFlow stores a new flow; an existing id is a validation error.
func (r *Repository) CreateFlow(ctx context.Context, flow domain.Flow) error {
	data, err := json.Marshal(flow.Clone())
	if err != nil {
		return fmt.Errorf("failed to marshal flow: %w", err)
	}
	created, err := r.client.SetNX(ctx, r.key(flow.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create flow: %w", err)
	}
	if !created {
		return &domain.ValidationError{Field: "id", Reason: fmt.Sprintf("flow %q already exists", flow.ID)}
	}

	seq, err := r.client.Incr(ctx, r.seqKey()).Result()
	if err != nil {
		return fmt.Errorf("failed to index flow: %w", err)
	}
	return r.client.ZAdd(ctx, r.indexKey(), backend.Z{Score: float64(seq), Member: flow.ID}).Err()
}

// DeleteFlow removes a flow and its index entry.
func (r *Repository) DeleteFlow(ctx context.Context, flowID string) error {
	pipe := r.client.TxPipeline()
	del := pipe.Del(ctx, r.key(flowID))
	pipe.ZRem(ctx, r.indexKey(), flowID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete flow: %w", err)
	}
	if del.Val() == 0 {
		return &domain.NotFoundError{Kind: domain.KindFlow, ID: flowID}
	}
	return nil
}

// UpdateFlowMeta applies meta to the stored flow.
func (r *Repository) UpdateFlowMeta(ctx context.Context, flowID string, meta domain.FlowMeta) error {
	return r.update(ctx, flowID, func(f *domain.Flow) error {
		meta.ApplyTo(f)
		return nil
	})
}

func (r *Repository) CreateNode(ctx context.Context, flowID string, node domain.FlowNode) error {
	return r.update(ctx, flowID, func(f *domain.Flow) error {
		return flowops.AddNode(f, node)
	})
}

func (r *Repository) UpdateNode(ctx context.Context, flowID, nodeID string, patch domain.NodePatch) error {
	return r.update(ctx, flowID, func(f *domain.Flow) error {
		return flowops.UpdateNode(f, nodeID, patch)
	})
}

func (r *Repository) DeleteNode(ctx context.Context, flowID, nodeID string) error {
	return r.update(ctx, flowID, func(f *domain.Flow) error {
		return flowops.DeleteNode(f, nodeID)
	})
}

func (r *Repository) CreateEdge(ctx context.Context, flowID string, edge domain.FlowEdge) error {
	return r.update(ctx, flowID, func(f *domain.Flow) error {
		return flowops.AddEdge(f, edge)
	})
}

func (r *Repository) DeleteEdge(ctx context.Context, flowID, edgeID string) error {
	return r.update(ctx, flowID, func(f *domain.Flow) error {
		return flowops.DeleteEdge(f, edgeID)
	})
}

// update is an optimistic read-modify-write of one flow document.
func (r *Repository) update(ctx context.Context, flowID string, fn func(*domain.Flow) error) error {
	key := r.key(flowID)

	txf := func(tx *backend.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, backend.Nil) {
				return &domain.NotFoundError{Kind: domain.KindFlow, ID: flowID}
			}
			return err
		}
		f, err := r.decode(flowID, data)
		if err != nil {
			return err
		}
		if err := fn(&f); err != nil {
			return err
		}
		out, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("failed to marshal flow: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, backend.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("flow %q: too much write contention", flowID)
}
