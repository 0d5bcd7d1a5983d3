package callflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/callflow/pkg/domain"
	"github.com/aretw0/callflow/pkg/ports"
)

// Persist replays a change set onto repo.
//
// Order matters: edges go before the nodes they touch on removal and after
// them on insertion, so a repository enforcing referential integrity never
// sees a dangling edge. Deletes of records that are already gone are ignored.
func Persist(ctx context.Context, repo ports.FlowRepository, cs domain.ChangeSet) error {
	return persist(ctx, repo, cs, false)
}

// compensate undoes a partially persisted change set by replaying the
// inverse diff. Records that already match are skipped.
func compensate(ctx context.Context, repo ports.FlowRepository, before, after domain.Flow) error {
	undo := domain.Diff(&after, &before)
	if undo == nil {
		return nil
	}
	restoreEdgeOrder(undo, before)
	return persist(ctx, repo, *undo, true)
}

// restoreEdgeOrder widens undo so that a node getting an edge back also has
// its later outgoing edges re-created. Repositories append new edges, so this
// keeps each node's outgoing order equal to the snapshot.
func restoreEdgeOrder(undo *domain.ChangeSet, before domain.Flow) {
	if len(undo.AddedEdges) == 0 {
		return
	}
	readded := make(map[string]struct{}, len(undo.AddedEdges))
	for _, e := range undo.AddedEdges {
		readded[e.ID] = struct{}{}
	}
	removed := make(map[string]struct{}, len(undo.RemovedEdges))
	for _, id := range undo.RemovedEdges {
		removed[id] = struct{}{}
	}

	shifted := make(map[string]bool)
	added := make([]domain.FlowEdge, 0, len(undo.AddedEdges))
	for _, e := range before.Edges {
		if _, ok := readded[e.ID]; ok {
			shifted[e.FromNodeID] = true
			added = append(added, e)
			continue
		}
		if !shifted[e.FromNodeID] {
			continue
		}
		if _, ok := removed[e.ID]; !ok {
			undo.RemovedEdges = append(undo.RemovedEdges, e.ID)
			removed[e.ID] = struct{}{}
		}
		added = append(added, e)
	}
	undo.AddedEdges = added
}

func persist(ctx context.Context, repo ports.FlowRepository, cs domain.ChangeSet, lenient bool) error {
	if cs.IsEmpty() {
		return nil
	}
	flowID := cs.FlowID

	for _, id := range cs.RemovedEdges {
		if err := ignoreMissing(repo.DeleteEdge(ctx, flowID, id)); err != nil {
			return fmt.Errorf("delete edge %q: %w", id, err)
		}
	}
	for _, id := range cs.RemovedNodes {
		if err := ignoreMissing(repo.DeleteNode(ctx, flowID, id)); err != nil {
			return fmt.Errorf("delete node %q: %w", id, err)
		}
	}
	for _, n := range cs.AddedNodes {
		if err := ignoreDuplicate(repo.CreateNode(ctx, flowID, n), lenient); err != nil {
			return fmt.Errorf("create node %q: %w", n.ID, err)
		}
	}
	for _, n := range cs.UpdatedNodes {
		if err := ignoreDuplicate(repo.UpdateNode(ctx, flowID, n.ID, domain.FullPatch(n)), lenient); err != nil {
			return fmt.Errorf("update node %q: %w", n.ID, err)
		}
	}
	for _, e := range cs.AddedEdges {
		if err := ignoreDuplicate(repo.CreateEdge(ctx, flowID, e), lenient); err != nil {
			return fmt.Errorf("create edge %q: %w", e.ID, err)
		}
	}
	if cs.Meta != nil && !cs.Meta.IsEmpty() {
		if err := repo.UpdateFlowMeta(ctx, flowID, *cs.Meta); err != nil {
			return fmt.Errorf("update flow meta: %w", err)
		}
	}
	return nil
}

func ignoreMissing(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}

func ignoreDuplicate(err error, lenient bool) error {
	if lenient && (errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrNotFound)) {
		return nil
	}
	return err
}
