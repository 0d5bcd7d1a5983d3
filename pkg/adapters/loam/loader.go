// Package loam reads and writes flows as markdown documents through the Loam
// library: the frontmatter carries the graph, the body the description.
package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/callflow/pkg/domain"
	"github.com/aretw0/loam"
)

// Loader adapts a Loam repository to ports.FlowLoader.
type Loader struct {
	Repo *loam.TypedRepository[FlowMetadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[FlowMetadata]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// Open initializes a read-only, strict Loam repository at path.
func Open(path string) (*Loader, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[FlowMetadata](repo)), nil
}

// LoadFlow reads the flow document with the given id.
func (l *Loader) LoadFlow(ctx context.Context, flowID string) (domain.Flow, error) {
	doc, err := l.Repo.Get(ctx, flowID)
	if err != nil {
		// Loam does not expose a typed miss; confirm against the listing.
		if ids, lerr := l.ids(ctx); lerr == nil {
			if _, ok := ids[flowID]; !ok {
				return domain.Flow{}, &domain.NotFoundError{Kind: domain.KindFlow, ID: flowID}
			}
		}
		return domain.Flow{}, fmt.Errorf("loam get failed for %s: %w", flowID, err)
	}
	return toFlow(doc.ID, doc.Data, doc.Content), nil
}

// ListFlows lists every flow document in the repository.
func (l *Loader) ListFlows(ctx context.Context) ([]domain.FlowSummary, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	out := make([]domain.FlowSummary, 0, len(docs))
	for _, doc := range docs {
		f := toFlow(doc.ID, doc.Data, doc.Content)

		// Collision Detection
		if existingPath, ok := seen[f.ID]; ok {
			return nil, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", f.ID, existingPath, doc.ID)
		}
		seen[f.ID] = doc.ID
		out = append(out, f.Summary())
	}
	return out, nil
}

func (l *Loader) ids(ctx context.Context) (map[string]struct{}, error) {
	flows, err := l.ListFlows(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(flows))
	for _, f := range flows {
		ids[f.ID] = struct{}{}
	}
	return ids, nil
}

// Save writes flow as a document named after its id.
// The repository must not be read-only.
func (l *Loader) Save(ctx context.Context, flow domain.Flow) error {
	err := l.Repo.Save(ctx, &loam.DocumentModel[FlowMetadata]{
		ID:      flow.ID,
		Content: flow.Description,
		Data:    metadataFromFlow(flow),
	})
	if err != nil {
		return fmt.Errorf("loam save failed for %s: %w", flow.ID, err)
	}
	return nil
}

// Watch implements ports.Watchable: it emits the id of every changed flow document.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)

	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- trimExtension(evt.ID):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

func toFlow(docID string, meta FlowMetadata, content string) domain.Flow {
	id := meta.ID
	if id == "" {
		id = docID
	}
	f := domain.Flow{
		ID:          trimExtension(id),
		Name:        meta.Name,
		Description: strings.TrimSpace(content),
		IsActive:    meta.IsActive,
		Nodes:       make([]domain.FlowNode, 0, len(meta.Nodes)),
		Edges:       make([]domain.FlowEdge, 0, len(meta.Edges)),
	}
	if f.Name == "" {
		f.Name = f.ID
	}
	for _, n := range meta.Nodes {
		f.Nodes = append(f.Nodes, n.toDomain())
	}
	for _, e := range meta.Edges {
		f.Edges = append(f.Edges, e.toDomain())
	}
	return f
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
