package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/callflow/internal/validator"
	"github.com/aretw0/callflow/pkg/adapters/file"
	"github.com/aretw0/callflow/pkg/adapters/loam"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/aretw0/callflow/pkg/ports"
)

// ResolveFlow loads ref as a flow file when such a path exists (.yaml, .yml,
// .json or a Loam markdown document), otherwise as a flow ID in repo.
// Flows read from files are checked for structural errors.
func ResolveFlow(ctx context.Context, ref string, repo ports.FlowLoader) (domain.Flow, error) {
	info, err := os.Stat(ref)
	if err != nil || info.IsDir() {
		if repo == nil {
			return domain.Flow{}, fmt.Errorf("%s is not a flow file", ref)
		}
		return repo.LoadFlow(ctx, ref)
	}

	var flow domain.Flow
	ext := strings.ToLower(filepath.Ext(ref))
	switch ext {
	case ".md":
		loader, err := loam.Open(filepath.Dir(ref))
		if err != nil {
			return domain.Flow{}, err
		}
		flow, err = loader.LoadFlow(ctx, strings.TrimSuffix(filepath.Base(ref), filepath.Ext(ref)))
		if err != nil {
			return domain.Flow{}, err
		}
	case ".yaml", ".yml", ".json":
		flow, err = file.ReadFlow(ref)
		if err != nil {
			return domain.Flow{}, err
		}
	default:
		return domain.Flow{}, fmt.Errorf("unsupported flow file extension %q", ext)
	}

	if err := validator.CheckStructure(flow); err != nil {
		return domain.Flow{}, fmt.Errorf("%s: %w", ref, err)
	}
	return flow, nil
}

// Import stores every flow file found at path in repo and returns the ids
// imported. With replace, flows already in repo are overwritten.
func Import(ctx context.Context, repo ports.FlowRepository, path string, replace bool) ([]string, error) {
	loader := file.NewLoader(path)
	summaries, err := loader.ListFlows(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(summaries))
	for _, s := range summaries {
		flow, err := loader.LoadFlow(ctx, s.ID)
		if err != nil {
			return ids, err
		}
		if replace {
			if err := repo.DeleteFlow(ctx, flow.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
				return ids, fmt.Errorf("replace %q: %w", flow.ID, err)
			}
		}
		if err := repo.CreateFlow(ctx, flow); err != nil {
			return ids, fmt.Errorf("import %q: %w", flow.ID, err)
		}
		ids = append(ids, flow.ID)
	}
	return ids, nil
}
