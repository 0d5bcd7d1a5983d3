// Package file reads flow definitions from YAML or JSON files and keeps
// preview sessions as JSON files on the local filesystem.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/callflow/pkg/domain"
	"gopkg.in/yaml.v3"
)

var flowExtensions = map[string]bool{".yaml": true, ".yml": true, ".json": true}

// Loader implements ports.FlowLoader over a file or a directory of files.
// Each file holds one flow; a file without an id is named after itself.
type Loader struct {
	Path string
}

// NewLoader creates a loader for path, which may be a single file or a directory.
func NewLoader(path string) *Loader {
	return &Loader{Path: path}
}

// ReadFlow decodes one flow file, choosing the format by extension.
func ReadFlow(path string) (domain.Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Flow{}, fmt.Errorf("failed to read flow file: %w", err)
	}

	var f domain.Flow
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return domain.Flow{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return domain.Flow{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if f.ID == "" {
		f.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	for i, e := range f.Edges {
		if e.Label == "" {
			f.Edges[i].Label = e.ConditionValue
		}
	}
	return f.Clone(), nil
}

// WriteFlow encodes flow to path, YAML unless the extension is .json.
func WriteFlow(path string, flow domain.Flow) error {
	var (
		data []byte
		err  error
	)
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		data, err = json.MarshalIndent(flow, "", "  ")
	} else {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err = enc.Encode(flow); err == nil {
			err = enc.Close()
		}
		data = buf.Bytes()
	}
	if err != nil {
		return fmt.Errorf("failed to encode flow: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (l *Loader) files() ([]string, error) {
	info, err := os.Stat(l.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", l.Path, err)
	}
	if !info.IsDir() {
		return []string{l.Path}, nil
	}

	entries, err := os.ReadDir(l.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !flowExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		files = append(files, filepath.Join(l.Path, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func (l *Loader) all() ([]domain.Flow, error) {
	files, err := l.files()
	if err != nil {
		return nil, err
	}
	flows := make([]domain.Flow, 0, len(files))
	seen := make(map[string]string, len(files))
	for _, path := range files {
		f, err := ReadFlow(path)
		if err != nil {
			return nil, err
		}
		if other, ok := seen[f.ID]; ok {
			return nil, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", f.ID, other, path)
		}
		seen[f.ID] = path
		flows = append(flows, f)
	}
	return flows, nil
}

// LoadFlow returns the flow with the given id.
func (l *Loader) LoadFlow(ctx context.Context, flowID string) (domain.Flow, error) {
	flows, err := l.all()
	if err != nil {
		return domain.Flow{}, err
	}
	for _, f := range flows {
		if f.ID == flowID {
			return f, nil
		}
	}
	return domain.Flow{}, &domain.NotFoundError{Kind: domain.KindFlow, ID: flowID}
}

// ListFlows returns every flow found under Path, sorted by file name.
func (l *Loader) ListFlows(ctx context.Context) ([]domain.FlowSummary, error) {
	flows, err := l.all()
	if err != nil {
		return nil, err
	}
	out := make([]domain.FlowSummary, 0, len(flows))
	for _, f := range flows {
		out = append(out, f.Summary())
	}
	return out, nil
}
