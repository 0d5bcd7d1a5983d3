package observability

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/aretw0/callflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Hooks(t *testing.T) {
	m := NewMetrics()
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnNodeEnter(ctx, &domain.NodeEvent{NodeID: "a", NodeType: domain.NodeTypeQuestion})
	hooks.OnNodeEnter(ctx, &domain.NodeEvent{NodeID: "b", NodeType: domain.NodeTypeQuestion})
	hooks.OnMutation(ctx, &domain.MutationEvent{Command: "add_node"})

	assert.Equal(t, float64(2), testutil.ToFloat64(m.NodeVisits.WithLabelValues("question")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Mutations.WithLabelValues("add_node", "ok")))
}

func TestMetrics_Observe(t *testing.T) {
	m := NewMetrics()

	m.ObserveMutationError("add_edge", &domain.InvariantError{Op: "add_edge", Reason: "terminal"})
	m.ObservePreview("advance", nil)
	m.ObservePreview("reply", domain.ErrNoMatch)
	m.ObserveValidation("f1", 2, 1)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Mutations.WithLabelValues("add_edge", "invariant")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PreviewSteps.WithLabelValues("advance", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PreviewSteps.WithLabelValues("reply", "no_match")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.OrphanNodes.WithLabelValues("f1")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "callflow_orphan_nodes")
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObservePreview("start", errors.New("boom"))
		m.ObserveMutationError("add_node", errors.New("boom"))
		m.ObserveValidation("f1", 0, 0)
		_ = m.Hooks()
	})
}

func TestCombineHooks(t *testing.T) {
	var calls []string
	combined := CombineHooks(
		domain.LifecycleHooks{OnNodeEnter: func(context.Context, *domain.NodeEvent) { calls = append(calls, "first") }},
		domain.LifecycleHooks{},
		domain.LifecycleHooks{OnNodeEnter: func(context.Context, *domain.NodeEvent) { calls = append(calls, "second") }},
	)
	combined.OnNodeEnter(context.Background(), &domain.NodeEvent{})
	combined.OnNodeLeave(context.Background(), &domain.NodeEvent{})

	assert.Equal(t, []string{"first", "second"}, calls)
}
