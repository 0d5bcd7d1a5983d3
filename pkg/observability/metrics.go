package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/callflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	NodeVisits   *prometheus.CounterVec
	Mutations    *prometheus.CounterVec
	PreviewSteps *prometheus.CounterVec
	OrphanNodes  *prometheus.GaugeVec
	Warnings     *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		NodeVisits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callflow_node_visits_total",
				Help: "Total number of preview node visits",
			},
			[]string{"node_type"},
		),
		Mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callflow_mutations_total",
				Help: "Flow mutations by command and result",
			},
			[]string{"command", "result"},
		),
		PreviewSteps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callflow_preview_steps_total",
				Help: "Preview operations by action and result",
			},
			[]string{"action", "result"},
		),
		OrphanNodes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "callflow_orphan_nodes",
				Help: "Orphaned nodes found by the last validation of a flow",
			},
			[]string{"flow_id"},
		),
		Warnings: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "callflow_validation_warnings",
				Help: "Field warnings found by the last validation of a flow",
			},
			[]string{"flow_id"},
		),
	}
	m.registry.MustRegister(m.NodeVisits, m.Mutations, m.PreviewSteps, m.OrphanNodes, m.Warnings)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the private registry, for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Hooks returns lifecycle hooks that feed the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	if m == nil {
		return domain.LifecycleHooks{}
	}
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			m.NodeVisits.WithLabelValues(string(e.NodeType)).Inc()
		},
		OnMutation: func(_ context.Context, e *domain.MutationEvent) {
			m.Mutations.WithLabelValues(e.Command, "ok").Inc()
		},
	}
}

// ObserveMutationError counts a rejected or unpersisted mutation.
func (m *Metrics) ObserveMutationError(command string, err error) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(command, domain.ErrorKind(err)).Inc()
}

// ObservePreview counts a preview operation.
func (m *Metrics) ObservePreview(action string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = domain.ErrorKind(err)
	}
	m.PreviewSteps.WithLabelValues(action, result).Inc()
}

// ObserveValidation records the size of a validation report.
func (m *Metrics) ObserveValidation(flowID string, orphans, warnings int) {
	if m == nil {
		return
	}
	m.OrphanNodes.WithLabelValues(flowID).Set(float64(orphans))
	m.Warnings.WithLabelValues(flowID).Set(float64(warnings))
}

// CombineHooks chains several hook sets; nil callbacks are skipped.
func CombineHooks(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			for _, h := range sets {
				if h.OnNodeEnter != nil {
					h.OnNodeEnter(ctx, e)
				}
			}
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			for _, h := range sets {
				if h.OnNodeLeave != nil {
					h.OnNodeLeave(ctx, e)
				}
			}
		},
		OnMutation: func(ctx context.Context, e *domain.MutationEvent) {
			for _, h := range sets {
				if h.OnMutation != nil {
					h.OnMutation(ctx, e)
				}
			}
		},
	}
}
