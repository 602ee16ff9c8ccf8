package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/chronicle/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors fed by lifecycle hooks.
type Metrics struct {
	registry *prometheus.Registry

	created    *prometheus.CounterVec
	updated    *prometheus.CounterVec
	skipped    *prometheus.CounterVec
	visited    prometheus.Histogram
	queries    prometheus.Histogram
	traversals *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on a private registry,
// together with the Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		created: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chronicle_executions_created_total",
				Help: "Total number of execution records created",
			},
			[]string{"action"},
		),
		updated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chronicle_executions_updated_total",
				Help: "Total number of execution record updates, by resulting status",
			},
			[]string{"status"},
		),
		skipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chronicle_enrichment_skipped_total",
				Help: "Optional enrichments that could not be resolved",
			},
			[]string{"enrichment"},
		),
		visited: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chronicle_descendants_visited",
			Help:    "Number of descendants returned per traversal",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		queries: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chronicle_descendant_queries",
			Help:    "Number of child queries issued per traversal",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		traversals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chronicle_traversals_total",
				Help: "Total number of descendant traversals",
			},
			[]string{"order"},
		),
	}
	m.registry.MustRegister(
		m.created, m.updated, m.skipped, m.visited, m.queries, m.traversals,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Hooks returns lifecycle hooks that record into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnExecutionCreated: func(ctx context.Context, e *domain.ExecutionEvent) {
			m.created.WithLabelValues(e.Action).Inc()
		},
		OnExecutionUpdated: func(ctx context.Context, e *domain.ExecutionEvent) {
			m.updated.WithLabelValues(string(e.Status)).Inc()
		},
		OnEnrichmentSkipped: func(ctx context.Context, e *domain.EnrichmentEvent) {
			m.skipped.WithLabelValues(string(e.Enrichment)).Inc()
		},
		OnDescendantsResolved: func(ctx context.Context, e *domain.TraversalEvent) {
			m.traversals.WithLabelValues(e.Order.String()).Inc()
			m.visited.Observe(float64(e.Visited))
			m.queries.Observe(float64(e.Queries))
		},
	}
}
