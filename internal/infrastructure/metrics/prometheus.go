package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cdoportal/internal/domain"
	"cdoportal/internal/ports"
)

const namespace = "cdoportal"

// Ingest exposes ingestion counters on a dedicated registry.
type Ingest struct {
	registry *prometheus.Registry
	items    *prometheus.CounterVec
	runs     *prometheus.CounterVec
}

var _ ports.IngestMetrics = (*Ingest)(nil)

// NewIngest registers the portal counters plus Go runtime and process collectors.
func NewIngest() *Ingest {
	reg := prometheus.NewRegistry()
	m := &Ingest{
		registry: reg,
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_items_total",
			Help:      "Items handled by ingestion, by kind, source and outcome.",
		}, []string{"kind", "source", "outcome"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_runs_total",
			Help:      "Completed source runs, by kind, source and status.",
		}, []string{"kind", "source", "status"}),
	}

	reg.MustRegister(
		m.items,
		m.runs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ItemProcessed counts one upsert outcome.
func (m *Ingest) ItemProcessed(kind domain.Kind, source, outcome string) {
	m.items.WithLabelValues(string(kind), source, outcome).Inc()
}

// SourceCompleted counts one finished source run.
func (m *Ingest) SourceCompleted(kind domain.Kind, source string, status domain.RunStatus) {
	m.runs.WithLabelValues(string(kind), source, string(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Ingest) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
