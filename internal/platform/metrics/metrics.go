package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	RecordsRouted        *prometheus.CounterVec
	DuplicatesSkipped    prometheus.Counter
	RecordsRequeued      prometheus.Counter
	RecordsDeadLettered  prometheus.Counter
	TouchpointsPersisted *prometheus.CounterVec
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers on a caller-supplied registry; tests use a fresh
// one per suite to avoid duplicate registration panics.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RecordsRouted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "enrollgate_records_routed_total",
			Help: "Total number of enrollment records published to a shard ingestion stream",
		}, []string{"shard"}),
		DuplicatesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "enrollgate_duplicates_skipped_total",
			Help: "Total number of intake records skipped because the passenger already exists",
		}),
		RecordsRequeued: factory.NewCounter(prometheus.CounterOpts{
			Name: "enrollgate_records_requeued_total",
			Help: "Total number of intake records negatively acknowledged with requeue",
		}),
		RecordsDeadLettered: factory.NewCounter(prometheus.CounterOpts{
			Name: "enrollgate_records_dead_lettered_total",
			Help: "Total number of intake records routed to the dead-letter queue",
		}),
		TouchpointsPersisted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "enrollgate_touchpoints_persisted_total",
			Help: "Total number of touchpoints committed to a shard store",
		}, []string{"shard"}),
	}
}

func (m *Metrics) IncrementRouted(shard string) {
	m.RecordsRouted.WithLabelValues(shard).Inc()
}

func (m *Metrics) IncrementDuplicates() {
	m.DuplicatesSkipped.Inc()
}

func (m *Metrics) IncrementRequeued() {
	m.RecordsRequeued.Inc()
}

func (m *Metrics) IncrementDeadLettered() {
	m.RecordsDeadLettered.Inc()
}

func (m *Metrics) IncrementPersisted(shard string) {
	m.TouchpointsPersisted.WithLabelValues(shard).Inc()
}
