// Package metrics holds the Prometheus collectors for hierarchy and harness activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Setup outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds all Prometheus metrics for one hierarchy or harness.
// Each instance owns its registry so several can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	ModelsDeclared  prometheus.Counter
	ModelsIncluded  prometheus.Counter
	ModelsRetracted prometheus.Counter
	AdapterSetups   *prometheus.CounterVec
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ModelsDeclared: factory.NewCounter(prometheus.CounterOpts{
			Name: "lineage_models_declared_total",
			Help: "Total number of models declared in the hierarchy",
		}),
		ModelsIncluded: factory.NewCounter(prometheus.CounterOpts{
			Name: "lineage_models_included_total",
			Help: "Total number of extra inclusion paths registered",
		}),
		ModelsRetracted: factory.NewCounter(prometheus.CounterOpts{
			Name: "lineage_models_retracted_total",
			Help: "Total number of models retracted from the hierarchy",
		}),
		AdapterSetups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lineage_adapter_setups_total",
			Help: "Adapter connection attempts by adapter name and outcome",
		}, []string{"adapter", "outcome"}),
	}
}

// Registry exposes the underlying registry for gathering or HTTP exposition.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveSetup records one adapter setup attempt.
func (m *Metrics) ObserveSetup(adapter string, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.AdapterSetups.WithLabelValues(adapter, outcome).Inc()
}
