package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cory-johannsen/scenesync/internal/naming"
)

// NamingMetrics records rename outcomes and resolver probe counts.
// It implements naming.Recorder.
type NamingMetrics struct {
	renames *prometheus.CounterVec
	probes  prometheus.Histogram
}

// NewNamingMetrics creates the naming collectors and registers them on reg.
//
// Precondition: reg must be non-nil.
// Postcondition: Returns registered metrics or the registration error.
func NewNamingMetrics(reg prometheus.Registerer) (*NamingMetrics, error) {
	m := &NamingMetrics{
		renames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scenesync_renames_total",
			Help: "Total number of rename requests by outcome",
		}, []string{"outcome"}),
		probes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scenesync_resolver_probes",
			Help:    "Registry probes needed to find a free identifier",
			Buckets: []float64{1, 2, 3, 5, 10, 25, 100},
		}),
	}
	for _, c := range []prometheus.Collector{m.renames, m.probes} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering naming metrics: %w", err)
		}
	}
	return m, nil
}

// ObserveRename counts one rename with the given outcome.
func (m *NamingMetrics) ObserveRename(outcome naming.Outcome) {
	m.renames.WithLabelValues(outcome.String()).Inc()
}

// ObserveProbes records the probe count of one suffix search.
func (m *NamingMetrics) ObserveProbes(n int) {
	m.probes.Observe(float64(n))
}

// Handler returns an HTTP handler exposing the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
