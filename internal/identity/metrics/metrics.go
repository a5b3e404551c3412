package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the identity module.
type Metrics struct {
	AccountsCreated         prometheus.Counter
	AccountsRenamed         prometheus.Counter
	ResolveOrCreateDuration prometheus.Histogram
}

// New creates a Metrics instance registered with the default registry.
func New() *Metrics {
	return &Metrics{
		AccountsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sixd_accounts_created_total",
			Help: "Total number of accounts created",
		}),
		AccountsRenamed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sixd_accounts_renamed_total",
			Help: "Total number of display name changes",
		}),
		ResolveOrCreateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sixd_resolve_or_create_duration_seconds",
			Help:    "Duration of ResolveOrCreate (login critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementAccountsCreated() {
	m.AccountsCreated.Inc()
}

func (m *Metrics) IncrementAccountsRenamed() {
	m.AccountsRenamed.Inc()
}

// ObserveResolveOrCreate records the duration since start.
func (m *Metrics) ObserveResolveOrCreate(start time.Time) {
	m.ResolveOrCreateDuration.Observe(time.Since(start).Seconds())
}
