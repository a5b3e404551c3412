package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the address lifecycle.
type Metrics struct {
	AddressesRegistered prometheus.Counter
	AddressesUpdated    prometheus.Counter
	Rejections          *prometheus.CounterVec
	LifecycleDuration   *prometheus.HistogramVec
	ViewCacheLookups    *prometheus.CounterVec
}

// New creates a Metrics instance registered with the default registry.
func New() *Metrics {
	return &Metrics{
		AddressesRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sixd_addresses_registered_total",
			Help: "Total number of first-time address registrations",
		}),
		AddressesUpdated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sixd_addresses_updated_total",
			Help: "Total number of address updates (each archives one record)",
		}),
		Rejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sixd_address_rejections_total",
			Help: "Register/update attempts rejected, by error code",
		}, []string{"operation", "code"}),
		LifecycleDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sixd_address_lifecycle_duration_seconds",
			Help:    "Duration of register/update transactions",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
		ViewCacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sixd_profile_view_cache_lookups_total",
			Help: "Profile view cache lookups by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) IncrementRegistered() {
	m.AddressesRegistered.Inc()
}

func (m *Metrics) IncrementUpdated() {
	m.AddressesUpdated.Inc()
}

func (m *Metrics) IncrementRejection(operation, code string) {
	m.Rejections.WithLabelValues(operation, code).Inc()
}

// ObserveLifecycle records the duration since start.
func (m *Metrics) ObserveLifecycle(operation string, start time.Time) {
	m.LifecycleDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) RecordCacheHit() {
	m.ViewCacheLookups.WithLabelValues("hit").Inc()
}

func (m *Metrics) RecordCacheMiss() {
	m.ViewCacheLookups.WithLabelValues("miss").Inc()
}
