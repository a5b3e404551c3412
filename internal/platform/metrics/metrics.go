// Package metrics holds the sign-in counters shared by both sign-in flows.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sign-in flows, used as the "flow" label.
const (
	FlowLogin    = "login"
	FlowRegister = "register"
)

type Metrics struct {
	SessionsIssued *prometheus.CounterVec
	AuthFailures   *prometheus.CounterVec
	SignInDuration *prometheus.HistogramVec
}

// New registers the sign-in metrics with the default registry. Call it once
// per process.
func New() *Metrics {
	return &Metrics{
		SessionsIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sixd_sessions_issued_total",
			Help: "Session tokens issued, by sign-in flow",
		}, []string{"flow"}),
		AuthFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sixd_auth_failures_total",
			Help: "Sign-in attempts rejected, by error code",
		}, []string{"code"}),
		SignInDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sixd_signin_duration_seconds",
			Help:    "Time to complete a sign-in flow, including rejections",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"flow"}),
	}
}

func (m *Metrics) IncrementSessionsIssued(flow string) {
	m.SessionsIssued.WithLabelValues(flow).Inc()
}

func (m *Metrics) IncrementAuthFailures(code string) {
	m.AuthFailures.WithLabelValues(code).Inc()
}

func (m *Metrics) ObserveSignIn(flow string, start time.Time) {
	m.SignInDuration.WithLabelValues(flow).Observe(time.Since(start).Seconds())
}
