package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dx_authd"

// Metrics holds the collectors of the HTTP API.
type Metrics struct {
	// LoginsTotal counts login attempts by result: success, unauthorized, rate_limited, invalid, error.
	LoginsTotal *prometheus.CounterVec
	// TenantSwitchesTotal counts tenant switches by result.
	TenantSwitchesTotal *prometheus.CounterVec
	// RequestDuration measures handler latency by route and status class.
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "logins_total",
				Help:      "Total number of login attempts by result",
			},
			[]string{"result"},
		),
		TenantSwitchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "tenant_switches_total",
				Help:      "Total number of tenant switches by result",
			},
			[]string{"result"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "code"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.LoginsTotal, m.TenantSwitchesTotal, m.RequestDuration)
	}
	return m
}
