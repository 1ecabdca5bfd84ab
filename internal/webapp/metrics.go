// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package webapp

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts binder triggers by surface ("page" or "api") and outcome
// ("ok" or "error").
type Metrics struct {
	triggers *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the filter metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		triggers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bibfilter_triggers_total",
				Help: "Filter triggers by surface and outcome",
			},
			[]string{"surface", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bibfilter_trigger_duration_seconds",
				Help:    "Time spent in one filter trigger",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"surface"},
		),
	}
	reg.MustRegister(m.triggers, m.duration)
	return m
}

func (m *Metrics) observe(surface string, seconds float64, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.triggers.WithLabelValues(surface, outcome).Inc()
	m.duration.WithLabelValues(surface).Observe(seconds)
}
