package audit

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// Counts events by name and reason
type MetricsSink struct {
	events *prometheus.CounterVec
}

func NewMetricsSink(reg prometheus.Registerer) *MetricsSink {
	s := &MetricsSink{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionkeeper_security_events_total",
				Help: "Total number of security events by name and reason",
			},
			[]string{"name", "reason"},
		),
	}

	reg.MustRegister(s.events)

	return s
}

func (s *MetricsSink) Record(_ context.Context, e Event) {
	s.events.WithLabelValues(e.Name, e.Reason).Inc()
}
