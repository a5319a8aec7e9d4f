package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"stablehub/core/events"
)

// Metrics counts hub and reserve activity by event type. It implements
// events.Emitter so it can be wired into an engine directly or fanned out
// alongside other subscribers via events.Tee.
type Metrics struct {
	emitted *prometheus.CounterVec
}

// NewMetrics registers the event counters with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stablehub",
			Subsystem: "events",
			Name:      "emitted_total",
			Help:      "Total engine events segmented by event type.",
		}, []string{"type"}),
	}
	if reg != nil {
		reg.MustRegister(m.emitted)
	}
	return m
}

// Emit implements events.Emitter.
func (m *Metrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	m.emitted.WithLabelValues(evt.EventType()).Inc()
}
