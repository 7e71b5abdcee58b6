package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the scan reconciler.
// A nil *Metrics is valid and turns every method into a no-op.
type Metrics struct {
	EventsDecoded       prometheus.Counter
	EventsDiscarded     prometheus.Counter
	DuplicatesDropped   prometheus.Counter
	TransitionsRejected prometheus.Counter
	StreamFailures      prometheus.Counter
	PollFailures        prometheus.Counter
	MissionsCompleted   prometheus.Gauge
	MissionsTotal       prometheus.Gauge
}

// NewMetrics registers and returns the reconciler metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		EventsDecoded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentinelscan_events_decoded_total",
			Help: "Total number of session events decoded and applied",
		}),
		EventsDiscarded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentinelscan_events_discarded_total",
			Help: "Total number of malformed or unknown payloads discarded at the decode boundary",
		}),
		DuplicatesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentinelscan_events_duplicate_total",
			Help: "Total number of re-delivered events dropped by the seen-event-id guard",
		}),
		TransitionsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentinelscan_phase_transitions_rejected_total",
			Help: "Total number of illegal phase transitions rejected",
		}),
		StreamFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentinelscan_stream_failures_total",
			Help: "Total number of fatal push-stream transport failures",
		}),
		PollFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentinelscan_poll_failures_total",
			Help: "Total number of transient poll request failures",
		}),
		MissionsCompleted: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sentinelscan_missions_completed",
			Help: "Completed missions in the active session",
		}),
		MissionsTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sentinelscan_missions_total",
			Help: "Planned missions in the active session, including follow-up widening",
		}),
	}
}

// IncEventsDecoded counts one decoded event.
func (m *Metrics) IncEventsDecoded() {
	if m != nil {
		m.EventsDecoded.Inc()
	}
}

// IncEventsDiscarded counts one discarded payload.
func (m *Metrics) IncEventsDiscarded() {
	if m != nil {
		m.EventsDiscarded.Inc()
	}
}

// IncDuplicatesDropped counts one re-delivered event.
func (m *Metrics) IncDuplicatesDropped() {
	if m != nil {
		m.DuplicatesDropped.Inc()
	}
}

// IncTransitionsRejected counts one rejected phase transition.
func (m *Metrics) IncTransitionsRejected() {
	if m != nil {
		m.TransitionsRejected.Inc()
	}
}

// IncStreamFailures counts one fatal stream failure.
func (m *Metrics) IncStreamFailures() {
	if m != nil {
		m.StreamFailures.Inc()
	}
}

// IncPollFailures counts one transient poll failure.
func (m *Metrics) IncPollFailures() {
	if m != nil {
		m.PollFailures.Inc()
	}
}

// SetProgress publishes the session's completed/total mission counts.
func (m *Metrics) SetProgress(completed, total int) {
	if m != nil {
		m.MissionsCompleted.Set(float64(completed))
		m.MissionsTotal.Set(float64(total))
	}
}
