// Package gsmetrics instruments a Registry with Prometheus collectors:
// session lifecycle counts, query/response counts, and equivocations
// detected.
package gsmetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gordian-engine/grandpa-accountable-safety/gsdriver"
)

// Collector holds every metric a Registry reports.
type Collector struct {
	sessionsOpened        prometheus.Counter
	sessionsOpenRejected  prometheus.Counter
	sessionsActive        prometheus.Gauge
	sessionsTerminated    *prometheus.CounterVec
	sessionsPurged        prometheus.Counter
	responsesAccepted     prometheus.Counter
	responsesRejected     prometheus.Counter
	equivocationsDetected prometheus.Counter
}

// NewCollector builds a Collector and registers every metric against
// reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		sessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gsafety_sessions_opened_total",
			Help: "Number of accountable safety sessions opened.",
		}),
		sessionsOpenRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gsafety_sessions_open_rejected_total",
			Help: "Number of Open calls rejected for invalid input.",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gsafety_sessions_active",
			Help: "Number of sessions that have not yet terminated.",
		}),
		sessionsTerminated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gsafety_sessions_terminated_total",
			Help: "Number of sessions terminated, by verdict kind.",
		}, []string{"verdict"}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gsafety_sessions_purged_total",
			Help: "Number of terminated sessions removed from the registry after retention.",
		}),
		responsesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gsafety_responses_accepted_total",
			Help: "Number of query responses admitted.",
		}),
		responsesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gsafety_responses_rejected_total",
			Help: "Number of query responses rejected.",
		}),
		equivocationsDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gsafety_equivocations_detected_total",
			Help: "Number of distinct equivocations detected across all sessions.",
		}),
	}

	collectors := []prometheus.Collector{
		c.sessionsOpened,
		c.sessionsOpenRejected,
		c.sessionsActive,
		c.sessionsTerminated,
		c.sessionsPurged,
		c.responsesAccepted,
		c.responsesRejected,
		c.equivocationsDetected,
	}
	for _, col := range collectors {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// SessionOpened records a successful Open.
func (c *Collector) SessionOpened() {
	c.sessionsOpened.Inc()
	c.sessionsActive.Inc()
}

// SessionOpenRejected records an Open rejected for invalid input.
func (c *Collector) SessionOpenRejected() {
	c.sessionsOpenRejected.Inc()
}

// SessionTerminated records a session reaching a terminal phase.
func (c *Collector) SessionTerminated(verdict gsdriver.VerdictKind) {
	c.sessionsActive.Dec()
	c.sessionsTerminated.WithLabelValues(verdictLabel(verdict)).Inc()
}

// SessionsPurged records n sessions removed from the registry.
func (c *Collector) SessionsPurged(n int) {
	c.sessionsPurged.Add(float64(n))
}

// ResponseAccepted records a response admitted into a query.
func (c *Collector) ResponseAccepted() {
	c.responsesAccepted.Inc()
}

// ResponseRejected records a response rejected by the validator.
func (c *Collector) ResponseRejected() {
	c.responsesRejected.Inc()
}

// EquivocationsDetected records n newly confirmed equivocations.
func (c *Collector) EquivocationsDetected(n int) {
	c.equivocationsDetected.Add(float64(n))
}

func verdictLabel(v gsdriver.VerdictKind) string {
	switch v {
	case gsdriver.VerdictEquivocators:
		return "equivocators"
	case gsdriver.VerdictByzantine:
		return "byzantine"
	case gsdriver.VerdictAborted:
		return "aborted"
	default:
		return "unknown"
	}
}
