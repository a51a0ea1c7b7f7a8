package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LeventeLantos/outreach-compliance/internal/compliance"
)

// Outcomes recorded for outbound messages.
const (
	OutcomeSent       = "sent"
	OutcomeDeferred   = "deferred"
	OutcomeSuppressed = "suppressed"
	OutcomeFailed     = "failed"
)

type Metrics struct {
	reg prometheus.Gatherer

	inbound     *prometheus.CounterVec
	transitions *prometheus.CounterVec
	outbound    *prometheus.CounterVec
	footers     prometheus.Counter
}

// New registers the counters on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		inbound: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inbound_classifications_total",
				Help: "Inbound messages by consent classification",
			},
			[]string{"classification"},
		),
		transitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "consent_transitions_total",
				Help: "Applied consent transitions, split by whether state changed",
			},
			[]string{"to", "changed"},
		),
		outbound: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outbound_decisions_total",
				Help: "Outbound messages by dispatch outcome",
			},
			[]string{"outcome"},
		),
		footers: f.NewCounter(prometheus.CounterOpts{
			Name: "footer_appended_total",
			Help: "Outbound messages sent with the compliance footer",
		}),
	}
}

func (m *Metrics) ObserveInbound(c compliance.Classification) {
	m.inbound.WithLabelValues(string(c)).Inc()
}

func (m *Metrics) ObserveTransition(t compliance.Transition) {
	m.transitions.WithLabelValues(string(t.To), strconv.FormatBool(t.Changed)).Inc()
}

func (m *Metrics) ObserveOutbound(outcome string) {
	m.outbound.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveFooter() {
	m.footers.Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
