package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics aggregates the node's Prometheus collectors on a private registry
// so the daemon can expose them without inheriting global state.
type Metrics struct {
	registry   *prometheus.Registry
	opsApplied *prometheus.CounterVec
	opsFailed  *prometheus.CounterVec
	feesUNIT   prometheus.Counter
	claimsUNIT prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		opsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mailbox",
			Name:      "operations_applied_total",
			Help:      "Operations committed to state, by operation name.",
		}, []string{"op"}),
		opsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mailbox",
			Name:      "operations_failed_total",
			Help:      "Operations rejected or reverted, by operation name.",
		}, []string{"op"}),
		feesUNIT: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mailbox",
			Name:      "fees_collected_unit_total",
			Help:      "UNIT smallest-units collected in mailer send fees; mail service fees are not counted.",
		}),
		claimsUNIT: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mailbox",
			Name:      "claims_paid_unit_total",
			Help:      "UNIT smallest-units paid out through claim flows.",
		}),
	}
	registry.MustRegister(m.opsApplied, m.opsFailed, m.feesUNIT, m.claimsUNIT)
	registry.MustRegister(prometheus.NewGoCollector())
	return m
}

// ObserveOperation records the outcome of a state operation.
func (m *Metrics) ObserveOperation(op string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.opsFailed.WithLabelValues(op).Inc()
		return
	}
	m.opsApplied.WithLabelValues(op).Inc()
}

// ObserveFee records fee income in UNIT smallest units.
func (m *Metrics) ObserveFee(amount uint64) {
	if m == nil {
		return
	}
	m.feesUNIT.Add(float64(amount))
}

// ObserveClaimPayout records UNIT paid out by a claim flow.
func (m *Metrics) ObserveClaimPayout(amount uint64) {
	if m == nil {
		return
	}
	m.claimsUNIT.Add(float64(amount))
}

// Handler exposes the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
