package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts ledger outcomes. A nil *Metrics records nothing.
type Metrics struct {
	accepted   *prometheus.CounterVec
	rejections *prometheus.CounterVec
}

// NewMetrics creates the ledger collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		accepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wishlist",
			Subsystem: "ledger",
			Name:      "accepted_total",
			Help:      "Reservations and contributions recorded, by operation.",
		}, []string{"op"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wishlist",
			Subsystem: "ledger",
			Name:      "rejections_total",
			Help:      "Ledger operations rejected, by operation and reason.",
		}, []string{"op", "reason"}),
	}
	reg.MustRegister(m.accepted, m.rejections)
	return m
}

func (m *Metrics) accept(op string) {
	if m == nil {
		return
	}
	m.accepted.WithLabelValues(op).Inc()
}

func (m *Metrics) reject(op string, err error) {
	if m == nil {
		return
	}
	if reason := rejectionReason(err); reason != "" {
		m.rejections.WithLabelValues(op, reason).Inc()
	}
}
