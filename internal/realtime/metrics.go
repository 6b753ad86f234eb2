package realtime

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors of the broadcast layer. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	events      *prometheus.CounterVec
	deliveries  prometheus.Counter
	prunes      prometheus.Counter
	rooms       prometheus.Gauge
	subscribers prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wishlist",
			Subsystem: "realtime",
			Name:      "events_published_total",
			Help:      "Events published to rooms, by kind.",
		}, []string{"type"}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wishlist",
			Subsystem: "realtime",
			Name:      "deliveries_total",
			Help:      "Events queued to individual subscribers.",
		}),
		prunes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wishlist",
			Subsystem: "realtime",
			Name:      "subscribers_pruned_total",
			Help:      "Subscribers dropped after a failed delivery.",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wishlist",
			Subsystem: "realtime",
			Name:      "rooms",
			Help:      "Rooms with at least one subscriber.",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wishlist",
			Subsystem: "realtime",
			Name:      "subscribers",
			Help:      "Connected subscribers across all rooms.",
		}),
	}
	reg.MustRegister(m.events, m.deliveries, m.prunes, m.rooms, m.subscribers)
	return m
}

func (m *Metrics) published(kind EventKind, delivered int) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(string(kind)).Inc()
	m.deliveries.Add(float64(delivered))
}

func (m *Metrics) pruned(n int) {
	if m == nil {
		return
	}
	m.prunes.Add(float64(n))
}

func (m *Metrics) observeRegistry(rooms int, delta int) {
	if m == nil {
		return
	}
	m.rooms.Set(float64(rooms))
	m.subscribers.Add(float64(delta))
}
