package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics records cart engine activity.
type CartMetrics struct {
	mutations      *prometheus.CounterVec
	persistFailure *prometheus.CounterVec
	loadRecovery   *prometheus.CounterVec
	notifications  *prometheus.CounterVec
}

// NewCartMetrics registers the cart metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Applied cart mutations by operation.",
	}, []string{"op"})
	persistFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_persist_failures_total",
		Help: "Cart writes the persistence store rejected, by operation.",
	}, []string{"op"})
	loadRecovery := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_load_recoveries_total",
		Help: "Cart loads that fell back to an empty cart, by reason.",
	}, []string{"reason"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_events_total",
		Help: "Events published on the storefront bus.",
	}, []string{"event"})
	reg.MustRegister(mutations, persistFailure, loadRecovery, notifications)
	return &CartMetrics{
		mutations:      mutations,
		persistFailure: persistFailure,
		loadRecovery:   loadRecovery,
		notifications:  notifications,
	}
}

func (c *CartMetrics) IncMutation(op string) {
	if c == nil || c.mutations == nil {
		return
	}
	c.mutations.WithLabelValues(normalizeLabel(op)).Inc()
}

func (c *CartMetrics) IncPersistFailure(op string) {
	if c == nil || c.persistFailure == nil {
		return
	}
	c.persistFailure.WithLabelValues(normalizeLabel(op)).Inc()
}

func (c *CartMetrics) IncLoadRecovery(reason string) {
	if c == nil || c.loadRecovery == nil {
		return
	}
	c.loadRecovery.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (c *CartMetrics) IncEvent(event string) {
	if c == nil || c.notifications == nil {
		return
	}
	c.notifications.WithLabelValues(normalizeLabel(event)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
