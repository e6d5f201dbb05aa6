package notify

import (
	"context"

	"github.com/attaboy/muteregistry/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts restriction events by identifier type.
type Metrics struct {
	added   *prometheus.CounterVec
	removed *prometheus.CounterVec
}

// NewMetrics registers the counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		added: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mute_registry",
			Name:      "restrictions_added_total",
			Help:      "Restriction records created, by identifier type",
		}, []string{"identifier_type"}),
		removed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mute_registry",
			Name:      "restrictions_removed_total",
			Help:      "Restriction records removed, by identifier type",
		}, []string{"identifier_type"}),
	}

	// Export zero series so rate() works before the first event.
	for _, t := range domain.AllIdentifierTypes() {
		m.added.WithLabelValues(string(t))
		m.removed.WithLabelValues(string(t))
	}
	return m
}

func (m *Metrics) OnRestrictionAdded(_ context.Context, r domain.Restriction) error {
	m.added.WithLabelValues(string(r.Type)).Inc()
	return nil
}

func (m *Metrics) OnRestrictionRemoved(_ context.Context, r domain.Restriction) error {
	m.removed.WithLabelValues(string(r.Type)).Inc()
	return nil
}
