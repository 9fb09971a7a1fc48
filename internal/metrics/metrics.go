// Package metrics exposes Prometheus counters for push delivery activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dogma165/push-notification/internal/eventbus"
)

// Metrics holds the delivery counters.
type Metrics struct {
	registry *prometheus.Registry

	// Deliveries counts per-notification outcomes, labeled by service
	// type and status ("sent" or "failed").
	Deliveries *prometheus.CounterVec

	// FlushBatches counts completed flushes.
	FlushBatches prometheus.Counter
}

// New creates a Metrics instance backed by its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webpush_deliveries_total",
			Help: "Push notification delivery attempts by service type and status.",
		}, []string{"service", "status"}),
		FlushBatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "webpush_flush_batches_total",
			Help: "Completed flush batches.",
		}),
	}
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Listener returns an event bus listener that feeds the counters from
// delivery lifecycle events.
func (m *Metrics) Listener() eventbus.Listener {
	return func(e eventbus.Event) {
		switch e.Type {
		case eventbus.EventDeliverySent:
			m.Deliveries.WithLabelValues(e.Payload["service"], "sent").Inc()
		case eventbus.EventDeliveryFailed:
			m.Deliveries.WithLabelValues(e.Payload["service"], "failed").Inc()
		case eventbus.EventFlushCompleted:
			m.FlushBatches.Inc()
		}
	}
}
