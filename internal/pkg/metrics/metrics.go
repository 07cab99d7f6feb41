/*
Package metrics exposes Prometheus instrumentation for the room engine.
*/
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RoomsCreated counts rooms inserted into the room store.
	RoomsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vtt",
		Name:      "rooms_created_total",
		Help:      "Rooms created since process start.",
	})

	// ConnectionsActive tracks live socket connections.
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vtt",
		Name:      "connections_active",
		Help:      "Currently open socket connections.",
	})

	// EventsPublished counts outbound events by kind, once per publish call.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vtt",
		Name:      "events_published_total",
		Help:      "Outbound events published to rooms or sent to single connections.",
	}, []string{"kind"})

	// DeliveriesDropped counts per-connection deliveries skipped because the connection could not accept them.
	DeliveriesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vtt",
		Name:      "deliveries_dropped_total",
		Help:      "Deliveries dropped because a connection buffer was full or closed.",
	})

	// InboundRejected counts inbound socket events rejected before reaching the room store.
	InboundRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vtt",
		Name:      "inbound_rejected_total",
		Help:      "Inbound socket events rejected at the session boundary.",
	}, []string{"reason"})
)

// Handler exposes the default registry at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
