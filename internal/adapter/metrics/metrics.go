// Package metrics exposes delivery-path counters on the Prometheus registry
// mounted at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
)

// Delivery holds the delivery-path instruments. It is injected wherever push
// attempts happen; a fresh registry per app instance keeps tests isolated.
type Delivery struct {
	ConnectionsActive prometheus.Gauge
	BroadcastsTotal   prometheus.Counter
	PushesDelivered   *prometheus.CounterVec
	PushesDropped     *prometheus.CounterVec
}

func NewDelivery(reg prometheus.Registerer) *Delivery {
	factory := promauto.With(reg)

	return &Delivery{
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "chat_delivery",
			Name:      "connections_active",
			Help:      "Number of currently registered push channels.",
		}),
		BroadcastsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "chat_delivery",
			Name:      "broadcasts_total",
			Help:      "Number of broadcast invocations.",
		}),
		PushesDelivered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat_delivery",
			Name:      "pushes_delivered_total",
			Help:      "Delivery events accepted by a live push channel.",
		}, []string{"kind"}),
		PushesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat_delivery",
			Name:      "pushes_dropped_total",
			Help:      "Delivery events dropped, by reason (offline, closed, full).",
		}, []string{"reason"}),
	}
}

var Module = fx.Module("metrics",
	fx.Provide(
		func() *prometheus.Registry { return prometheus.NewRegistry() },
		func(r *prometheus.Registry) prometheus.Registerer { return r },
		NewDelivery,
	),
)
