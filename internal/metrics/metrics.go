// Package metrics defines the Prometheus collectors exported by the relay.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bus_relay"

// Delivery result label values.
const (
	ResultDelivered = "delivered"
	ResultFailed    = "failed"
)

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler returns an http.Handler that serves the metrics in reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Relay holds the collectors updated by the socket hub and the broadcast path.
type Relay struct {
	Subscribers     prometheus.Gauge
	Connections     prometheus.Counter
	InboundMessages prometheus.Counter
	Broadcasts      prometheus.Counter
	Deliveries      *prometheus.CounterVec
}

// NewRelay creates the relay collectors and registers them on reg.
func NewRelay(reg prometheus.Registerer) *Relay {
	m := &Relay{
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "subscribers",
			Help:      "Number of currently registered subscriber connections.",
		}),
		Connections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "connections_total",
			Help:      "Total number of accepted subscriber connections.",
		}),
		InboundMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "inbound_messages_total",
			Help:      "Total number of frames received from subscribers and ignored.",
		}),
		Broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Total number of broadcast requests relayed.",
		}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Per-subscriber push attempts by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(m.Subscribers, m.Connections, m.InboundMessages, m.Broadcasts, m.Deliveries)
	return m
}
