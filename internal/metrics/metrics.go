// Package metrics counts framesock connection and traffic events in
// Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Zereker/framesock"
)

const namespace = "framesock"

// Observer is a framesock.Observer that records every notification.
type Observer struct {
	connections *prometheus.CounterVec
	active      prometheus.Gauge
	messages    *prometheus.CounterVec
	bytes       *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil reg uses
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) (*Observer, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	o := &Observer{
		connections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "conn",
				Name:      "events_total",
				Help:      "Connection lifecycle events.",
			},
			[]string{"event"},
		),
		active: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "conn",
				Name:      "active",
				Help:      "Connections currently open.",
			},
		),
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "frame",
				Name:      "messages_total",
				Help:      "Frames received and sent.",
			},
			[]string{"direction"},
		),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "frame",
				Name:      "payload_bytes_total",
				Help:      "Payload bytes received and sent, excluding length prefixes.",
			},
			[]string{"direction"},
		),
	}

	for _, c := range []prometheus.Collector{o.connections, o.active, o.messages, o.bytes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (o *Observer) OnConnected(*framesock.Conn) {
	o.connections.WithLabelValues("connected").Inc()
	o.active.Inc()
}

func (o *Observer) OnAccepted(*framesock.Conn) {
	o.connections.WithLabelValues("accepted").Inc()
	o.active.Inc()
}

func (o *Observer) OnClosed(c *framesock.Conn) {
	o.connections.WithLabelValues("closed").Inc()
	// a failed dial closes without ever becoming active
	if c.RemoteAddr() != nil {
		o.active.Dec()
	}
}

func (o *Observer) OnMessage(_ *framesock.Conn, payload []byte) {
	o.messages.WithLabelValues("in").Inc()
	o.bytes.WithLabelValues("in").Add(float64(len(payload)))
}

func (o *Observer) OnSent(_ *framesock.Conn, payload []byte) {
	o.messages.WithLabelValues("out").Inc()
	o.bytes.WithLabelValues("out").Add(float64(len(payload)))
}
