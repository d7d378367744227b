// Package metrics holds the Prometheus collectors for the realtime client and relay.
// All recording methods are safe to call on a nil receiver.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "realtime"

// Client holds collectors for one realtime client.
type Client struct {
	ReconnectAttempts prometheus.Counter
	FramesReceived    *prometheus.CounterVec
	FramesDropped     *prometheus.CounterVec
	CommandsSent      *prometheus.CounterVec
	Connected         prometheus.Gauge
}

// NewClient creates the client collectors and registers them on reg.
func NewClient(reg prometheus.Registerer) *Client {
	m := &Client{
		ReconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "reconnect_attempts_total",
			Help:      "Automatic reconnect attempts scheduled after an unclean close",
		}),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "frames_received_total",
			Help:      "Inbound frames dispatched, by frame type",
		}, []string{"type"}),
		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "frames_dropped_total",
			Help:      "Inbound frames that failed to parse or whose handler failed",
		}, []string{"reason"}),
		CommandsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "commands_sent_total",
			Help:      "Outbound commands written to the socket",
		}, []string{"command"}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "connected",
			Help:      "1 while the client holds an open socket",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ReconnectAttempts, m.FramesReceived, m.FramesDropped, m.CommandsSent, m.Connected)
	}
	return m
}

func (m *Client) ReconnectScheduled() {
	if m == nil {
		return
	}
	m.ReconnectAttempts.Inc()
}

func (m *Client) FrameReceived(frameType string) {
	if m == nil {
		return
	}
	m.FramesReceived.WithLabelValues(frameType).Inc()
}

func (m *Client) FrameDropped(reason string) {
	if m == nil {
		return
	}
	m.FramesDropped.WithLabelValues(reason).Inc()
}

func (m *Client) CommandSent(command string) {
	if m == nil {
		return
	}
	m.CommandsSent.WithLabelValues(command).Inc()
}

func (m *Client) SetConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.Connected.Set(1)
		return
	}
	m.Connected.Set(0)
}

// Relay holds collectors for the relay server.
type Relay struct {
	Connections      prometheus.Gauge
	Commands         *prometheus.CounterVec
	BroadcastDropped prometheus.Counter
}

// NewRelay creates the relay collectors and registers them on reg.
func NewRelay(reg prometheus.Registerer) *Relay {
	m := &Relay{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "connections",
			Help:      "Currently registered WebSocket connections",
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "commands_total",
			Help:      "Commands handled, by command and result",
		}, []string{"command", "result"}),
		BroadcastDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "broadcast_dropped_total",
			Help:      "Frames dropped because a connection send buffer was full",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Connections, m.Commands, m.BroadcastDropped)
	}
	return m
}

func (m *Relay) ConnectionAdded() {
	if m == nil {
		return
	}
	m.Connections.Inc()
}

func (m *Relay) ConnectionRemoved() {
	if m == nil {
		return
	}
	m.Connections.Dec()
}

func (m *Relay) CommandHandled(command, result string) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(command, result).Inc()
}

func (m *Relay) Dropped() {
	if m == nil {
		return
	}
	m.BroadcastDropped.Inc()
}
