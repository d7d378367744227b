package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientMetricsRegisterAndRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewClient(reg)

	m.ReconnectScheduled()
	m.ReconnectScheduled()
	m.FrameReceived("new_message")
	m.FrameDropped("malformed")
	m.CommandSent("join_thread")
	m.SetConnected(true)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.ReconnectAttempts))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FramesReceived.WithLabelValues("new_message")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FramesDropped.WithLabelValues("malformed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CommandsSent.WithLabelValues("join_thread")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Connected))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilMetricsAreNoops(t *testing.T) {
	var c *Client
	var r *Relay
	assert.NotPanics(t, func() {
		c.ReconnectScheduled()
		c.FrameReceived("x")
		c.FrameDropped("x")
		c.CommandSent("x")
		c.SetConnected(true)
		r.ConnectionAdded()
		r.ConnectionRemoved()
		r.CommandHandled("x", "ok")
		r.Dropped()
	})
}

func TestRelayMetrics(t *testing.T) {
	m := NewRelay(prometheus.NewRegistry())
	m.ConnectionAdded()
	m.ConnectionAdded()
	m.ConnectionRemoved()
	m.CommandHandled("new_message", "ok")
	m.Dropped()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Connections))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Commands.WithLabelValues("new_message", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BroadcastDropped))
}
