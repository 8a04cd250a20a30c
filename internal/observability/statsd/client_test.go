package statsd

import (
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*net.UDPConn, string) {
	t.Helper()

	addr, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	require.NoError(t, err)

	conn, err := net.ListenUDP("udp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn, conn.LocalAddr().String()
}

func readPacket(t *testing.T, conn *net.UDPConn) string {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 1024)
	n, _, err := conn.ReadFromUDP(buf)
	require.NoError(t, err)
	return string(buf[:n])
}

func TestClientDisabled(t *testing.T) {
	client, err := NewClient(Config{Enabled: false, Address: "127.0.0.1:8125"})
	require.NoError(t, err)

	assert.False(t, client.Enabled())
	// Writes on a disabled client must be no-ops.
	client.Count("tasks.started", 1, nil)
	require.NoError(t, client.Close())
}

func TestClientEmptyAddressDisables(t *testing.T) {
	client, err := NewClient(Config{Enabled: true, Address: "  "})
	require.NoError(t, err)
	assert.False(t, client.Enabled())
}

func TestClientCount(t *testing.T) {
	server, addr := newTestServer(t)

	client, err := NewClient(Config{
		Enabled: true,
		Address: addr,
		Prefix:  "orderworker",
		Logger:  slog.Default(),
	})
	require.NoError(t, err)
	defer client.Close()

	client.Count("tasks.completed", 3, map[string]string{"task": "order_receipt"})

	assert.Equal(t, "orderworker.tasks.completed:3|c|#task:order_receipt", readPacket(t, server))
}

func TestClientGauge(t *testing.T) {
	server, addr := newTestServer(t)

	client, err := NewClient(Config{Enabled: true, Address: addr, Prefix: "orderworker"})
	require.NoError(t, err)
	defer client.Close()

	client.Gauge("workers.active", 4, nil)

	assert.Equal(t, "orderworker.workers.active:4|g", readPacket(t, server))
}

func TestClientTiming(t *testing.T) {
	server, addr := newTestServer(t)

	client, err := NewClient(Config{Enabled: true, Address: addr, Prefix: "orderworker"})
	require.NoError(t, err)
	defer client.Close()

	client.Timing("span.duration", 1500*time.Millisecond, map[string]string{"span": "task.run"})

	assert.Equal(t, "orderworker.span.duration:1500|ms|#span:task.run", readPacket(t, server))
}

func TestClientTagMerging(t *testing.T) {
	server, addr := newTestServer(t)

	client, err := NewClient(Config{
		Enabled:    true,
		Address:    addr,
		Prefix:     "orderworker",
		GlobalTags: map[string]string{"env": "test", "task": "global"},
	})
	require.NoError(t, err)
	defer client.Close()

	// Local tags override globals; output keys are sorted.
	client.Count("tasks.failed", 1, map[string]string{"task": "invoice_generate"})

	assert.Equal(t, "orderworker.tasks.failed:1|c|#env:test,task:invoice_generate", readPacket(t, server))
}

func TestClientMetricNameSanitized(t *testing.T) {
	server, addr := newTestServer(t)

	client, err := NewClient(Config{Enabled: true, Address: addr})
	require.NoError(t, err)
	defer client.Close()

	client.Count("tasks/retried now", 1, nil)

	assert.Equal(t, "tasks_retried_now:1|c", readPacket(t, server))
}

func TestClientNilReceiverSafe(t *testing.T) {
	var client *Client
	assert.False(t, client.Enabled())
	client.Count("x", 1, nil)
	client.Gauge("x", 1, nil)
	client.Timing("x", time.Second, nil)
	assert.NoError(t, client.Close())
}
