package session

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/hydrafeed/quotestream/internal/hub"
	"github.com/hydrafeed/quotestream/internal/ping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoopbackPair(t *testing.T) (*net.UDPConn, *net.UDPAddr) {
	t.Helper()
	serverConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { serverConn.Close() })

	clientConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { clientConn.Close() })

	return serverConn, clientConn.LocalAddr().(*net.UDPAddr)
}

// S6, Session timeout.
func TestSessionExitsOnPingTimeout(t *testing.T) {
	serverConn, clientAddr := newLoopbackPair(t)

	liveness := ping.NewLivenessMap()
	liveness.Touch(clientAddr.String(), time.Now().Add(-(PingTimeout + time.Millisecond)))

	h := hub.New(4)
	queue, err := h.AddClient(1)
	require.NoError(t, err)

	s := New(1, queue, clientAddr, serverConn, []string{"AAPL"}, liveness, nil)

	done := make(chan ExitReason, 1)
	go func() {
		reason, err := s.Run(context.Background())
		require.NoError(t, err)
		done <- reason
	}()

	select {
	case reason := <-done:
		assert.Equal(t, ExitTimeout, reason)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not exit promptly on ping timeout")
	}

	_, ok := liveness.LastPing(clientAddr.String())
	assert.False(t, ok)
}

func TestSessionGracePeriodBeforeFirstPing(t *testing.T) {
	serverConn, clientAddr := newLoopbackPair(t)

	liveness := ping.NewLivenessMap()
	h := hub.New(4)
	queue, err := h.AddClient(1)
	require.NoError(t, err)

	s := New(1, queue, clientAddr, serverConn, []string{"AAPL"}, liveness, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan ExitReason, 1)
	go func() {
		reason, _ := s.Run(ctx)
		done <- reason
	}()

	select {
	case reason := <-done:
		t.Fatalf("session exited early with reason %q before grace period elapsed", reason)
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	select {
	case reason := <-done:
		assert.Equal(t, ExitShutdown, reason)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not exit on shutdown")
	}
}

func TestSessionExitsOnQueueDisconnect(t *testing.T) {
	serverConn, clientAddr := newLoopbackPair(t)

	liveness := ping.NewLivenessMap()
	liveness.Touch(clientAddr.String(), time.Now())

	h := hub.New(4)
	queue, err := h.AddClient(1)
	require.NoError(t, err)

	s := New(1, queue, clientAddr, serverConn, []string{"AAPL"}, liveness, nil)

	done := make(chan ExitReason, 1)
	go func() {
		reason, _ := s.Run(context.Background())
		done <- reason
	}()

	h.RemoveClient(1)

	select {
	case reason := <-done:
		assert.Equal(t, ExitQueueDisconnected, reason)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not exit after queue disconnect")
	}
}
