package ping

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/hydrafeed/quotestream/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLivenessMapTouchAndDelete(t *testing.T) {
	m := NewLivenessMap()
	_, ok := m.LastPing("1.2.3.4:5")
	assert.False(t, ok)

	m.Touch("1.2.3.4:5", time.Unix(100, 0))
	last, ok := m.LastPing("1.2.3.4:5")
	require.True(t, ok)
	assert.Equal(t, int64(100), last.Unix())

	m.Delete("1.2.3.4:5")
	_, ok = m.LastPing("1.2.3.4:5")
	assert.False(t, ok)
}

func TestTrackerRecordsPingsIgnoresQuotesAndSkipsGarbage(t *testing.T) {
	serverConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer serverConn.Close()

	clientConn, err := net.DialUDP("udp", nil, serverConn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer clientConn.Close()

	liveness := NewLivenessMap()
	tracker := New(serverConn, liveness, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tracker.Run(ctx) }()

	garbage := []byte{0xFF}
	_, err = clientConn.Write(garbage)
	require.NoError(t, err)

	pingBytes, err := wire.Encode(wire.PingPacket())
	require.NoError(t, err)
	_, err = clientConn.Write(pingBytes)
	require.NoError(t, err)

	quoteBytes, err := wire.Encode(wire.QuotePacket(wire.Quote{Ticker: "AAPL"}))
	require.NoError(t, err)
	_, err = clientConn.Write(quoteBytes)
	require.NoError(t, err)

	clientAddr := clientConn.LocalAddr().String()
	require.Eventually(t, func() bool {
		_, ok := liveness.LastPing(clientAddr)
		return ok
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("tracker did not stop after context cancellation")
	}
}
