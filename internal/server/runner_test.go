package server

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/hydrafeed/quotestream/internal/config"
	"github.com/hydrafeed/quotestream/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRunnerEndToEndStreamAndShutdown exercises the full wiring: a STREAM
// control connection registers, quotes and pings flow over the shared UDP
// socket, and cancelling the context shuts everything down cleanly.
func TestRunnerEndToEndStreamAndShutdown(t *testing.T) {
	cfg := &config.ServerConfig{
		TCPBind: "127.0.0.1:0",
		UDPBind: "127.0.0.1:0",
		Tickers: config.TickersConfig{Text: "AAPL,MSFT"},
		Cluster: config.ClusterConfig{Mode: config.ClusterModeStandalone},
	}

	// Run binds its own listeners from cfg and does not report the ports it
	// chose, so reserve ephemeral ports here by binding and releasing them,
	// then hand those fixed addresses to Run.
	udpConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)

	clientUDP, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer clientUDP.Close()

	tcpLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	tcpAddr := tcpLn.Addr().String()
	require.NoError(t, tcpLn.Close())

	cfg.TCPBind = tcpAddr
	cfg.UDPBind = udpConn.LocalAddr().String()
	require.NoError(t, udpConn.Close())

	ctx, cancel := context.WithCancel(context.Background())
	runErrCh := make(chan error, 1)
	r := NewRunner(nil)
	go func() { runErrCh <- r.Run(ctx, cfg) }()

	// Poll until the TCP listener is accepting.
	var conn net.Conn
	require.Eventually(t, func() bool {
		c, err := net.DialTimeout("tcp", tcpAddr, 100*time.Millisecond)
		if err != nil {
			return false
		}
		conn = c
		return true
	}, 3*time.Second, 20*time.Millisecond)
	defer conn.Close()

	_, err = conn.Write([]byte("STREAM udp://" + clientUDP.LocalAddr().String() + " AAPL\n"))
	require.NoError(t, err)

	reply, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "OK\n", reply)

	// Send a ping so the session doesn't time out mid-test.
	pingBytes, err := wire.Encode(wire.PingPacket())
	require.NoError(t, err)
	udpTarget, err := net.ResolveUDPAddr("udp", cfg.UDPBind)
	require.NoError(t, err)
	_, err = clientUDP.WriteToUDP(pingBytes, udpTarget)
	require.NoError(t, err)

	// Expect a quote datagram within a couple of publish intervals.
	buf := make([]byte, 2048)
	require.NoError(t, clientUDP.SetReadDeadline(time.Now().Add(3*time.Second)))
	n, _, err := clientUDP.ReadFromUDP(buf)
	require.NoError(t, err)

	pkt, err := wire.Decode(buf[:n])
	require.NoError(t, err)
	assert.False(t, pkt.IsPing)
	assert.Equal(t, "AAPL", pkt.Quote.Ticker)

	cancel()
	select {
	case err := <-runErrCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("runner did not shut down after cancellation")
	}
}
