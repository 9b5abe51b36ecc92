// Package server implements the TCP control listener: accept, parse the
// STREAM command, register with the Hub, and hand off to a Session.
package server

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/hydrafeed/quotestream/internal/control"
	"github.com/hydrafeed/quotestream/internal/hub"
	"github.com/hydrafeed/quotestream/internal/ping"
	"github.com/hydrafeed/quotestream/internal/session"
)

// controlTimeout bounds the read/write of the single STREAM line per the
// external interface's 5-second TCP timeout.
const controlTimeout = 5 * time.Second

// SessionRecorder receives session lifecycle events for the ledger. Nil is
// a valid Listener field: events are simply not recorded.
type SessionRecorder interface {
	RecordSessionEvent(cid hub.ClientID, event, udpTarget string, tickers []string)
}

// Listener accepts STREAM control connections and spawns a Session per
// successful registration.
type Listener struct {
	Hub      *hub.Hub
	IDs      *hub.IDAllocator
	Liveness *ping.LivenessMap
	UDPConn  *net.UDPConn
	Stats    *ListenerStats
	Sessions *SessionRegistry
	Recorder SessionRecorder
	Logger   *slog.Logger

	ln net.Listener
	wg sync.WaitGroup
}

// Run binds addr and accepts connections until ctx is cancelled, at which
// point it closes the listener (unblocking the in-flight Accept) and joins
// outstanding handlers.
func (l *Listener) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("tcp listener: bind %s: %w", addr, err)
	}
	l.ln = ln

	go func() {
		<-ctx.Done()
		_ = l.ln.Close()
	}()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				l.wg.Wait()
				return nil
			}
			return fmt.Errorf("tcp listener: accept: %w", err)
		}

		if l.Stats != nil {
			l.Stats.RecordConnection()
		}

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.handleConnection(ctx, conn)
		}()
	}
}

// Stop closes the listener and waits up to timeout for handlers to finish.
func (l *Listener) Stop(timeout time.Duration) error {
	if l.ln != nil {
		_ = l.ln.Close()
	}
	if timeout <= 0 {
		l.wg.Wait()
		return nil
	}
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("tcp listener: timeout waiting for handlers")
	}
}

// handleConnection never errors out: parse failures are reported to the
// peer and the connection is closed. On success it registers with the Hub,
// replies OK, half-closes, runs the session to completion, and always
// removes the Hub registration on return.
func (l *Listener) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(controlTimeout))
	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		if l.Stats != nil {
			l.Stats.RecordStreamRejected()
		}
		return
	}

	cmd, parseErr := control.Parse(line)
	if parseErr != nil {
		if l.Stats != nil {
			l.Stats.RecordStreamRejected()
		}
		_, _ = conn.Write([]byte(fmt.Sprintf("ERR %s\n", parseErr.Error())))
		return
	}

	cid := l.IDs.Next()
	queue, err := l.Hub.AddClient(cid)
	if err != nil {
		if l.Stats != nil {
			l.Stats.RecordStreamRejected()
		}
		_, _ = conn.Write([]byte(fmt.Sprintf("ERR %s\n", err.Error())))
		return
	}

	if _, err := conn.Write([]byte("OK\n")); err != nil {
		l.Hub.RemoveClient(cid)
		return
	}
	if closer, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = closer.CloseWrite()
	}

	if l.Stats != nil {
		l.Stats.RecordStreamAccepted()
	}
	if l.Recorder != nil {
		l.Recorder.RecordSessionEvent(cid, "connected", cmd.Target.String(), cmd.Tickers)
	}
	if l.Sessions != nil {
		l.Sessions.Add(cid, cmd.Target.String(), cmd.Tickers)
	}

	sess := session.New(cid, queue, cmd.Target, l.UDPConn, cmd.Tickers, l.Liveness, l.Logger)
	reason, runErr := sess.Run(ctx)

	l.Hub.RemoveClient(cid)
	if l.Stats != nil {
		l.Stats.RecordSessionEnded()
	}
	if l.Sessions != nil {
		l.Sessions.Remove(cid)
	}
	if l.Recorder != nil {
		l.Recorder.RecordSessionEvent(cid, string(reason), cmd.Target.String(), cmd.Tickers)
	}
	if runErr != nil && l.Logger != nil {
		l.Logger.Warn("session terminated with error", "cid", cid, "reason", reason, "error", runErr)
	}
}
