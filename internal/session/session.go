// Package session implements the per-client loop: filter a global quote
// stream against the client's ticker subscription, serialize, send on the
// shared UDP socket, and terminate on keep-alive timeout or excessive send
// failures.
package session

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/hydrafeed/quotestream/internal/hub"
	"github.com/hydrafeed/quotestream/internal/ping"
	"github.com/hydrafeed/quotestream/internal/wire"
)

// Tick bounds the wait for one more quote after the queue has been drained,
// so the shutdown flag and liveness are re-checked at least this often.
const Tick = 10 * time.Millisecond

// PingTimeout is how long a session tolerates no observed ping before it
// terminates. A session is given this much grace from its own start to see
// its first ping.
const PingTimeout = 5 * time.Second

// SendErrorThreshold is the number of consecutive send failures that
// terminates a session. Sparse errors are tolerated; sustained errors are
// fatal.
const SendErrorThreshold = 20

// Session is a single subscribed client's server-side loop.
type Session struct {
	CID      hub.ClientID
	Queue    *hub.Queue
	Target   *net.UDPAddr
	Conn     *net.UDPConn
	Tickers  map[string]struct{}
	Liveness *ping.LivenessMap
	Logger   *slog.Logger

	start time.Time
}

// New builds a Session. tickers should already be normalized (trimmed,
// uppercase).
func New(cid hub.ClientID, queue *hub.Queue, target *net.UDPAddr, conn *net.UDPConn, tickers []string, liveness *ping.LivenessMap, logger *slog.Logger) *Session {
	set := make(map[string]struct{}, len(tickers))
	for _, t := range tickers {
		set[t] = struct{}{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		CID:      cid,
		Queue:    queue,
		Target:   target,
		Conn:     conn,
		Tickers:  set,
		Liveness: liveness,
		Logger:   logger,
	}
}

// ExitReason classifies why Run returned, for the caller's session ledger.
type ExitReason string

const (
	ExitShutdown           ExitReason = "shutdown"
	ExitTimeout            ExitReason = "timeout"
	ExitQueueDisconnected  ExitReason = "queue_disconnected"
	ExitSendErrorsExceeded ExitReason = "send_errors_exceeded"
)

// Run drains and serves the session's queue until shutdown, keep-alive
// timeout, queue disconnection, or a run of send failures. It always
// removes its liveness entry before returning, regardless of exit path.
func (s *Session) Run(ctx context.Context) (ExitReason, error) {
	s.start = time.Now()
	defer s.Liveness.Delete(s.Target.String())

	errStreak := 0

	for {
		if ctx.Err() != nil {
			return ExitShutdown, nil
		}
		if s.pingExpired() {
			return ExitTimeout, nil
		}

		drainedAny := false
		for {
			q, ok, disconnected := s.Queue.TryRecv()
			if disconnected {
				return ExitQueueDisconnected, nil
			}
			if !ok {
				break
			}
			drainedAny = true
			if err := s.deliver(q, &errStreak); err != nil {
				return ExitSendErrorsExceeded, err
			}
		}
		if drainedAny {
			continue
		}

		q, ok, disconnected := s.Queue.RecvTimeout(Tick)
		if disconnected {
			return ExitQueueDisconnected, nil
		}
		if !ok {
			continue
		}
		if err := s.deliver(q, &errStreak); err != nil {
			return ExitSendErrorsExceeded, err
		}
	}
}

// pingExpired implements now - max(last_ping[target], session_start) >
// PingTimeout. Absent a recorded ping, the session's own start time is the
// baseline, giving it PingTimeout to see its first ping.
func (s *Session) pingExpired() bool {
	baseline := s.start
	if last, ok := s.Liveness.LastPing(s.Target.String()); ok && last.After(baseline) {
		baseline = last
	}
	return time.Since(baseline) > PingTimeout
}

func (s *Session) deliver(q *wire.Quote, errStreak *int) error {
	if _, subscribed := s.Tickers[q.Ticker]; !subscribed {
		return nil
	}

	payload, err := wire.Encode(wire.QuotePacket(*q))
	if err != nil {
		s.Logger.Error("session: encode failure, dropping quote", "cid", s.CID, "ticker", q.Ticker, "error", err)
		return nil
	}

	if _, err := s.Conn.WriteToUDP(payload, s.Target); err != nil {
		*errStreak++
		s.Logger.Warn("session: send failure", "cid", s.CID, "target", s.Target.String(), "streak", *errStreak, "error", err)
		if *errStreak >= SendErrorThreshold {
			return err
		}
		return nil
	}

	*errStreak = 0
	return nil
}
