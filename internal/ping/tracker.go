// Package ping implements the keep-alive tracker: the single reader of the
// shared UDP socket that multiplexes inbound pings from all clients into a
// liveness map keyed by source address.
package ping

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/hydrafeed/quotestream/internal/pool"
	"github.com/hydrafeed/quotestream/internal/wire"
)

// ReadTimeout bounds each read on the shared socket so the tracker can
// observe shutdown with bounded latency.
const ReadTimeout = 200 * time.Millisecond

// MaxDatagramSize is the largest UDP datagram this service produces or
// accepts.
const MaxDatagramSize = 2048

var bufferPool = pool.New(func() *[]byte {
	buf := make([]byte, MaxDatagramSize)
	return &buf
})

// LivenessMap tracks the last observed ping instant per UDP source address.
// The tracker is the sole writer; sessions only read, and delete their own
// key on termination.
type LivenessMap struct {
	mu   sync.RWMutex
	last map[string]time.Time
}

// NewLivenessMap creates an empty liveness map.
func NewLivenessMap() *LivenessMap {
	return &LivenessMap{last: make(map[string]time.Time)}
}

// Touch records at as the last observed ping instant for addr. The tracker
// is the only caller in production; tests use it to pre-populate liveness
// state without running a real tracker.
func (m *LivenessMap) Touch(addr string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last[addr] = at
}

// LastPing returns the last observed ping instant for addr, if any.
func (m *LivenessMap) LastPing(addr string) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.last[addr]
	return t, ok
}

// Delete removes addr's entry. Safe to call even if absent.
func (m *LivenessMap) Delete(addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.last, addr)
}

// Tracker reads the shared UDP socket and updates a LivenessMap.
type Tracker struct {
	Conn     *net.UDPConn
	Liveness *LivenessMap
	Logger   *slog.Logger
}

// New creates a Tracker over the given socket and liveness map.
func New(conn *net.UDPConn, liveness *LivenessMap, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{Conn: conn, Liveness: liveness, Logger: logger}
}

// Run reads datagrams until ctx is cancelled or a non-timeout I/O error
// occurs, in which case it returns that error. Ping datagrams update the
// liveness map; Quote datagrams are ignored (clients never send quotes);
// decode errors are logged and skipped.
func (t *Tracker) Run(ctx context.Context) error {
	bufPtr := bufferPool.Get()
	defer bufferPool.Put(bufPtr)
	buf := *bufPtr

	for {
		if ctx.Err() != nil {
			return nil
		}

		if err := t.Conn.SetReadDeadline(time.Now().Add(ReadTimeout)); err != nil {
			return err
		}

		n, src, err := t.Conn.ReadFromUDP(buf)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		packet, err := wire.Decode(buf[:n])
		if err != nil {
			t.Logger.Warn("ping tracker: discarding malformed datagram", "src", src.String(), "error", err)
			continue
		}
		if !packet.IsPing {
			continue
		}

		t.Liveness.Touch(src.String(), time.Now())
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
