// Package hub implements the bounded-fanout broadcaster at the center of the
// quote stream: a per-client registry with a fixed-capacity outbound queue
// per client, and a broadcast operation that never blocks on a slow or dead
// consumer.
package hub

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hydrafeed/quotestream/internal/wire"
)

// DefaultQueueCapacity is the default bound on each client's outbound queue.
const DefaultQueueCapacity = 256

// ClientID is a process-unique, monotonically increasing identifier assigned
// on each successful STREAM registration. Never reused within a process
// lifetime.
type ClientID uint64

// ErrClientAlreadyExists is returned by AddClient when the ClientID is
// already registered.
var ErrClientAlreadyExists = errors.New("hub: client already exists")

// IDAllocator hands out ClientIDs via atomic fetch-and-add.
type IDAllocator struct {
	next atomic.Uint64
}

// Next returns the next ClientID, starting at 1.
func (a *IDAllocator) Next() ClientID {
	return ClientID(a.next.Add(1))
}

// Queue is a client's bounded outbound queue of shared-ownership quote
// references. The Hub is the sole sender; the owning Session is the sole
// receiver.
type Queue struct {
	ch     chan *wire.Quote
	mu     sync.Mutex
	closed bool
}

func newQueue(capacity int) *Queue {
	return &Queue{ch: make(chan *wire.Quote, capacity)}
}

// Close marks the queue disconnected. Idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

// TryRecv performs a non-blocking receive. ok is true when a quote was
// returned; disconnected is true when the queue has been closed and
// drained.
func (q *Queue) TryRecv() (quote *wire.Quote, ok bool, disconnected bool) {
	select {
	case v, open := <-q.ch:
		if !open {
			return nil, false, true
		}
		return v, true, false
	default:
		return nil, false, false
	}
}

// RecvTimeout blocks up to d for one quote.
func (q *Queue) RecvTimeout(d time.Duration) (quote *wire.Quote, ok bool, disconnected bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case v, open := <-q.ch:
		if !open {
			return nil, false, true
		}
		return v, true, false
	case <-timer.C:
		return nil, false, false
	}
}

// trySend attempts a non-blocking send, recovering from the panic a closed
// channel raises on send and reporting it as dead rather than crashing the
// broadcaster.
func (q *Queue) trySend(v *wire.Quote) (sent bool, dead bool) {
	defer func() {
		if r := recover(); r != nil {
			sent, dead = false, true
		}
	}()
	select {
	case q.ch <- v:
		return true, false
	default:
		return false, false
	}
}

type registration struct {
	cid   ClientID
	queue *Queue
}

// Hub is the registry of subscribed clients and the broadcaster of quotes
// to all of them.
type Hub struct {
	mu       sync.Mutex
	clients  map[ClientID]*Queue
	capacity int

	stats Stats
}

// New creates a Hub whose per-client queues have the given capacity. A
// capacity of 0 uses DefaultQueueCapacity.
func New(capacity int) *Hub {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Hub{
		clients:  make(map[ClientID]*Queue),
		capacity: capacity,
	}
}

// AddClient registers cid with a fresh bounded queue and returns it. Fails
// with ErrClientAlreadyExists if cid is already present.
func (h *Hub) AddClient(cid ClientID) (*Queue, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.clients[cid]; exists {
		return nil, ErrClientAlreadyExists
	}
	q := newQueue(h.capacity)
	h.clients[cid] = q
	return q, nil
}

// RemoveClient removes cid if present, closing its queue. Returns true iff
// the client was present. Idempotent: a second call returns false.
func (h *Hub) RemoveClient(cid ClientID) bool {
	h.mu.Lock()
	q, exists := h.clients[cid]
	if exists {
		delete(h.clients, cid)
	}
	h.mu.Unlock()

	if !exists {
		return false
	}
	q.Close()
	return true
}

// ActiveClients returns the number of currently registered clients.
func (h *Hub) ActiveClients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// BroadcastResult reports the outcome of one Broadcast call.
type BroadcastResult struct {
	Sent        int
	DroppedFull int
	DroppedDead int
}

// Broadcast delivers q by reference to every registered client's queue
// using a non-blocking try-send. It never blocks: a full queue increments
// DroppedFull, a disconnected receiver increments DroppedDead and is
// evicted. The registry lock is held only to take a snapshot of (cid,
// queue) pairs and, separately, to remove dead clients, never while
// sending, so a slow eviction cannot stall other broadcasts or new
// registrations.
func (h *Hub) Broadcast(q *wire.Quote) BroadcastResult {
	h.mu.Lock()
	snapshot := make([]registration, 0, len(h.clients))
	for cid, queue := range h.clients {
		snapshot = append(snapshot, registration{cid: cid, queue: queue})
	}
	h.mu.Unlock()

	var result BroadcastResult
	dead := make([]ClientID, 0)

	for _, reg := range snapshot {
		sent, isDead := reg.queue.trySend(q)
		switch {
		case sent:
			result.Sent++
		case isDead:
			result.DroppedDead++
			dead = append(dead, reg.cid)
		default:
			result.DroppedFull++
		}
	}

	if len(dead) > 0 {
		h.mu.Lock()
		for _, cid := range dead {
			delete(h.clients, cid)
		}
		h.mu.Unlock()
	}

	h.stats.sent.Add(uint64(result.Sent))
	h.stats.droppedFull.Add(uint64(result.DroppedFull))
	h.stats.droppedDead.Add(uint64(result.DroppedDead))

	return result
}

// Stats holds atomic broadcast counters, safe for concurrent use.
type Stats struct {
	sent        atomic.Uint64
	droppedFull atomic.Uint64
	droppedDead atomic.Uint64
}

// StatsSnapshot is a point-in-time read of the broadcast counters.
type StatsSnapshot struct {
	Sent        uint64
	DroppedFull uint64
	DroppedDead uint64
}

// Snapshot returns the current lifetime broadcast counters.
func (h *Hub) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Sent:        h.stats.sent.Load(),
		DroppedFull: h.stats.droppedFull.Load(),
		DroppedDead: h.stats.droppedDead.Load(),
	}
}
