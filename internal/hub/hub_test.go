package hub

import (
	"testing"
	"time"

	"github.com/hydrafeed/quotestream/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddClientRejectsDuplicate(t *testing.T) {
	h := New(4)
	_, err := h.AddClient(1)
	require.NoError(t, err)

	_, err = h.AddClient(1)
	assert.ErrorIs(t, err, ErrClientAlreadyExists)
}

func TestRemoveClientIdempotent(t *testing.T) {
	h := New(4)
	_, err := h.AddClient(1)
	require.NoError(t, err)

	assert.True(t, h.RemoveClient(1))
	assert.False(t, h.RemoveClient(1))
}

// S4, Hub slow consumer.
func TestBroadcastSlowConsumerDropsFullNotDead(t *testing.T) {
	h := New(1)
	_, err := h.AddClient(1)
	require.NoError(t, err)

	q1 := &wire.Quote{Ticker: "AAPL"}
	q2 := &wire.Quote{Ticker: "AAPL"}

	res := h.Broadcast(q1)
	assert.Equal(t, BroadcastResult{Sent: 1, DroppedFull: 0, DroppedDead: 0}, res)

	res = h.Broadcast(q2)
	assert.Equal(t, BroadcastResult{Sent: 0, DroppedFull: 1, DroppedDead: 0}, res)

	assert.Equal(t, 1, h.ActiveClients())
}

// S5, Hub dead consumer.
func TestBroadcastDeadConsumerEvictsOnce(t *testing.T) {
	h := New(4)
	queue, err := h.AddClient(1)
	require.NoError(t, err)
	queue.Close()

	res := h.Broadcast(&wire.Quote{Ticker: "AAPL"})
	assert.Equal(t, BroadcastResult{Sent: 0, DroppedFull: 0, DroppedDead: 1}, res)

	res = h.Broadcast(&wire.Quote{Ticker: "AAPL"})
	assert.Equal(t, BroadcastResult{Sent: 0, DroppedFull: 0, DroppedDead: 0}, res)

	assert.False(t, h.RemoveClient(1))
}

func TestBroadcastNeverBlocksOnNonReadingClient(t *testing.T) {
	h := New(1)
	_, err := h.AddClient(1)
	require.NoError(t, err)
	_, err = h.AddClient(2)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.Broadcast(&wire.Quote{Ticker: "AAPL"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a non-reading client")
	}
}
