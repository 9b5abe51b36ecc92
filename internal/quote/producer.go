package quote

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/hydrafeed/quotestream/internal/hub"
	"github.com/hydrafeed/quotestream/internal/wire"
)

// Interval is the default period between produced quote batches.
const Interval = 500 * time.Millisecond

// stepTick bounds each sleep inside the producer loop so shutdown is
// observed with bounded latency even while waiting out a longer Interval.
const stepTick = 50 * time.Millisecond

// maxStepPct is the maximum relative price move per tick (0.2%).
const maxStepPct = 0.002

// minPriceHundredths floors a symbol's price so the random walk cannot
// drive it to zero or negative.
const minPriceHundredths = 1

// symbolState is the producer's per-ticker mutable state.
type symbolState struct {
	price  int64
	volMin uint32
	volMax uint32
}

// Producer periodically evolves every tracked ticker by a bounded relative
// random walk and hands the resulting batch to a Broadcaster.
type Producer struct {
	mu      sync.Mutex
	state   map[string]*symbolState
	rng     *rand.Rand
	rngMu   sync.Mutex
	broadcaster Broadcaster
}

// Broadcaster is the subset of *hub.Hub the producer depends on.
type Broadcaster interface {
	Broadcast(q *wire.Quote) hub.BroadcastResult
}

// New creates a Producer that gives every ticker in tickers a seed price
// (hundredths, spread by position in the list) and a default volume range.
func New(tickers []string, broadcaster Broadcaster) *Producer {
	p := &Producer{
		state:       make(map[string]*symbolState, len(tickers)),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		broadcaster: broadcaster,
	}
	for i, t := range tickers {
		// Deterministic-ish spread of seed prices so distinct symbols don't
		// all start identical; purely cosmetic, not load-bearing.
		seed := int64(10000 + (i%50)*137)
		p.state[t] = &symbolState{price: seed * 100, volMin: 100, volMax: 100_000}
	}
	return p
}

// SetTickers replaces the tracked ticker universe, preserving existing
// per-symbol state where the ticker is retained and seeding new tickers.
// Used by cluster sync to apply a newer ticker-list export.
func (p *Producer) SetTickers(tickers []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := make(map[string]*symbolState, len(tickers))
	for i, t := range tickers {
		if existing, ok := p.state[t]; ok {
			next[t] = existing
			continue
		}
		seed := int64(10000 + (i%50)*137)
		next[t] = &symbolState{price: seed * 100, volMin: 100, volMax: 100_000}
	}
	p.state = next
}

// Tickers returns the current tracked ticker universe, sorted.
func (p *Producer) Tickers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.state))
	for t := range p.state {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Snapshot is a point-in-time read of one tracked ticker's last price, used
// by the management API's /stats endpoint.
type Snapshot struct {
	Ticker string
	Price  int64
}

// Snapshot returns the current last-published price for every ticker.
func (p *Producer) Snapshot() []Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Snapshot, 0, len(p.state))
	for t, s := range p.state {
		out = append(out, Snapshot{Ticker: t, Price: s.price})
	}
	return out
}

// Run produces one batch every Interval until ctx is cancelled.
func (p *Producer) Run(ctx context.Context) {
	elapsed := time.Duration(0)
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(stepTick):
			elapsed += stepTick
			if elapsed < Interval {
				continue
			}
			elapsed = 0
			p.tick()
		}
	}
}

func (p *Producer) tick() {
	now := uint64(time.Now().UnixMilli())

	p.mu.Lock()
	batch := make([]wire.Quote, 0, len(p.state))
	for ticker, s := range p.state {
		s.price = p.walk(s.price)
		vol := p.volume(s.volMin, s.volMax)
		batch = append(batch, wire.Quote{
			Ticker:      ticker,
			Price:       s.price,
			Volume:      vol,
			TimestampMs: now,
		})
	}
	p.mu.Unlock()

	for i := range batch {
		q := batch[i]
		p.broadcaster.Broadcast(&q)
	}
}

// walk evolves price by at most ±maxStepPct, floored at minPriceHundredths.
func (p *Producer) walk(price int64) int64 {
	p.rngMu.Lock()
	step := (p.rng.Float64()*2 - 1) * maxStepPct
	p.rngMu.Unlock()

	delta := int64(float64(price) * step)
	next := price + delta
	if next < minPriceHundredths {
		next = minPriceHundredths
	}
	return next
}

func (p *Producer) volume(min, max uint32) uint32 {
	if max <= min {
		return min
	}
	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	return min + uint32(p.rng.Int63n(int64(max-min)))
}
