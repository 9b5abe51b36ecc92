package quote

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hydrafeed/quotestream/internal/hub"
	"github.com/hydrafeed/quotestream/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLinesNormalizes(t *testing.T) {
	got := ParseLines([]string{
		" aapl ",
		"# full line comment",
		"tsla # inline comment",
		"",
		"AAPL",
	})
	assert.Equal(t, []string{"AAPL", "TSLA"}, got)
}

func TestParseTextAutoDetectsForm(t *testing.T) {
	assert.Equal(t, []string{"AAPL", "GOOG"}, ParseText("aapl,goog"))
	assert.Equal(t, []string{"AAPL", "GOOG"}, ParseText("aapl\ngoog"))
	assert.Equal(t, []string{"AAPL"}, ParseText("aapl # comment"))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tickers.txt")
	require.NoError(t, os.WriteFile(path, []byte("aapl\n# comment\ntsla\n\ngoog #inline\n"), 0644))

	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "GOOG", "TSLA"}, got)
}

type recordingBroadcaster struct {
	mu      sync.Mutex
	quotes  []wire.Quote
}

func (r *recordingBroadcaster) Broadcast(q *wire.Quote) hub.BroadcastResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quotes = append(r.quotes, *q)
	return hub.BroadcastResult{Sent: 1}
}

func TestProducerTickPublishesEveryTicker(t *testing.T) {
	rec := &recordingBroadcaster{}
	p := New([]string{"AAPL", "GOOG"}, rec)

	p.tick()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.quotes, 2)
	seen := map[string]bool{}
	for _, q := range rec.quotes {
		seen[q.Ticker] = true
		assert.Greater(t, q.Price, int64(0))
	}
	assert.True(t, seen["AAPL"])
	assert.True(t, seen["GOOG"])
}

func TestProducerWalkNeverGoesNonPositive(t *testing.T) {
	rec := &recordingBroadcaster{}
	p := New([]string{"AAPL"}, rec)
	p.state["AAPL"].price = 1

	for i := 0; i < 1000; i++ {
		p.tick()
	}

	assert.GreaterOrEqual(t, p.state["AAPL"].price, int64(minPriceHundredths))
}

func TestProducerSetTickersPreservesExistingState(t *testing.T) {
	rec := &recordingBroadcaster{}
	p := New([]string{"AAPL"}, rec)
	p.state["AAPL"].price = 99999

	p.SetTickers([]string{"AAPL", "MSFT"})

	assert.Equal(t, int64(99999), p.state["AAPL"].price)
	assert.Contains(t, p.Tickers(), "MSFT")
}
