package control

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommandRoundTrip(t *testing.T) {
	line := "  STREAM   udp://127.0.0.1:1   aapl,  tsla , ,goog  "
	cmd, err := Parse(line)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:1", cmd.Target.String())
	assert.Equal(t, []string{"AAPL", "GOOG", "TSLA"}, cmd.Tickers)
}

func TestParseFormatIsIdentityOnCanonicalInput(t *testing.T) {
	cmd, err := Parse("STREAM udp://127.0.0.1:1 AAPL,GOOG,TSLA")
	require.NoError(t, err)

	formatted := Format(cmd)
	reparsed, err := Parse(formatted)
	require.NoError(t, err)

	assert.Equal(t, cmd.Target.String(), reparsed.Target.String())
	assert.Equal(t, cmd.Tickers, reparsed.Tickers)
}

func TestParseRejections(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		reason string
	}{
		{"empty", "", "EmptyCommand"},
		{"missing target", "STREAM", "MissingUdpTarget"},
		{"missing tickers", "STREAM udp://127.0.0.1:1", "MissingTickers"},
		{"bad scheme", "STREAM tcp://127.0.0.1:1 AAPL", "BadUdpScheme"},
		{"invalid address", "STREAM udp://127.0.0.1:notaport AAPL", "InvalidUdpAddress"},
		{"empty tickers", "STREAM udp://127.0.0.1:1 ,", "EmptyTickers"},
		{"unknown verb", "PING udp://127.0.0.1:1 AAPL", "UnknownCommand(PING)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.line)
			require.Error(t, err)
			assert.Equal(t, tt.reason, err.Error())
		})
	}
}

func TestNormalizeTickers(t *testing.T) {
	got := NormalizeTickers([]string{" aapl", "TSLA ", "", "aapl", "goog"})
	assert.Equal(t, []string{"AAPL", "GOOG", "TSLA"}, got)
}

func TestNormalizeTickersAlwaysSortedUpperNoDupes(t *testing.T) {
	inputs := [][]string{
		{"b", "a", "a", "c"},
		{"ZZZ", "", "aaa"},
		{},
	}
	for _, in := range inputs {
		got := NormalizeTickers(in)
		seen := map[string]bool{}
		for i, tk := range got {
			assert.Equal(t, tk, strings.ToUpper(tk))
			assert.False(t, seen[tk])
			seen[tk] = true
			if i > 0 {
				assert.True(t, got[i-1] < got[i])
			}
		}
	}
}
