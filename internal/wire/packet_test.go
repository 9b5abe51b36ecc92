package wire

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeQuoteRoundTrip(t *testing.T) {
	q := Quote{Ticker: "AAPL", Price: 1234500, Volume: 1500, TimestampMs: 1700000000000}
	encoded, err := Encode(QuotePacket(q))
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.False(t, decoded.IsPing)
	assert.Equal(t, q, decoded.Quote)
}

func TestEncodeDecodePingRoundTrip(t *testing.T) {
	encoded, err := Encode(PingPacket())
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.True(t, decoded.IsPing)
}

func TestPingHasDistinctStableEncoding(t *testing.T) {
	ping, err := Encode(PingPacket())
	require.NoError(t, err)
	quote, err := Encode(QuotePacket(Quote{Ticker: "X"}))
	require.NoError(t, err)

	assert.NotEqual(t, ping, quote)
	assert.Len(t, ping, 2)
}

func TestDecodeEmptyBufferTooShort(t *testing.T) {
	_, err := Decode(nil)
	assert.ErrorIs(t, err, ErrPacketTooShort)
}

func TestDecodeFlippedVersionByte(t *testing.T) {
	encoded, err := Encode(QuotePacket(Quote{Ticker: "AAPL"}))
	require.NoError(t, err)

	encoded[0] = 99
	_, err = Decode(encoded)

	var verErr *UnsupportedVersionError
	require.True(t, errors.As(err, &verErr))
	assert.Equal(t, byte(99), verErr.Got)
}

func TestDecodeMalformedPayload(t *testing.T) {
	_, err := Decode([]byte{Version, tagQuote, 5, 'A', 'B'}) // declares 5-byte ticker, only 2 present
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestDecodeUnknownTag(t *testing.T) {
	_, err := Decode([]byte{Version, 0xFF})
	assert.ErrorIs(t, err, ErrMalformedPayload)
}
