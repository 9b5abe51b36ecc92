// Package wire implements the versioned UDP packet codec shared by the
// quotestream server and client: a one-byte version prefix followed by a
// tag-discriminated payload carrying either a keep-alive ping or a quote.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Version is the only wire format this package understands. A packet
// carrying any other version byte is rejected rather than misparsed, so the
// format can evolve without breaking older receivers.
const Version byte = 1

const (
	tagPing  byte = 0
	tagQuote byte = 1
)

// Quote is an immutable market-data record. Price is in hundredths of the
// quote currency (e.g. 1234500 displays as 12345.00).
type Quote struct {
	Ticker      string
	Price       int64
	Volume      uint32
	TimestampMs uint64
}

// Packet is a tagged UDP payload: either a keep-alive Ping or a Quote.
// Exactly one of IsPing/Quote is meaningful at a time.
type Packet struct {
	IsPing bool
	Quote  Quote
}

// PingPacket builds a Packet carrying a keep-alive ping.
func PingPacket() Packet {
	return Packet{IsPing: true}
}

// QuotePacket builds a Packet carrying a quote.
func QuotePacket(q Quote) Packet {
	return Packet{Quote: q}
}

// ErrPacketTooShort is returned by Decode on an empty buffer.
var ErrPacketTooShort = errors.New("wire: packet too short")

// UnsupportedVersionError is returned by Decode when the version byte is not
// Version.
type UnsupportedVersionError struct {
	Got byte
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("wire: unsupported version byte %d", e.Got)
}

// ErrMalformedPayload is returned by Decode when the version byte is valid
// but the payload cannot be parsed as a known tagged variant.
var ErrMalformedPayload = errors.New("wire: malformed payload")

// maxTickerLen bounds the ticker field so a corrupt length prefix cannot
// drive an unbounded allocation.
const maxTickerLen = 255

// Encode serializes a Packet as [version:u8][tag:u8][payload...]. Ping
// encodes to the two-byte form [Version, tagPing]; Quote additionally
// carries ticker length + bytes, an 8-byte signed price, a 4-byte volume,
// and an 8-byte timestamp, all big-endian.
func Encode(p Packet) ([]byte, error) {
	if p.IsPing {
		return []byte{Version, tagPing}, nil
	}

	ticker := p.Quote.Ticker
	if len(ticker) > maxTickerLen {
		return nil, fmt.Errorf("wire: ticker %q exceeds max length %d", ticker, maxTickerLen)
	}

	buf := make([]byte, 2+1+len(ticker)+8+4+8)
	buf[0] = Version
	buf[1] = tagQuote
	off := 2
	buf[off] = byte(len(ticker))
	off++
	copy(buf[off:], ticker)
	off += len(ticker)
	binary.BigEndian.PutUint64(buf[off:], uint64(p.Quote.Price))
	off += 8
	binary.BigEndian.PutUint32(buf[off:], p.Quote.Volume)
	off += 4
	binary.BigEndian.PutUint64(buf[off:], p.Quote.TimestampMs)

	return buf, nil
}

// Decode parses a datagram produced by Encode.
func Decode(data []byte) (Packet, error) {
	if len(data) == 0 {
		return Packet{}, ErrPacketTooShort
	}
	version := data[0]
	if version != Version {
		return Packet{}, &UnsupportedVersionError{Got: version}
	}
	if len(data) < 2 {
		return Packet{}, ErrPacketTooShort
	}

	body := data[1:]
	switch body[0] {
	case tagPing:
		if len(body) != 1 {
			return Packet{}, ErrMalformedPayload
		}
		return PingPacket(), nil
	case tagQuote:
		return decodeQuote(body[1:])
	default:
		return Packet{}, ErrMalformedPayload
	}
}

func decodeQuote(body []byte) (Packet, error) {
	if len(body) < 1 {
		return Packet{}, ErrMalformedPayload
	}
	tickerLen := int(body[0])
	off := 1
	if len(body) < off+tickerLen+8+4+8 {
		return Packet{}, ErrMalformedPayload
	}
	ticker := string(body[off : off+tickerLen])
	off += tickerLen

	price := int64(binary.BigEndian.Uint64(body[off:]))
	off += 8
	volume := binary.BigEndian.Uint32(body[off:])
	off += 4
	ts := binary.BigEndian.Uint64(body[off:])

	return QuotePacket(Quote{
		Ticker:      ticker,
		Price:       price,
		Volume:      volume,
		TimestampMs: ts,
	}), nil
}
