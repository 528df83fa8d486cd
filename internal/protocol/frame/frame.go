// Package frame implements the binary controller-link framing: a two-byte
// preamble, version, message type, little-endian payload length, payload and
// a trailing CRC-16/CCITT-FALSE. The parser tolerates arbitrary garbage
// between frames and resynchronizes on the preamble.
package frame

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/sigurn/crc16"
)

const (
	PreambleA byte = 0xA5
	PreambleB byte = 0x5A

	Version uint8 = 1

	// HeaderLen covers preamble, version, msgType and the length field.
	HeaderLen  = 6
	TrailerLen = 2

	MaxPayload = 384
	BufferSize = 512
)

var ErrPayloadTooLarge = errors.New("frame: payload too large")

var crcTable = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

// Frame is one validated link message.
type Frame struct {
	Version uint8
	MsgType uint8
	Payload []byte
}

// Limits constrains what the parser will hand to its consumer.
type Limits struct {
	MaxPayloadBytes int
}

func DefaultLimits() Limits {
	return Limits{MaxPayloadBytes: MaxPayload}
}

// Parser consumes a byte stream incrementally and extracts validated frames.
// It keeps at most BufferSize bytes; when the buffer fills without a frame
// boundary it is dropped wholesale rather than grown.
type Parser struct {
	limits Limits
	buf    [BufferSize]byte
	n      int
}

func NewParser(limits Limits) *Parser {
	if limits.MaxPayloadBytes <= 0 || limits.MaxPayloadBytes > MaxPayload {
		limits.MaxPayloadBytes = MaxPayload
	}
	return &Parser{limits: limits}
}

// Feed reads bytes from r until a complete valid frame is extracted or the
// reader is exhausted. At most one frame is returned per call; buffered
// backlog from earlier reads is drained first, so callers loop on Feed to
// pick up queued frames.
func (p *Parser) Feed(r io.ByteReader) (Frame, bool) {
	if f, ok := p.extract(); ok {
		return f, true
	}
	for {
		c, err := r.ReadByte()
		if err != nil {
			return Frame{}, false
		}
		if p.n == len(p.buf) {
			// Full buffer with no frame boundary: prefer loss over growth.
			p.n = 0
		}
		p.buf[p.n] = c
		p.n++
		if f, ok := p.extract(); ok {
			return f, true
		}
	}
}

// Reset discards all buffered bytes.
func (p *Parser) Reset() {
	p.n = 0
}

// Buffered returns the number of bytes awaiting a frame boundary.
func (p *Parser) Buffered() int {
	return p.n
}

func (p *Parser) extract() (Frame, bool) {
	for {
		if p.n < HeaderLen {
			return Frame{}, false
		}

		if p.buf[0] != PreambleA || p.buf[1] != PreambleB {
			// Scan forward for the next preamble. Keep the final byte if
			// none is found so a preamble split across reads still aligns.
			drop := p.n - 1
			for i := 1; i+1 < p.n; i++ {
				if p.buf[i] == PreambleA && p.buf[i+1] == PreambleB {
					drop = i
					break
				}
			}
			p.discard(drop)
			continue
		}

		plen := int(binary.LittleEndian.Uint16(p.buf[4:6]))
		total := HeaderLen + plen + TrailerLen
		if p.n < total {
			if total > len(p.buf) {
				// Can never fit; treat the preamble as noise.
				p.discard(2)
				continue
			}
			return Frame{}, false
		}

		rx := binary.LittleEndian.Uint16(p.buf[total-TrailerLen : total])
		calc := crc16.Checksum(p.buf[2:HeaderLen+plen], crcTable)
		if rx != calc {
			// False preamble: drop exactly two bytes so the scan always
			// makes forward progress.
			p.discard(2)
			continue
		}

		if plen > p.limits.MaxPayloadBytes {
			// Valid but oversized for the consumer. Skip it whole.
			p.discard(total)
			continue
		}

		f := Frame{
			Version: p.buf[2],
			MsgType: p.buf[3],
			Payload: append([]byte(nil), p.buf[HeaderLen:HeaderLen+plen]...),
		}
		p.discard(total)
		return f, true
	}
}

func (p *Parser) discard(n int) {
	if n >= p.n {
		p.n = 0
		return
	}
	copy(p.buf[:], p.buf[n:p.n])
	p.n -= n
}

// Encode returns the full wire bytes for msgType and payload.
func Encode(msgType uint8, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, ErrPayloadTooLarge
	}
	buf := make([]byte, 0, HeaderLen+len(payload)+TrailerLen)
	buf = append(buf, PreambleA, PreambleB, Version, msgType)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(payload)))
	buf = append(buf, payload...)
	crc := crc16.Checksum(buf[2:], crcTable)
	return binary.LittleEndian.AppendUint16(buf, crc), nil
}

// WriteFrame emits one frame for msgType and payload. Nothing is written when
// the payload exceeds MaxPayload.
func WriteFrame(w io.Writer, msgType uint8, payload []byte) error {
	buf, err := Encode(msgType, payload)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}
