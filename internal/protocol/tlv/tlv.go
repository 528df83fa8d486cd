// Package tlv implements the tag-length-value payload codec used inside link
// frames. Records are a one-byte tag, a one-byte length and the raw value,
// concatenated without any index; readers scan linearly and the first match
// wins. A record whose length runs past the buffer terminates the scan.
package tlv

import "encoding/binary"

const (
	headerLen = 2

	// MaxStrLen is the truncation bound applied to string values.
	MaxStrLen = 200
)

// Writer appends records into a fixed-capacity payload buffer. An append that
// would exceed the capacity fails whole; the buffer is never left with a
// partial record.
type Writer struct {
	buf []byte
}

// NewWriter creates a writer bounded to capacity bytes.
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

// Bytes returns the encoded payload built so far.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the current payload size.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Reset empties the writer keeping its capacity.
func (w *Writer) Reset() {
	w.buf = w.buf[:0]
}

func (w *Writer) fits(valueLen int) bool {
	return len(w.buf)+headerLen+valueLen <= cap(w.buf)
}

// AddU8 appends a single-byte value record.
func (w *Writer) AddU8(tag uint8, v uint8) bool {
	if !w.fits(1) {
		return false
	}
	w.buf = append(w.buf, tag, 1, v)
	return true
}

// AddU64 appends an eight-byte little-endian value record.
func (w *Writer) AddU64(tag uint8, v uint64) bool {
	if !w.fits(8) {
		return false
	}
	w.buf = append(w.buf, tag, 8)
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
	return true
}

// AddBytes appends a raw byte value record. Values longer than 255 bytes do
// not fit the one-byte length and are rejected.
func (w *Writer) AddBytes(tag uint8, v []byte) bool {
	if len(v) > 0xFF || !w.fits(len(v)) {
		return false
	}
	w.buf = append(w.buf, tag, uint8(len(v)))
	w.buf = append(w.buf, v...)
	return true
}

// AddStr appends a string record, truncating the value to MaxStrLen bytes
// before length-prefixing.
func (w *Writer) AddStr(tag uint8, s string) bool {
	if len(s) > MaxStrLen {
		s = s[:MaxStrLen]
	}
	if !w.fits(len(s)) {
		return false
	}
	w.buf = append(w.buf, tag, uint8(len(s)))
	w.buf = append(w.buf, s...)
	return true
}

// GetU8 scans payload for the first record with tag and length 1.
func GetU8(payload []byte, tag uint8) (uint8, bool) {
	v, ok := find(payload, tag, 1)
	if !ok {
		return 0, false
	}
	return v[0], true
}

// GetU64 scans payload for the first record with tag and length 8.
func GetU64(payload []byte, tag uint8) (uint64, bool) {
	v, ok := find(payload, tag, 8)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint64(v), true
}

// GetStr scans payload for the first record with tag, accepting any length.
func GetStr(payload []byte, tag uint8) (string, bool) {
	v, ok := find(payload, tag, -1)
	if !ok {
		return "", false
	}
	return string(v), true
}

// GetBytes scans payload for the first record with tag, accepting any length.
func GetBytes(payload []byte, tag uint8) ([]byte, bool) {
	v, ok := find(payload, tag, -1)
	if !ok {
		return nil, false
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true
}

func find(payload []byte, tag uint8, wantLen int) ([]byte, bool) {
	i := 0
	for i+headerLen <= len(payload) {
		t := payload[i]
		l := int(payload[i+1])
		i += headerLen
		if i+l > len(payload) {
			// Malformed record: stop scanning, report not found.
			return nil, false
		}
		if t == tag && (wantLen < 0 || l == wantLen) {
			return payload[i : i+l], true
		}
		i += l
	}
	return nil, false
}
