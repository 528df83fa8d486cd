package store

import (
	"encoding/binary"
	"hash/crc32"
)

// Persisted image layout, all integers little-endian:
//
//	[0..3]    magic 'SLK1'
//	[4..5]    version
//	[6..7]    reserved
//	[8..]     10 PIN slots   (valid u8, len u8, digits [8]byte)
//	[..]      10 RFID slots  (valid u8, len u8, uid [10]byte)
//	[..]      master PIN slot
//	[..+3]    crc32 over the whole image with this field zeroed
//
// The layout is explicit field-wise serialization so the on-disk format does
// not depend on in-memory struct layout.
const (
	Magic   uint32 = 0x534C4B31
	Version uint16 = 1

	NumSlots  = 10
	MaxPinLen = 8
	MaxUIDLen = 10

	pinSlotSize  = 2 + MaxPinLen
	rfidSlotSize = 2 + MaxUIDLen

	pinsOff   = 8
	rfidsOff  = pinsOff + NumSlots*pinSlotSize
	masterOff = rfidsOff + NumSlots*rfidSlotSize
	crcOff    = masterOff + pinSlotSize

	// ImageSize is the exact persisted image length.
	ImageSize = crcOff + 4
)

type pinSlot struct {
	valid  bool
	digits string
}

type rfidSlot struct {
	valid bool
	uid   []byte
}

type image struct {
	pins   [NumSlots]pinSlot
	rfids  [NumSlots]rfidSlot
	master pinSlot
}

func marshalPinSlot(dst []byte, s pinSlot) {
	for i := range dst[:pinSlotSize] {
		dst[i] = 0
	}
	if s.valid {
		dst[0] = 1
		dst[1] = uint8(len(s.digits))
		copy(dst[2:2+MaxPinLen], s.digits)
	}
}

func unmarshalPinSlot(src []byte) pinSlot {
	if src[0] == 0 {
		return pinSlot{}
	}
	n := int(src[1])
	if n < 1 || n > MaxPinLen {
		return pinSlot{}
	}
	return pinSlot{valid: true, digits: string(src[2 : 2+n])}
}

func marshalRfidSlot(dst []byte, s rfidSlot) {
	for i := range dst[:rfidSlotSize] {
		dst[i] = 0
	}
	if s.valid {
		dst[0] = 1
		dst[1] = uint8(len(s.uid))
		copy(dst[2:2+MaxUIDLen], s.uid)
	}
}

func unmarshalRfidSlot(src []byte) rfidSlot {
	if src[0] == 0 {
		return rfidSlot{}
	}
	n := int(src[1])
	if n < 1 || n > MaxUIDLen {
		return rfidSlot{}
	}
	uid := make([]byte, n)
	copy(uid, src[2:2+n])
	return rfidSlot{valid: true, uid: uid}
}

// marshalImage serializes img with the crc field filled in.
func marshalImage(img *image) []byte {
	buf := make([]byte, ImageSize)
	binary.LittleEndian.PutUint32(buf[0:4], Magic)
	binary.LittleEndian.PutUint16(buf[4:6], Version)
	// reserved bytes stay zero
	for i := 0; i < NumSlots; i++ {
		marshalPinSlot(buf[pinsOff+i*pinSlotSize:], img.pins[i])
		marshalRfidSlot(buf[rfidsOff+i*rfidSlotSize:], img.rfids[i])
	}
	marshalPinSlot(buf[masterOff:], img.master)

	// CRC is computed with its own field zeroed.
	crc := crc32.ChecksumIEEE(buf)
	binary.LittleEndian.PutUint32(buf[crcOff:], crc)
	return buf
}

// unmarshalImage validates magic, version and crc, then decodes the slots.
func unmarshalImage(buf []byte) (*image, bool) {
	if len(buf) != ImageSize {
		return nil, false
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != Magic {
		return nil, false
	}
	if binary.LittleEndian.Uint16(buf[4:6]) != Version {
		return nil, false
	}

	stored := binary.LittleEndian.Uint32(buf[crcOff:])
	scratch := make([]byte, ImageSize)
	copy(scratch, buf)
	binary.LittleEndian.PutUint32(scratch[crcOff:], 0)
	if crc32.ChecksumIEEE(scratch) != stored {
		return nil, false
	}

	img := &image{}
	for i := 0; i < NumSlots; i++ {
		img.pins[i] = unmarshalPinSlot(buf[pinsOff+i*pinSlotSize:])
		img.rfids[i] = unmarshalRfidSlot(buf[rfidsOff+i*rfidSlotSize:])
	}
	img.master = unmarshalPinSlot(buf[masterOff:])
	return img, true
}
