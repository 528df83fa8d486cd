// Package store owns the persisted credential table: ten PIN slots, ten RFID
// slots and an optional master PIN, kept behind a magic/version/crc32
// envelope. A corrupt image is never trusted: load resets to an all-invalid
// default, re-persists it and reports the failure.
package store

import (
	"bytes"
	"errors"
	"fmt"
)

var (
	ErrBadSlot = errors.New("store: slot out of range")
	ErrBadPin  = errors.New("store: pin must be 1..8 decimal digits")
	ErrBadUID  = errors.New("store: uid must be 1..10 bytes")
	ErrCorrupt = errors.New("store: corrupt image")
	ErrPersist = errors.New("store: persist failed")
)

// Credentials is the credential table bound to one Backend. It is not safe
// for concurrent use; the control loop is its only caller.
type Credentials struct {
	backend Backend
	img     image
}

func New(backend Backend) *Credentials {
	return &Credentials{backend: backend}
}

// Load reads and verifies the persisted image. On any mismatch the in-memory
// table is reset to defaults, the default image is persisted, and the
// corruption is reported; the store never holds a partially-trusted image.
func (c *Credentials) Load() error {
	raw, err := c.backend.Load()
	if err != nil {
		c.reset()
		c.persist()
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	img, ok := unmarshalImage(raw)
	if !ok {
		c.reset()
		c.persist()
		return ErrCorrupt
	}
	c.img = *img
	return nil
}

// Save persists the current table.
func (c *Credentials) Save() error {
	return c.persist()
}

func (c *Credentials) persist() error {
	if err := c.backend.Store(marshalImage(&c.img)); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

func (c *Credentials) reset() {
	c.img = image{}
}

func validSlot(slot int) bool {
	return slot >= 0 && slot < NumSlots
}

func normalizePin(digits string) bool {
	if len(digits) < 1 || len(digits) > MaxPinLen {
		return false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return false
		}
	}
	return true
}

// SetPin stores digits in slot and persists.
func (c *Credentials) SetPin(slot int, digits string) error {
	if !validSlot(slot) {
		return ErrBadSlot
	}
	if !normalizePin(digits) {
		return ErrBadPin
	}
	c.img.pins[slot] = pinSlot{valid: true, digits: digits}
	return c.persist()
}

// DeletePin clears slot and persists.
func (c *Credentials) DeletePin(slot int) error {
	if !validSlot(slot) {
		return ErrBadSlot
	}
	c.img.pins[slot] = pinSlot{}
	return c.persist()
}

// SetRfid stores uid in slot and persists.
func (c *Credentials) SetRfid(slot int, uid []byte) error {
	if !validSlot(slot) {
		return ErrBadSlot
	}
	if len(uid) < 1 || len(uid) > MaxUIDLen {
		return ErrBadUID
	}
	stored := make([]byte, len(uid))
	copy(stored, uid)
	c.img.rfids[slot] = rfidSlot{valid: true, uid: stored}
	return c.persist()
}

// DeleteRfid clears slot and persists.
func (c *Credentials) DeleteRfid(slot int) error {
	if !validSlot(slot) {
		return ErrBadSlot
	}
	c.img.rfids[slot] = rfidSlot{}
	return c.persist()
}

// SetMaster stores the master PIN; an empty value clears it. Persists either
// way.
func (c *Credentials) SetMaster(digits string) error {
	if digits == "" {
		c.img.master = pinSlot{}
		return c.persist()
	}
	if !normalizePin(digits) {
		return ErrBadPin
	}
	c.img.master = pinSlot{valid: true, digits: digits}
	return c.persist()
}

// GetRfid returns the UID stored in slot, when one is present.
func (c *Credentials) GetRfid(slot int) ([]byte, bool) {
	if !validSlot(slot) || !c.img.rfids[slot].valid {
		return nil, false
	}
	out := make([]byte, len(c.img.rfids[slot].uid))
	copy(out, c.img.rfids[slot].uid)
	return out, true
}

// ValidatePin matches digits against the master credential first, then
// numbered slots in ascending order. slot is -1 for a master match or a miss.
func (c *Credentials) ValidatePin(digits string) (matched bool, slot int, isMaster bool) {
	if !normalizePin(digits) {
		return false, -1, false
	}
	if c.img.master.valid && c.img.master.digits == digits {
		return true, -1, true
	}
	for i := 0; i < NumSlots; i++ {
		if c.img.pins[i].valid && c.img.pins[i].digits == digits {
			return true, i, false
		}
	}
	return false, -1, false
}

// ValidateRfid matches uid against numbered slots in ascending order; the
// match is exact on both length and bytes.
func (c *Credentials) ValidateRfid(uid []byte) (matched bool, slot int) {
	if len(uid) == 0 {
		return false, -1
	}
	for i := 0; i < NumSlots; i++ {
		r := &c.img.rfids[i]
		if !r.valid || len(r.uid) != len(uid) {
			continue
		}
		if bytes.Equal(r.uid, uid) {
			return true, i
		}
	}
	return false, -1
}
