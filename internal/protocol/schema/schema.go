// Package schema defines the message and tag vocabulary of the binary
// controller link, plus typed encode/decode helpers that pair the frame
// codec with TLV payloads.
package schema

import (
	"errors"
	"fmt"

	"github.com/keyfold/lockcore/internal/protocol/frame"
	"github.com/keyfold/lockcore/internal/protocol/tlv"
)

// Message type IDs on the controller link.
const (
	MsgState   uint8 = 1
	MsgEvent   uint8 = 2
	MsgCommand uint8 = 3
	MsgResult  uint8 = 4
)

// TLV tags.
const (
	TagLockState       uint8 = 1  // u8: 0 locked, 1 unlocked
	TagMethod          uint8 = 2  // str: "PIN" | "RFID"
	TagSuccess         uint8 = 3  // u8: 0|1
	TagAtMS            uint8 = 4  // u64
	TagSlot            uint8 = 5  // u8: 0..9
	TagUID             uint8 = 6  // bytes: raw RFID UID
	TagLockoutRemainMS uint8 = 7  // u64, present only while lockout is active
	TagCommand         uint8 = 8  // str: command name
	TagCmdID           uint8 = 9  // str
	TagPin             uint8 = 10 // str: 1..8 decimal digits
	TagOK              uint8 = 11 // u8: 0|1
	TagError           uint8 = 12 // str: error code
)

const payloadCapacity = 256

var (
	ErrMessageTypeMismatch = errors.New("schema: message type mismatch")
	ErrMissingField        = errors.New("schema: missing required field")
	ErrPayloadOverflow     = errors.New("schema: payload overflow")
)

// StateReport mirrors the lock state broadcast on the binary link.
type StateReport struct {
	Unlocked        bool
	Method          string
	Success         bool
	AtMS            uint64
	LockoutActive   bool
	LockoutRemainMS uint64
}

// UnlockEvent is one credential attempt outcome.
type UnlockEvent struct {
	Method  string
	Success bool
	AtMS    uint64
	Slot    int // -1 when no numbered slot applies
	UID     []byte
}

// Command is an administrative request arriving over the binary link.
type Command struct {
	Name  string
	CmdID string
	Slot  int // -1 when absent
	Pin   string
	UID   []byte
}

// Result reports command completion.
type Result struct {
	CmdID string
	OK    bool
	Error string
}

func boolByte(v bool) uint8 {
	if v {
		return 1
	}
	return 0
}

// EncodeState renders a StateReport as full wire bytes.
func EncodeState(s StateReport) ([]byte, error) {
	w := tlv.NewWriter(payloadCapacity)
	ok := w.AddU8(TagLockState, boolByte(s.Unlocked)) &&
		w.AddStr(TagMethod, s.Method) &&
		w.AddU8(TagSuccess, boolByte(s.Success)) &&
		w.AddU64(TagAtMS, s.AtMS)
	if ok && s.LockoutActive {
		ok = w.AddU64(TagLockoutRemainMS, s.LockoutRemainMS)
	}
	if !ok {
		return nil, ErrPayloadOverflow
	}
	return frame.Encode(MsgState, w.Bytes())
}

// DecodeState parses a MsgState frame.
func DecodeState(f frame.Frame) (StateReport, error) {
	if f.MsgType != MsgState {
		return StateReport{}, ErrMessageTypeMismatch
	}
	state, ok := tlv.GetU8(f.Payload, TagLockState)
	if !ok {
		return StateReport{}, fmt.Errorf("%w: lock_state", ErrMissingField)
	}
	out := StateReport{Unlocked: state != 0}
	out.Method, _ = tlv.GetStr(f.Payload, TagMethod)
	if v, ok := tlv.GetU8(f.Payload, TagSuccess); ok {
		out.Success = v != 0
	}
	out.AtMS, _ = tlv.GetU64(f.Payload, TagAtMS)
	if v, ok := tlv.GetU64(f.Payload, TagLockoutRemainMS); ok {
		out.LockoutActive = true
		out.LockoutRemainMS = v
	}
	return out, nil
}

// EncodeEvent renders an UnlockEvent as full wire bytes.
func EncodeEvent(e UnlockEvent) ([]byte, error) {
	if e.Method == "" {
		return nil, fmt.Errorf("%w: method", ErrMissingField)
	}
	w := tlv.NewWriter(payloadCapacity)
	ok := w.AddStr(TagMethod, e.Method) &&
		w.AddU8(TagSuccess, boolByte(e.Success)) &&
		w.AddU64(TagAtMS, e.AtMS)
	if ok && e.Slot >= 0 {
		ok = w.AddU8(TagSlot, uint8(e.Slot))
	}
	if ok && len(e.UID) > 0 {
		ok = w.AddBytes(TagUID, e.UID)
	}
	if !ok {
		return nil, ErrPayloadOverflow
	}
	return frame.Encode(MsgEvent, w.Bytes())
}

// DecodeEvent parses a MsgEvent frame.
func DecodeEvent(f frame.Frame) (UnlockEvent, error) {
	if f.MsgType != MsgEvent {
		return UnlockEvent{}, ErrMessageTypeMismatch
	}
	method, ok := tlv.GetStr(f.Payload, TagMethod)
	if !ok {
		return UnlockEvent{}, fmt.Errorf("%w: method", ErrMissingField)
	}
	out := UnlockEvent{Method: method, Slot: -1}
	if v, ok := tlv.GetU8(f.Payload, TagSuccess); ok {
		out.Success = v != 0
	}
	out.AtMS, _ = tlv.GetU64(f.Payload, TagAtMS)
	if v, ok := tlv.GetU8(f.Payload, TagSlot); ok {
		out.Slot = int(v)
	}
	out.UID, _ = tlv.GetBytes(f.Payload, TagUID)
	return out, nil
}

// EncodeCommand renders an administrative Command as full wire bytes.
func EncodeCommand(c Command) ([]byte, error) {
	if c.Name == "" {
		return nil, fmt.Errorf("%w: command", ErrMissingField)
	}
	w := tlv.NewWriter(payloadCapacity)
	ok := w.AddStr(TagCommand, c.Name) &&
		w.AddStr(TagCmdID, c.CmdID)
	if ok && c.Slot >= 0 {
		ok = w.AddU8(TagSlot, uint8(c.Slot))
	}
	if ok && c.Pin != "" {
		ok = w.AddStr(TagPin, c.Pin)
	}
	if ok && len(c.UID) > 0 {
		ok = w.AddBytes(TagUID, c.UID)
	}
	if !ok {
		return nil, ErrPayloadOverflow
	}
	return frame.Encode(MsgCommand, w.Bytes())
}

// DecodeCommand parses a MsgCommand frame.
func DecodeCommand(f frame.Frame) (Command, error) {
	if f.MsgType != MsgCommand {
		return Command{}, ErrMessageTypeMismatch
	}
	name, ok := tlv.GetStr(f.Payload, TagCommand)
	if !ok {
		return Command{}, fmt.Errorf("%w: command", ErrMissingField)
	}
	out := Command{Name: name, Slot: -1}
	out.CmdID, _ = tlv.GetStr(f.Payload, TagCmdID)
	if v, ok := tlv.GetU8(f.Payload, TagSlot); ok {
		out.Slot = int(v)
	}
	out.Pin, _ = tlv.GetStr(f.Payload, TagPin)
	out.UID, _ = tlv.GetBytes(f.Payload, TagUID)
	return out, nil
}

// EncodeResult renders a command Result as full wire bytes.
func EncodeResult(r Result) ([]byte, error) {
	w := tlv.NewWriter(payloadCapacity)
	ok := w.AddStr(TagCmdID, r.CmdID) &&
		w.AddU8(TagOK, boolByte(r.OK))
	if ok && !r.OK && r.Error != "" {
		ok = w.AddStr(TagError, r.Error)
	}
	if !ok {
		return nil, ErrPayloadOverflow
	}
	return frame.Encode(MsgResult, w.Bytes())
}

// DecodeResult parses a MsgResult frame.
func DecodeResult(f frame.Frame) (Result, error) {
	if f.MsgType != MsgResult {
		return Result{}, ErrMessageTypeMismatch
	}
	cmdID, ok := tlv.GetStr(f.Payload, TagCmdID)
	if !ok {
		return Result{}, fmt.Errorf("%w: cmd_id", ErrMissingField)
	}
	out := Result{CmdID: cmdID}
	if v, ok := tlv.GetU8(f.Payload, TagOK); ok {
		out.OK = v != 0
	}
	out.Error, _ = tlv.GetStr(f.Payload, TagError)
	return out, nil
}
