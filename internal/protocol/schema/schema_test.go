package schema

import (
	"bytes"
	"errors"
	"testing"

	"github.com/keyfold/lockcore/internal/protocol/frame"
	"github.com/keyfold/lockcore/internal/testutil/testlog"
)

func decodeOne(t *testing.T, wire []byte) frame.Frame {
	t.Helper()
	p := frame.NewParser(frame.DefaultLimits())
	f, ok := p.Feed(bytes.NewReader(wire))
	if !ok {
		t.Fatalf("no frame decoded from %x", wire)
	}
	return f
}

func TestStateRoundTripWithLockout(t *testing.T) {
	testlog.Start(t)

	in := StateReport{
		Unlocked:        false,
		Method:          "RFID",
		Success:         false,
		AtMS:            123456,
		LockoutActive:   true,
		LockoutRemainMS: 21000,
	}
	wire, err := EncodeState(in)
	if err != nil {
		t.Fatalf("encode state: %v", err)
	}
	out, err := DecodeState(decodeOne(t, wire))
	if err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if out != in {
		t.Fatalf("state mismatch: got=%+v want=%+v", out, in)
	}
}

func TestStateOmitsLockoutWhenInactive(t *testing.T) {
	wire, err := EncodeState(StateReport{Unlocked: true, Method: "PIN", Success: true, AtMS: 99})
	if err != nil {
		t.Fatalf("encode state: %v", err)
	}
	out, err := DecodeState(decodeOne(t, wire))
	if err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if out.LockoutActive || out.LockoutRemainMS != 0 {
		t.Fatalf("lockout should be absent: %+v", out)
	}
	if !out.Unlocked || out.Method != "PIN" || !out.Success {
		t.Fatalf("state mismatch: %+v", out)
	}
}

func TestEventRoundTrip(t *testing.T) {
	in := UnlockEvent{Method: "RFID", Success: true, AtMS: 5000, Slot: 3, UID: []byte{0xDE, 0xAD, 0xBE, 0xEF}}
	wire, err := EncodeEvent(in)
	if err != nil {
		t.Fatalf("encode event: %v", err)
	}
	out, err := DecodeEvent(decodeOne(t, wire))
	if err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if out.Method != in.Method || out.Success != in.Success || out.AtMS != in.AtMS || out.Slot != in.Slot {
		t.Fatalf("event mismatch: got=%+v want=%+v", out, in)
	}
	if !bytes.Equal(out.UID, in.UID) {
		t.Fatalf("uid mismatch: %x", out.UID)
	}
}

func TestEventOmittedSlotDecodesAsNone(t *testing.T) {
	wire, err := EncodeEvent(UnlockEvent{Method: "PIN", Success: false, Slot: -1})
	if err != nil {
		t.Fatalf("encode event: %v", err)
	}
	out, err := DecodeEvent(decodeOne(t, wire))
	if err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if out.Slot != -1 {
		t.Fatalf("expected slot -1, got %d", out.Slot)
	}
}

func TestCommandRoundTrip(t *testing.T) {
	in := Command{Name: "lock.add_pin", CmdID: "c1", Slot: 4, Pin: "1234"}
	wire, err := EncodeCommand(in)
	if err != nil {
		t.Fatalf("encode command: %v", err)
	}
	out, err := DecodeCommand(decodeOne(t, wire))
	if err != nil {
		t.Fatalf("decode command: %v", err)
	}
	if out.Name != in.Name || out.CmdID != in.CmdID || out.Slot != in.Slot || out.Pin != in.Pin {
		t.Fatalf("command mismatch: got=%+v want=%+v", out, in)
	}
}

func TestResultCarriesErrorOnlyOnFailure(t *testing.T) {
	okWire, err := EncodeResult(Result{CmdID: "c1", OK: true, Error: "ignored"})
	if err != nil {
		t.Fatalf("encode result: %v", err)
	}
	out, err := DecodeResult(decodeOne(t, okWire))
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !out.OK || out.Error != "" {
		t.Fatalf("ok result must not carry error: %+v", out)
	}

	failWire, err := EncodeResult(Result{CmdID: "c2", OK: false, Error: "bad_slot"})
	if err != nil {
		t.Fatalf("encode result: %v", err)
	}
	out, err = DecodeResult(decodeOne(t, failWire))
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if out.OK || out.Error != "bad_slot" {
		t.Fatalf("fail result mismatch: %+v", out)
	}
}

func TestDecodeRejectsWrongMessageType(t *testing.T) {
	wire, err := EncodeEvent(UnlockEvent{Method: "PIN", Slot: -1})
	if err != nil {
		t.Fatalf("encode event: %v", err)
	}
	if _, err := DecodeState(decodeOne(t, wire)); !errors.Is(err, ErrMessageTypeMismatch) {
		t.Fatalf("expected ErrMessageTypeMismatch, got %v", err)
	}
}

func TestEncodeEventRequiresMethod(t *testing.T) {
	if _, err := EncodeEvent(UnlockEvent{Slot: -1}); !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
}
