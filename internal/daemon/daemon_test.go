package daemon

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/keyfold/lockcore/internal/clock"
	"github.com/keyfold/lockcore/internal/config"
	"github.com/keyfold/lockcore/internal/logging"
	"github.com/keyfold/lockcore/internal/testutil/testlog"
)

type recordingSink struct {
	keys []byte
	uids [][]byte
}

func (s *recordingSink) OnKey(key byte)    { s.keys = append(s.keys, key) }
func (s *recordingSink) OnRfid(uid []byte) { s.uids = append(s.uids, uid) }

func tickFor(h *hidInput, clk *clock.Manual, ms uint32) {
	for i := uint32(0); i < ms; i++ {
		clk.Advance(1)
		h.tick()
	}
}

func TestHIDInputKeypadDebounce(t *testing.T) {
	testlog.Start(t)
	clk := clock.NewManual(0)
	sink := &recordingSink{}
	h := newHIDInput(clk, config.Default(), sink, logging.For("test"))

	// Held key confirms once after the stability window.
	h.pump(bytes.NewReader([]byte("5")))
	tickFor(h, clk, 100)
	if string(sink.keys) != "5" {
		t.Fatalf("expected one confirmed '5', got %q", sink.keys)
	}

	// Release, then press again: a second event.
	h.pump(bytes.NewReader([]byte("\n")))
	tickFor(h, clk, 100)
	h.pump(bytes.NewReader([]byte("5")))
	tickFor(h, clk, 100)
	if string(sink.keys) != "55" {
		t.Fatalf("re-press must confirm again, got %q", sink.keys)
	}
}

func TestHIDInputHonorsConfiguredWindows(t *testing.T) {
	testlog.Start(t)
	clk := clock.NewManual(0)
	sink := &recordingSink{}
	cfg := config.Default()
	cfg.KeyScanMS = 5
	cfg.KeyStabilityMS = 10
	h := newHIDInput(clk, cfg, sink, logging.For("test"))

	h.pump(bytes.NewReader([]byte("#")))
	tickFor(h, clk, 20)
	if string(sink.keys) != "#" {
		t.Fatalf("10 ms stability window not honored, got %q", sink.keys)
	}
}

func TestHIDInputCardReads(t *testing.T) {
	testlog.Start(t)
	clk := clock.NewManual(0)
	sink := &recordingSink{}
	cfg := config.Default()
	cfg.RfidRepeatMS = 500
	h := newHIDInput(clk, cfg, sink, logging.For("test"))

	h.pump(bytes.NewReader([]byte("R04A1\n")))
	h.tick()
	if len(sink.uids) != 1 || !bytes.Equal(sink.uids[0], []byte{0x04, 0xA1}) {
		t.Fatalf("card read mismatch: %v", sink.uids)
	}

	// Same card inside the window is suppressed, and passes after it.
	clk.Advance(499)
	h.pump(bytes.NewReader([]byte("R04A1\n")))
	h.tick()
	if len(sink.uids) != 1 {
		t.Fatalf("repeat inside window must be dropped: %v", sink.uids)
	}
	clk.Advance(500)
	h.pump(bytes.NewReader([]byte("R04A1\n")))
	h.tick()
	if len(sink.uids) != 2 {
		t.Fatalf("read after window must pass: %v", sink.uids)
	}

	// Garbage UIDs never reach the sink.
	h.pump(bytes.NewReader([]byte("Rnothex\n")))
	h.tick()
	if len(sink.uids) != 2 {
		t.Fatalf("bad hex must be dropped: %v", sink.uids)
	}
}

func TestByteSourceNonBlocking(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := newByteSource(ctx, strings.NewReader("ab"))

	// Give the pump goroutine a moment to buffer.
	deadline := time.Now().Add(time.Second)
	var got []byte
	for len(got) < 2 && time.Now().Before(deadline) {
		b, err := src.ReadByte()
		if err == io.EOF {
			time.Sleep(time.Millisecond)
			continue
		}
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		got = append(got, b)
	}
	if string(got) != "ab" {
		t.Fatalf("got %q", got)
	}

	// Drained source reports EOF instead of blocking.
	if _, err := src.ReadByte(); err != io.EOF {
		t.Fatalf("expected io.EOF on empty source, got %v", err)
	}
}

func TestByteSourceDrainsAfterReaderClose(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pr, pw := io.Pipe()
	src := newByteSource(ctx, pr)

	if _, err := pw.Write([]byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	pw.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		b, err := src.ReadByte()
		if err == io.EOF {
			time.Sleep(time.Millisecond)
			continue
		}
		if b != 'x' {
			t.Fatalf("got %q", b)
		}
		break
	}

	// Once the reader is closed and the buffer drained, the source
	// reports EOF; the pump goroutine has already exited.
	time.Sleep(10 * time.Millisecond)
	if _, err := src.ReadByte(); err != io.EOF {
		t.Fatalf("expected io.EOF after reader close, got %v", err)
	}
}

func TestOpenStreamStdio(t *testing.T) {
	in, out, closer, err := openStream("-")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer closer()
	if in == nil || out == nil {
		t.Fatalf("stdio stream must have both ends")
	}
}

func TestOpenStreamMissingDevice(t *testing.T) {
	if _, _, _, err := openStream("/nonexistent/ttyUSB99"); err == nil {
		t.Fatalf("missing device must error")
	}
}
