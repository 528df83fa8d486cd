package debounce

import (
	"testing"

	"github.com/keyfold/lockcore/internal/clock"
)

// pollFor drives the scanner for ms milliseconds with raw held constant and
// returns every confirmed key.
func pollFor(s *KeyScanner, clk *clock.Manual, ms uint32) []byte {
	var out []byte
	for i := uint32(0); i < ms; i++ {
		clk.Advance(1)
		if k := s.Poll(); k != 0 {
			out = append(out, k)
		}
	}
	return out
}

func TestKeyConfirmedAfterStability(t *testing.T) {
	clk := clock.NewManual(0)
	raw := byte(0)
	s := NewKeyScanner(clk, func() byte { return raw }, 0, 0)

	// Settle the idle state first.
	pollFor(s, clk, 100)

	raw = '5'
	got := pollFor(s, clk, 100)
	if len(got) != 1 || got[0] != '5' {
		t.Fatalf("expected one confirmed '5', got %v", got)
	}

	// Holding the key longer reports nothing further.
	if more := pollFor(s, clk, 500); len(more) != 0 {
		t.Fatalf("held key must report once, got %v", more)
	}

	// Release and press again: a second event.
	raw = 0
	pollFor(s, clk, 100)
	raw = '5'
	if again := pollFor(s, clk, 100); len(again) != 1 {
		t.Fatalf("re-press must report again, got %v", again)
	}
}

func TestBounceShorterThanStabilityIsDropped(t *testing.T) {
	clk := clock.NewManual(0)
	raw := byte(0)
	s := NewKeyScanner(clk, func() byte { return raw }, 0, 0)
	pollFor(s, clk, 100)

	// One scan's worth of contact, then release: never confirmed.
	raw = '9'
	pollFor(s, clk, ScanIntervalMS)
	raw = 0
	if got := pollFor(s, clk, 200); len(got) != 0 {
		t.Fatalf("bounce must not confirm, got %v", got)
	}
}

func TestKeyChangeRestartsStability(t *testing.T) {
	clk := clock.NewManual(0)
	raw := byte(0)
	s := NewKeyScanner(clk, func() byte { return raw }, 0, 0)
	pollFor(s, clk, 100)

	raw = '1'
	pollFor(s, clk, ScanIntervalMS)
	raw = '2'
	got := pollFor(s, clk, 200)
	if len(got) != 1 || got[0] != '2' {
		t.Fatalf("only the settled key confirms, got %v", got)
	}
}

func TestScanIntervalThrottlesSampling(t *testing.T) {
	clk := clock.NewManual(0)
	samples := 0
	s := NewKeyScanner(clk, func() byte { samples++; return 0 }, 0, 0)

	for i := 0; i < 200; i++ {
		clk.Advance(1)
		s.Poll()
	}
	if samples > 200/int(ScanIntervalMS)+1 {
		t.Fatalf("sampled %d times in 200 ms, throttle broken", samples)
	}
}

func TestRepeatFilterSuppressesWithinWindow(t *testing.T) {
	clk := clock.NewManual(0)
	f := NewRepeatFilter(clk, 0)
	uid := []byte{0x04, 0xA1, 0xB2}

	if !f.Accept(uid) {
		t.Fatalf("first read must pass")
	}
	clk.Advance(1199)
	if f.Accept(uid) {
		t.Fatalf("repeat inside the window must be dropped")
	}
	clk.Advance(1200)
	if !f.Accept(uid) {
		t.Fatalf("repeat after the window must pass")
	}
}

func TestRepeatFilterPassesDifferentUID(t *testing.T) {
	clk := clock.NewManual(0)
	f := NewRepeatFilter(clk, 0)

	if !f.Accept([]byte{0x01}) {
		t.Fatalf("first read must pass")
	}
	clk.Advance(10)
	if !f.Accept([]byte{0x02}) {
		t.Fatalf("a different card passes immediately")
	}

	// The new card is now the remembered one.
	clk.Advance(10)
	if f.Accept([]byte{0x02}) {
		t.Fatalf("second card repeat must be dropped")
	}
	if !f.Accept([]byte{0x01}) {
		t.Fatalf("swapping back counts as a new presentation")
	}
}

func TestCustomWindows(t *testing.T) {
	clk := clock.NewManual(0)
	raw := byte(0)
	s := NewKeyScanner(clk, func() byte { return raw }, 5, 10)
	pollFor(s, clk, 50)

	// With a 10 ms hold the key confirms well inside the default 40 ms.
	raw = '7'
	got := pollFor(s, clk, 20)
	if len(got) != 1 || got[0] != '7' {
		t.Fatalf("custom stability window not honored, got %v", got)
	}

	f := NewRepeatFilter(clk, 100)
	uid := []byte{0xEE}
	if !f.Accept(uid) {
		t.Fatalf("first read must pass")
	}
	clk.Advance(99)
	if f.Accept(uid) {
		t.Fatalf("repeat inside a 100 ms window must be dropped")
	}
	clk.Advance(1)
	if !f.Accept(uid) {
		t.Fatalf("custom window must expire at 100 ms")
	}
}

func TestRepeatFilterRejectsEmptyUID(t *testing.T) {
	f := NewRepeatFilter(clock.NewManual(0), 0)
	if f.Accept(nil) {
		t.Fatalf("empty uid must never pass")
	}
}
