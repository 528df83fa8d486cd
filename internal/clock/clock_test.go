package clock

import "testing"

func TestElapsedAcrossWrap(t *testing.T) {
	since := uint32(0xFFFFFF00)
	now := since + 512 // wraps past zero
	if got := Elapsed(now, since); got != 512 {
		t.Fatalf("elapsed across wrap: got %d want 512", got)
	}
}

func TestExpiredAcrossWrap(t *testing.T) {
	deadline := uint32(0xFFFFFFF0)
	if Expired(deadline-1, deadline) {
		t.Fatalf("deadline not reached yet")
	}
	if !Expired(deadline, deadline) {
		t.Fatalf("deadline exactly reached should be expired")
	}
	if !Expired(deadline+100, deadline) {
		t.Fatalf("deadline passed across wrap should be expired")
	}
}

func TestAfterIsStrict(t *testing.T) {
	if After(1000, 1000) {
		t.Fatalf("After must be strict")
	}
	if !After(1001, 1000) {
		t.Fatalf("1001 is after 1000")
	}
	if After(999, 1000) {
		t.Fatalf("999 is not after 1000")
	}
}

func TestManualAdvance(t *testing.T) {
	c := NewManual(100)
	c.Advance(50)
	if c.NowMS() != 150 {
		t.Fatalf("manual clock: got %d want 150", c.NowMS())
	}
	c.Set(0xFFFFFFFE)
	c.Advance(4)
	if c.NowMS() != 2 {
		t.Fatalf("manual clock wrap: got %d want 2", c.NowMS())
	}
}
