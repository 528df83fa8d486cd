// Package debounce turns raw input samples into the clean events the lock
// logic consumes: one confirmed keypress per physical press, and one UID
// per card presentation.
package debounce

import (
	"bytes"

	"github.com/keyfold/lockcore/internal/clock"
)

// Default windows, from the original keypad and reader hardware.
const (
	// ScanIntervalMS throttles raw keypad sampling.
	ScanIntervalMS uint32 = 20
	// StabilityMS is how long a raw reading must hold before it counts.
	StabilityMS uint32 = 40
	// RepeatWindowMS suppresses re-reads of a card still on the reader.
	RepeatWindowMS uint32 = 1200
)

// KeyScanner classifies raw keypad samples through idle, candidate and
// confirmed phases. sample returns the currently pressed key, 0 for none.
type KeyScanner struct {
	clk    clock.Clock
	sample func() byte

	scanMS      uint32
	stabilityMS uint32

	nextScanMS    uint32
	lastKey       byte
	stableSinceMS uint32
	reported      bool
}

// NewKeyScanner builds a scanner with the given scan throttle and stability
// hold, both in milliseconds. Zero windows fall back to the defaults.
func NewKeyScanner(clk clock.Clock, sample func() byte, scanMS, stabilityMS uint32) *KeyScanner {
	if scanMS == 0 {
		scanMS = ScanIntervalMS
	}
	if stabilityMS == 0 {
		stabilityMS = StabilityMS
	}
	return &KeyScanner{clk: clk, sample: sample, scanMS: scanMS, stabilityMS: stabilityMS}
}

// Poll samples the keypad at most once per scan interval and returns a key
// exactly once per press, after it has held stable. Returns 0 otherwise.
func (s *KeyScanner) Poll() byte {
	now := s.clk.NowMS()
	if !clock.Expired(now, s.nextScanMS) {
		return 0
	}
	s.nextScanMS = now + s.scanMS

	raw := s.sample()

	if raw != s.lastKey {
		s.lastKey = raw
		s.stableSinceMS = now
		s.reported = false
		return 0
	}

	if raw == 0 {
		s.reported = false
		return 0
	}

	if !s.reported && clock.Elapsed(now, s.stableSinceMS) >= s.stabilityMS {
		s.reported = true
		return raw
	}

	return 0
}

// RepeatFilter drops UID reads that repeat the previously accepted UID
// within the repeat window, so a card resting on the reader fires once.
type RepeatFilter struct {
	clk      clock.Clock
	windowMS uint32

	lastUID []byte
	lastMS  uint32
}

// NewRepeatFilter builds a filter with the given suppression window in
// milliseconds. A zero window falls back to the default.
func NewRepeatFilter(clk clock.Clock, windowMS uint32) *RepeatFilter {
	if windowMS == 0 {
		windowMS = RepeatWindowMS
	}
	return &RepeatFilter{clk: clk, windowMS: windowMS}
}

// Accept reports whether uid should be delivered, and remembers it when so.
// A different UID always passes, even inside the window.
func (f *RepeatFilter) Accept(uid []byte) bool {
	if len(uid) == 0 {
		return false
	}
	now := f.clk.NowMS()
	if bytes.Equal(uid, f.lastUID) && clock.Elapsed(now, f.lastMS) < f.windowMS {
		return false
	}
	f.lastUID = append(f.lastUID[:0], uid...)
	f.lastMS = now
	return true
}
