// Package clock provides the monotonic millisecond time base shared by every
// deadline in the controller.
//
// The counter is a uint32 and wraps after ~49.7 days. All comparisons must go
// through Elapsed/Expired, which stay correct across the wrap; plain ordered
// comparison of two counter values does not.
package clock

import "time"

// Clock yields the current millisecond counter value.
type Clock interface {
	NowMS() uint32
}

// Elapsed returns the milliseconds from since to now, wrap-safe.
func Elapsed(now, since uint32) uint32 {
	return now - since
}

// Expired reports whether now has reached or passed deadline.
func Expired(now, deadline uint32) bool {
	return int32(now-deadline) >= 0
}

// After reports whether now is strictly past deadline.
func After(now, deadline uint32) bool {
	return int32(now-deadline) > 0
}

// Before reports whether now is strictly ahead of deadline.
func Before(now, deadline uint32) bool {
	return int32(now-deadline) < 0
}

// Wall is the runtime Clock backed by the Go monotonic reading.
type Wall struct {
	start time.Time
}

func NewWall() *Wall {
	return &Wall{start: time.Now()}
}

func (w *Wall) NowMS() uint32 {
	return uint32(time.Since(w.start).Milliseconds())
}

// Manual is a hand-driven Clock for tests.
type Manual struct {
	ms uint32
}

func NewManual(startMS uint32) *Manual {
	return &Manual{ms: startMS}
}

func (m *Manual) NowMS() uint32 { return m.ms }

// Advance moves the counter forward by d milliseconds.
func (m *Manual) Advance(d uint32) { m.ms += d }

// Set jumps the counter to an absolute value.
func (m *Manual) Set(ms uint32) { m.ms = ms }
