// Package buzzer plays short acknowledge patterns without blocking the
// control loop. Patterns are alternating on/off durations starting with on.
package buzzer

import "github.com/keyfold/lockcore/internal/clock"

// Output is whatever drives the physical buzzer line: a GPIO pin, a shift
// register bit, or a test recorder.
type Output interface {
	Set(on bool)
}

// OutputFunc adapts a plain function to Output.
type OutputFunc func(on bool)

func (f OutputFunc) Set(on bool) { f(on) }

var (
	successPatternMS = []uint32{150, 80}
	failPatternMS    = []uint32{80, 70, 80, 70, 80, 70}
)

// Player steps one pattern at a time. Call Tick every loop iteration.
type Player struct {
	out Output
	clk clock.Clock

	pattern []uint32
	idx     int
	on      bool
	active  bool
	nextMS  uint32
}

func New(out Output, clk clock.Clock) *Player {
	return &Player{out: out, clk: clk}
}

// PlaySuccess starts the single long chirp. A pattern already playing is
// replaced.
func (p *Player) PlaySuccess() { p.start(successPatternMS) }

// PlayFail starts the triple short chirp.
func (p *Player) PlayFail() { p.start(failPatternMS) }

// Stop silences the output and cancels any running pattern.
func (p *Player) Stop() {
	p.active = false
	p.setOutput(false)
}

// Active reports whether a pattern is still playing.
func (p *Player) Active() bool { return p.active }

func (p *Player) start(pattern []uint32) {
	p.pattern = pattern
	p.idx = 0
	p.active = true
	p.setOutput(true)
	// First toggle lands after pattern[0].
	p.nextMS = p.clk.NowMS() + pattern[0]
}

func (p *Player) setOutput(on bool) {
	p.on = on
	p.out.Set(on)
}

// Tick advances the pattern when its current segment has elapsed.
func (p *Player) Tick() {
	if !p.active {
		return
	}
	now := p.clk.NowMS()
	if !clock.Expired(now, p.nextMS) {
		return
	}

	p.idx++
	if p.idx >= len(p.pattern) {
		p.active = false
		p.setOutput(false)
		return
	}

	p.setOutput(!p.on)
	p.nextMS = now + p.pattern[p.idx]
}
