package daemon

import (
	"encoding/hex"
	"io"

	"github.com/rs/zerolog"

	"github.com/keyfold/lockcore/internal/clock"
	"github.com/keyfold/lockcore/internal/config"
	"github.com/keyfold/lockcore/internal/hw/debounce"
	"github.com/keyfold/lockcore/internal/lock"
)

// inputSink is where confirmed local input lands. *lock.Logic satisfies it.
type inputSink interface {
	OnKey(key byte)
	OnRfid(uid []byte)
}

// hidInput adapts a byte stream of simulated panel input into the debounced
// events the lock logic consumes, the local-input counterpart of panelLog.
//
// Stream grammar, one byte per sample:
//   - '0'..'9', '*', '#', 'A'..'D'  set the current keypad level
//   - '\n', '\r', ' ' or '.'        release the keypad
//   - 'R' <hex pairs> '\n'          one card read with that UID
//
// The keypad level is sampled through the same scan/stability classifier a
// hardware port would use, and card reads pass the repeat filter, so the
// timing behavior matches a real panel.
type hidInput struct {
	sink inputSink
	keys *debounce.KeyScanner
	rfid *debounce.RepeatFilter
	log  zerolog.Logger

	level   byte
	inUID   bool
	uidHex  []byte
	pending [][]byte
}

func newHIDInput(clk clock.Clock, cfg config.Config, sink inputSink, log zerolog.Logger) *hidInput {
	h := &hidInput{sink: sink, log: log}
	h.keys = debounce.NewKeyScanner(clk, func() byte { return h.level },
		cfg.KeyScanMS, cfg.KeyStabilityMS)
	h.rfid = debounce.NewRepeatFilter(clk, cfg.RfidRepeatMS)
	return h
}

// pump drains r, updating the simulated keypad level and collecting
// completed card reads. Never blocks.
func (h *hidInput) pump(r io.ByteReader) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return
		}
		if h.inUID {
			h.consumeUIDByte(b)
			continue
		}
		switch {
		case b == 'R':
			h.inUID = true
			h.uidHex = h.uidHex[:0]
		case b == '\n' || b == '\r' || b == ' ' || b == '.':
			h.level = 0
		case isKeyByte(b):
			h.level = b
		default:
			// Noise on the input stream is dropped.
		}
	}
}

func (h *hidInput) consumeUIDByte(b byte) {
	if b != '\n' && b != '\r' {
		h.uidHex = append(h.uidHex, b)
		return
	}
	h.inUID = false
	uid, err := hex.DecodeString(string(h.uidHex))
	if err != nil || len(uid) == 0 {
		h.log.Warn().Str("uid", string(h.uidHex)).Msg("bad card read on input stream")
		return
	}
	h.pending = append(h.pending, uid)
}

// tick polls the keypad classifier and delivers any filtered card reads.
func (h *hidInput) tick() {
	if k := h.keys.Poll(); k != 0 {
		h.sink.OnKey(k)
	}
	for _, uid := range h.pending {
		if h.rfid.Accept(uid) {
			h.sink.OnRfid(uid)
		}
	}
	h.pending = h.pending[:0]
}

func isKeyByte(b byte) bool {
	switch {
	case b >= '0' && b <= '9':
		return true
	case b == '*' || b == '#':
		return true
	case b >= 'A' && b <= 'D':
		return true
	}
	return false
}

// compile-time check that the lock logic is a valid sink.
var _ inputSink = (*lock.Logic)(nil)
