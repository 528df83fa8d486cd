// Package lock implements the access-control state machine: PIN entry and
// RFID reads in, unlock/relock decisions and brute-force lockout out. All
// mutation happens from the single control loop; none of the entry points
// block.
package lock

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/keyfold/lockcore/internal/clock"
	"github.com/keyfold/lockcore/internal/logging"
	"github.com/keyfold/lockcore/internal/store"
)

const maxPinLen = 8

// Timings are the time-driven knobs of the state machine, all in
// milliseconds except MaxFails.
type Timings struct {
	PinInputTimeoutMS uint32
	UnlockHoldMS      uint32
	LockoutDurationMS uint32
	MaxFails          int
}

// DefaultTimings returns the stock behavior: 6 s entry timeout, 5 s unlock
// hold, 30 s lockout after 5 consecutive failures.
func DefaultTimings() Timings {
	return Timings{
		PinInputTimeoutMS: 6000,
		UnlockHoldMS:      5000,
		LockoutDurationMS: 30000,
		MaxFails:          5,
	}
}

// Display texts sent to the 4-character front panel.
const (
	displayIdle    = "----"
	displayEntry   = "****"
	displayOpen    = "OPEN"
	displayFail    = "FAIL"
	displayLockout = "LOCK"
)

// State is the lock position.
type State uint8

const (
	StateLocked State = iota
	StateUnlocked
)

func (s State) String() string {
	if s == StateUnlocked {
		return "UNLOCKED"
	}
	return "LOCKED"
}

// Display is the front-panel text output, fire and forget.
type Display interface {
	SetText(s string)
}

// Buzzer plays audible feedback, fire and forget.
type Buzzer interface {
	PlaySuccess()
	PlayFail()
}

// Logic is the state machine. Not safe for concurrent use.
type Logic struct {
	store    *store.Credentials
	display  Display
	buzzer   Buzzer
	notifier Notifier
	clk      clock.Clock
	timings  Timings
	log      zerolog.Logger

	state         State
	unlockUntilMS uint32

	pin         []byte
	lastInputMS uint32

	failCount      int
	lockoutUntilMS uint32

	lastMethod   string
	lastSuccess  bool
	lastActionMS uint32
}

// New wires the state machine to its collaborators with default timings,
// shows the idle display and broadcasts the boot state.
func New(st *store.Credentials, display Display, buzzer Buzzer, notifier Notifier, clk clock.Clock) *Logic {
	return NewWithTimings(st, display, buzzer, notifier, clk, DefaultTimings())
}

// NewWithTimings is New with the time-driven knobs overridden.
func NewWithTimings(st *store.Credentials, display Display, buzzer Buzzer, notifier Notifier, clk clock.Clock, t Timings) *Logic {
	l := &Logic{
		store:    st,
		display:  display,
		buzzer:   buzzer,
		notifier: notifier,
		clk:      clk,
		timings:  t,
		log:      logging.For("lock"),
		state:    StateLocked,
		pin:      make([]byte, 0, maxPinLen),
	}
	l.display.SetText(displayIdle)
	l.sendState()
	return l
}

// State returns the current lock position.
func (l *Logic) State() State {
	return l.state
}

// IsLockoutActive reports whether the brute-force lockout window is open.
func (l *Logic) IsLockoutActive() bool {
	now := l.clk.NowMS()
	return l.lockoutUntilMS != 0 && clock.Before(now, l.lockoutUntilMS)
}

// Tick advances time-driven behavior: PIN entry timeout, the lockout display
// indicator and auto relock. Call every loop iteration.
func (l *Logic) Tick() {
	now := l.clk.NowMS()

	if len(l.pin) > 0 && clock.Elapsed(now, l.lastInputMS) > l.timings.PinInputTimeoutMS {
		l.clearPinEntry()
		if !l.IsLockoutActive() && l.state == StateLocked {
			l.display.SetText(displayIdle)
		}
	}

	if l.IsLockoutActive() {
		l.display.SetText(displayLockout)
	}

	if l.state == StateUnlocked && clock.After(now, l.unlockUntilMS) {
		l.state = StateLocked
		l.display.SetText(displayIdle)
		l.log.Info().Msg("auto relock")
		l.sendState()
	}
}

// OnKey consumes one debounced keypad press. Digits accumulate into the PIN
// buffer, '*' clears it, '#' submits it. Everything is ignored during
// lockout.
func (l *Logic) OnKey(key byte) {
	if key == 0 || l.IsLockoutActive() {
		return
	}

	switch {
	case key >= '0' && key <= '9':
		if len(l.pin) < maxPinLen {
			l.pin = append(l.pin, key)
			l.lastInputMS = l.clk.NowMS()
			l.display.SetText(displayEntry)
		}
	case key == '*':
		l.clearPinEntry()
		l.display.SetText(displayIdle)
	case key == '#':
		l.attemptPin()
	}
	// A/B/C/D keys are ignored.
}

// OnRfid consumes one deduplicated UID read.
func (l *Logic) OnRfid(uid []byte) {
	if len(uid) == 0 || l.IsLockoutActive() {
		return
	}

	matched, slot := l.store.ValidateRfid(uid)
	uidHex := strings.ToUpper(hex.EncodeToString(uid))
	if matched {
		l.unlockSuccess("RFID", slot, uidHex)
	} else {
		l.unlockFail("RFID", uidHex)
	}
}

func (l *Logic) clearPinEntry() {
	l.pin = l.pin[:0]
}

func (l *Logic) attemptPin() {
	if len(l.pin) == 0 {
		return
	}

	matched, slot, isMaster := l.store.ValidatePin(string(l.pin))
	l.clearPinEntry()

	if matched {
		if isMaster {
			slot = -1
		}
		l.unlockSuccess("PIN", slot, "")
	} else {
		l.unlockFail("PIN", "")
	}
}

func (l *Logic) unlockSuccess(method string, slot int, uidHex string) {
	now := l.clk.NowMS()
	l.failCount = 0
	l.state = StateUnlocked
	l.unlockUntilMS = now + l.timings.UnlockHoldMS

	l.lastMethod = method
	l.lastSuccess = true
	l.lastActionMS = now

	l.display.SetText(displayOpen)
	l.buzzer.PlaySuccess()
	l.log.Info().Str("method", method).Int("slot", slot).Msg("unlock granted")

	l.sendUnlockEvent(method, true, slot, uidHex)
	l.sendState()
}

func (l *Logic) unlockFail(method string, uidHex string) {
	now := l.clk.NowMS()
	l.failCount++

	l.lastMethod = method
	l.lastSuccess = false
	l.lastActionMS = now

	if l.failCount >= l.timings.MaxFails {
		l.failCount = 0
		l.lockoutUntilMS = now + l.timings.LockoutDurationMS
		l.display.SetText(displayLockout)
		l.log.Warn().Str("method", method).Msg("lockout engaged")
	} else {
		l.display.SetText(displayFail)
		l.log.Info().Str("method", method).Int("fails", l.failCount).Msg("unlock denied")
	}

	l.buzzer.PlayFail()

	l.sendUnlockEvent(method, false, -1, uidHex)
	l.sendState()
}

func (l *Logic) sendUnlockEvent(method string, success bool, slot int, uidHex string) {
	l.notifier.UnlockEvent(UnlockEventData{
		Method:  method,
		Success: success,
		Slot:    slot,
		UIDHex:  uidHex,
		AtMS:    l.clk.NowMS(),
	})
}

func (l *Logic) sendState() {
	now := l.clk.NowMS()
	snap := Snapshot{
		State: l.state,
		Last: ActionRecord{
			Method:  l.lastMethod,
			Success: l.lastSuccess,
			AtMS:    l.lastActionMS,
		},
	}
	if l.IsLockoutActive() {
		snap.LockoutActive = true
		snap.LockoutRemainMS = clock.Elapsed(l.lockoutUntilMS, now)
	}
	l.notifier.State(snap)
}

// Command error codes reported to the remote caller.
const (
	errBadSlot    = "bad_slot"
	errBadPin     = "bad_pin"
	errBadUID     = "bad_uid"
	errStoreFail  = "store_fail"
	errUnknownCmd = "unknown_cmd"
)

// OnCommand processes one administrative command. Commands are never gated
// by lockout, and every command, pass or fail, answers with a command result
// and a fresh state broadcast.
func (l *Logic) OnCommand(cmd, cmdID string, args map[string]any) {
	if cmd == "" {
		return
	}

	errCode := l.runCommand(cmd, args)
	ok := errCode == ""
	if !ok {
		l.log.Warn().Str("cmd", cmd).Str("error", errCode).Msg("command rejected")
	}

	l.notifier.CmdResult(cmdID, ok, errCode)
	l.sendState()
}

func (l *Logic) runCommand(cmd string, args map[string]any) string {
	switch cmd {
	case "lock.add_pin":
		slot := intArg(args, "slot")
		if slot < 0 || slot > 9 {
			return errBadSlot
		}
		pin := strArg(args, "pin")
		if pin == "" {
			return errBadPin
		}
		return l.storeErr(l.store.SetPin(slot, pin))

	case "lock.delete_pin":
		slot := intArg(args, "slot")
		if slot < 0 || slot > 9 {
			return errBadSlot
		}
		return l.storeErr(l.store.DeletePin(slot))

	case "lock.add_rfid":
		slot := intArg(args, "slot")
		if slot < 0 || slot > 9 {
			return errBadSlot
		}
		uid, ok := parseUIDHex(strArg(args, "uidHex"))
		if !ok {
			return errBadUID
		}
		return l.storeErr(l.store.SetRfid(slot, uid))

	case "lock.delete_rfid":
		slot := intArg(args, "slot")
		if slot < 0 || slot > 9 {
			return errBadSlot
		}
		return l.storeErr(l.store.DeleteRfid(slot))

	case "lock.set_master":
		return l.storeErr(l.store.SetMaster(strArg(args, "pin")))

	default:
		return errUnknownCmd
	}
}

func (l *Logic) storeErr(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, store.ErrBadSlot):
		return errBadSlot
	case errors.Is(err, store.ErrBadPin):
		return errBadPin
	case errors.Is(err, store.ErrBadUID):
		return errBadUID
	default:
		return errStoreFail
	}
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		if v != float64(int(v)) {
			return -1
		}
		return int(v)
	case int:
		return v
	default:
		return -1
	}
}

func strArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func parseUIDHex(s string) ([]byte, bool) {
	if s == "" || len(s)%2 != 0 {
		return nil, false
	}
	uid, err := hex.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return uid, true
}
