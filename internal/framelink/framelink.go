// Package framelink carries the same lock traffic as the JSON line bridge
// over the binary frame protocol, for links where the peer is another
// controller rather than a host console.
package framelink

import (
	"encoding/hex"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/keyfold/lockcore/internal/lock"
	"github.com/keyfold/lockcore/internal/logging"
	"github.com/keyfold/lockcore/internal/protocol/frame"
	"github.com/keyfold/lockcore/internal/protocol/schema"
)

// CommandHandler receives one decoded administrative command.
type CommandHandler func(cmd, cmdID string, args map[string]any)

// Link owns one binary link endpoint: a frame parser for inbound commands
// and a writer for outbound state, events and results.
type Link struct {
	w       io.Writer
	parser  *frame.Parser
	handler CommandHandler
	log     zerolog.Logger
}

func New(w io.Writer, handler CommandHandler) *Link {
	return &Link{
		w:       w,
		parser:  frame.NewParser(frame.DefaultLimits()),
		handler: handler,
		log:     logging.For("framelink"),
	}
}

// Feed drains r, dispatching every complete command frame. Frames of other
// types are logged and dropped; this end only consumes commands.
func (l *Link) Feed(r io.ByteReader) {
	for {
		f, ok := l.parser.Feed(r)
		if !ok {
			return
		}
		if f.MsgType != schema.MsgCommand {
			l.log.Debug().Uint8("msg_type", f.MsgType).Msg("ignoring non-command frame")
			continue
		}
		cmd, err := schema.DecodeCommand(f)
		if err != nil {
			l.log.Warn().Err(err).Msg("malformed command frame")
			continue
		}
		if l.handler != nil {
			l.handler(cmd.Name, cmd.CmdID, commandArgs(cmd))
		}
	}
}

// commandArgs renders a decoded command the way the line protocol would, so
// both transports share one handler signature.
func commandArgs(c schema.Command) map[string]any {
	args := map[string]any{}
	if c.Slot >= 0 {
		args["slot"] = float64(c.Slot)
	}
	if c.Pin != "" {
		args["pin"] = c.Pin
	}
	if len(c.UID) > 0 {
		args["uidHex"] = strings.ToUpper(hex.EncodeToString(c.UID))
	}
	return args
}

func (l *Link) send(wire []byte, err error) {
	if err != nil {
		l.log.Error().Err(err).Msg("encode link frame")
		return
	}
	if _, err := l.w.Write(wire); err != nil {
		l.log.Warn().Err(err).Msg("write link frame")
	}
}

// CmdResult implements lock.Notifier.
func (l *Link) CmdResult(cmdID string, ok bool, errCode string) {
	l.send(schema.EncodeResult(schema.Result{CmdID: cmdID, OK: ok, Error: errCode}))
}

// UnlockEvent implements lock.Notifier.
func (l *Link) UnlockEvent(ev lock.UnlockEventData) {
	var uid []byte
	if ev.UIDHex != "" {
		uid, _ = hex.DecodeString(ev.UIDHex)
	}
	l.send(schema.EncodeEvent(schema.UnlockEvent{
		Method:  ev.Method,
		Success: ev.Success,
		AtMS:    uint64(ev.AtMS),
		Slot:    ev.Slot,
		UID:     uid,
	}))
}

// State implements lock.Notifier.
func (l *Link) State(snap lock.Snapshot) {
	l.send(schema.EncodeState(schema.StateReport{
		Unlocked:        snap.State == lock.StateUnlocked,
		Method:          snap.Last.Method,
		Success:         snap.Last.Success,
		AtMS:            uint64(snap.Last.AtMS),
		LockoutActive:   snap.LockoutActive,
		LockoutRemainMS: uint64(snap.LockoutRemainMS),
	}))
}
