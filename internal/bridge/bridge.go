// Package bridge implements the line-oriented JSON transport to the
// companion controller: newline-delimited objects inbound, three fixed
// message shapes outbound. The stream is shared with boot and log text, so
// anything that does not parse as a command is ignored without comment.
package bridge

import (
	"encoding/json"
	"io"

	"github.com/rs/zerolog"

	"github.com/keyfold/lockcore/internal/logging"
)

// MaxLine bounds one inbound line. A longer line is discarded whole.
const MaxLine = 512

// CommandHandler receives one parsed inbound command.
type CommandHandler func(cmd, cmdID string, args map[string]any)

// Bridge owns the outbound writer and the inbound line assembly state.
type Bridge struct {
	w       io.Writer
	handler CommandHandler
	log     zerolog.Logger

	line     [MaxLine]byte
	n        int
	overflow bool
}

func New(w io.Writer, handler CommandHandler) *Bridge {
	return &Bridge{
		w:       w,
		handler: handler,
		log:     logging.For("bridge"),
	}
}

// Feed consumes every byte r currently has, assembling lines and dispatching
// complete commands. Carriage returns are dropped. A line that overflows
// MaxLine is discarded up to its terminating newline.
func (b *Bridge) Feed(r io.ByteReader) {
	for {
		c, err := r.ReadByte()
		if err != nil {
			return
		}
		switch c {
		case '\r':
			// ignored
		case '\n':
			if b.n > 0 && !b.overflow {
				b.handleLine(b.line[:b.n])
			}
			b.n = 0
			b.overflow = false
		default:
			if b.overflow {
				continue
			}
			if b.n == MaxLine {
				b.overflow = true
				b.n = 0
				continue
			}
			b.line[b.n] = c
			b.n++
		}
	}
}

type inbound struct {
	Cmd    string         `json:"cmd"`
	CmdID  string         `json:"cmdId"`
	Args   map[string]any `json:"args"`
	Params map[string]any `json:"params"`
}

func (b *Bridge) handleLine(line []byte) {
	var in inbound
	if err := json.Unmarshal(line, &in); err != nil {
		// Interleaved boot/log text on the same stream; not ours.
		return
	}
	if in.Cmd == "" {
		return
	}
	args := in.Args
	if args == nil {
		args = in.Params
	}
	if args == nil {
		args = map[string]any{}
	}
	b.log.Debug().Str("cmd", in.Cmd).Str("cmd_id", in.CmdID).Msg("command received")
	if b.handler != nil {
		b.handler(in.Cmd, in.CmdID, args)
	}
}

type cmdResultMsg struct {
	Evt   string `json:"evt"`
	CmdID string `json:"cmdId"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type eventMsg struct {
	Evt  string `json:"evt"`
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type stateMsg struct {
	Evt   string `json:"evt"`
	State any    `json:"state"`
}

// SendCmdResult reports command completion. The error code is only carried
// on failure.
func (b *Bridge) SendCmdResult(cmdID string, ok bool, errCode string) {
	msg := cmdResultMsg{Evt: "cmd_result", CmdID: cmdID, OK: ok}
	if !ok {
		msg.Error = errCode
	}
	b.sendLine(msg)
}

// SendEvent emits a named event with an arbitrary data object.
func (b *Bridge) SendEvent(eventType string, data any) {
	b.sendLine(eventMsg{Evt: "event", Type: eventType, Data: data})
}

// SendState emits a full state snapshot.
func (b *Bridge) SendState(state any) {
	b.sendLine(stateMsg{Evt: "state", State: state})
}

func (b *Bridge) sendLine(v any) {
	out, err := json.Marshal(v)
	if err != nil {
		b.log.Error().Err(err).Msg("marshal outbound message")
		return
	}
	out = append(out, '\n')
	if _, err := b.w.Write(out); err != nil {
		b.log.Warn().Err(err).Msg("write outbound message")
	}
}
