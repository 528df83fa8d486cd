package bridge

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/keyfold/lockcore/internal/testutil/testlog"
)

type received struct {
	cmd   string
	cmdID string
	args  map[string]any
}

func collect(t *testing.T) (*Bridge, *bytes.Buffer, *[]received) {
	t.Helper()
	var got []received
	var out bytes.Buffer
	b := New(&out, func(cmd, cmdID string, args map[string]any) {
		got = append(got, received{cmd: cmd, cmdID: cmdID, args: args})
	})
	return b, &out, &got
}

func TestFeedDispatchesCommand(t *testing.T) {
	testlog.Start(t)

	b, _, got := collect(t)
	b.Feed(strings.NewReader(`{"cmd":"lock.add_pin","cmdId":"x1","args":{"slot":3,"pin":"1234"}}` + "\n"))

	if len(*got) != 1 {
		t.Fatalf("expected 1 command, got %d", len(*got))
	}
	r := (*got)[0]
	if r.cmd != "lock.add_pin" || r.cmdID != "x1" {
		t.Fatalf("command mismatch: %+v", r)
	}
	if r.args["pin"] != "1234" {
		t.Fatalf("args mismatch: %+v", r.args)
	}
}

func TestFeedParamsFallbackAndDefaults(t *testing.T) {
	b, _, got := collect(t)
	b.Feed(strings.NewReader(`{"cmd":"lock.delete_pin","params":{"slot":1}}` + "\n"))

	if len(*got) != 1 {
		t.Fatalf("expected 1 command, got %d", len(*got))
	}
	r := (*got)[0]
	if r.cmdID != "" {
		t.Fatalf("cmdId should default empty, got %q", r.cmdID)
	}
	if r.args["slot"] != float64(1) {
		t.Fatalf("params fallback failed: %+v", r.args)
	}
}

func TestFeedIgnoresNoise(t *testing.T) {
	b, _, got := collect(t)
	lines := strings.Join([]string{
		"boot: flash init ok",       // plain log text
		`{"cmd":}`,                  // malformed JSON
		`{"evt":"state"}`,           // JSON without cmd
		`{"cmd":"lock.delete_pin"}`, // the one real command
		"",                          // empty line
	}, "\n") + "\n"
	b.Feed(strings.NewReader(lines))

	if len(*got) != 1 || (*got)[0].cmd != "lock.delete_pin" {
		t.Fatalf("expected only the real command, got %+v", *got)
	}
	if (*got)[0].args == nil || len((*got)[0].args) != 0 {
		t.Fatalf("missing args must parse as empty map: %+v", (*got)[0].args)
	}
}

func TestFeedHandlesCRAndSplitReads(t *testing.T) {
	b, _, got := collect(t)
	full := "{\"cmd\":\"a\",\"cmdId\":\"1\"}\r\n"
	b.Feed(strings.NewReader(full[:7]))
	if len(*got) != 0 {
		t.Fatalf("partial line must not dispatch")
	}
	b.Feed(strings.NewReader(full[7:]))
	if len(*got) != 1 || (*got)[0].cmd != "a" {
		t.Fatalf("split line not reassembled: %+v", *got)
	}
}

func TestOverflowedLineIsDiscardedWhole(t *testing.T) {
	b, _, got := collect(t)

	// The tail of the oversized line is itself valid JSON; it must still be
	// dropped with the rest of the line.
	long := strings.Repeat("x", MaxLine) + `{"cmd":"evil"}` + "\n" + `{"cmd":"good"}` + "\n"
	b.Feed(strings.NewReader(long))

	if len(*got) != 1 || (*got)[0].cmd != "good" {
		t.Fatalf("expected only post-overflow command, got %+v", *got)
	}
}

func TestSendCmdResultShapes(t *testing.T) {
	b, out, _ := collect(t)

	b.SendCmdResult("x1", true, "")
	b.SendCmdResult("x2", false, "bad_slot")

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var ok map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &ok); err != nil {
		t.Fatalf("unmarshal ok result: %v", err)
	}
	if ok["evt"] != "cmd_result" || ok["cmdId"] != "x1" || ok["ok"] != true {
		t.Fatalf("ok result mismatch: %v", ok)
	}
	if _, present := ok["error"]; present {
		t.Fatalf("ok result must not carry error field: %v", ok)
	}

	var fail map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &fail); err != nil {
		t.Fatalf("unmarshal fail result: %v", err)
	}
	if fail["ok"] != false || fail["error"] != "bad_slot" {
		t.Fatalf("fail result mismatch: %v", fail)
	}
}

func TestSendEventAndStateShapes(t *testing.T) {
	b, out, _ := collect(t)

	b.SendEvent("lock.unlock", map[string]any{"method": "PIN", "success": true, "slot": 0})
	b.SendState(map[string]any{"lock": map[string]any{"state": "LOCKED"}})

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var evt map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &evt); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if evt["evt"] != "event" || evt["type"] != "lock.unlock" {
		t.Fatalf("event mismatch: %v", evt)
	}
	data, _ := evt["data"].(map[string]any)
	if data["method"] != "PIN" || data["success"] != true {
		t.Fatalf("event data mismatch: %v", data)
	}

	var st map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &st); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if st["evt"] != "state" {
		t.Fatalf("state mismatch: %v", st)
	}
}
