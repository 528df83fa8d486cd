// lockadm composes one administrative command for a running lockd and
// writes it to the stream device as a JSON line, optionally waiting for
// the matching cmd_result.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: lockadm [flags] <command> [args]

commands:
  add-pin <slot> <pin>       store a PIN in slot 0-9
  delete-pin <slot>          clear a PIN slot
  add-rfid <slot> <uid-hex>  store an RFID UID in slot 0-9
  delete-rfid <slot>         clear an RFID slot
  set-master <pin>           set the master PIN ("" clears it)

flags:
`)
	flag.PrintDefaults()
	os.Exit(2)
}

type request struct {
	Cmd   string         `json:"cmd"`
	CmdID string         `json:"cmdId"`
	Args  map[string]any `json:"args"`
}

type result struct {
	Evt   string `json:"evt"`
	CmdID string `json:"cmdId"`
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func main() {
	device := flag.String("device", "-", `stream device, "-" for stdout`)
	wait := flag.Bool("wait", false, "read the device until the matching cmd_result arrives")
	timeout := flag.Duration("timeout", 5*time.Second, "give up waiting after this long")
	flag.Usage = usage
	flag.Parse()

	req, err := buildRequest(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "lockadm: %v\n", err)
		usage()
	}
	req.CmdID = fmt.Sprintf("adm-%d", time.Now().UnixNano())

	if err := run(req, *device, *wait, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "lockadm: %v\n", err)
		os.Exit(1)
	}
}

func buildRequest(args []string) (request, error) {
	if len(args) == 0 {
		return request{}, fmt.Errorf("command required")
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "add-pin":
		if len(rest) != 2 {
			return request{}, fmt.Errorf("add-pin needs <slot> <pin>")
		}
		slot, err := parseSlot(rest[0])
		if err != nil {
			return request{}, err
		}
		return request{Cmd: "lock.add_pin", Args: map[string]any{"slot": slot, "pin": rest[1]}}, nil

	case "delete-pin":
		if len(rest) != 1 {
			return request{}, fmt.Errorf("delete-pin needs <slot>")
		}
		slot, err := parseSlot(rest[0])
		if err != nil {
			return request{}, err
		}
		return request{Cmd: "lock.delete_pin", Args: map[string]any{"slot": slot}}, nil

	case "add-rfid":
		if len(rest) != 2 {
			return request{}, fmt.Errorf("add-rfid needs <slot> <uid-hex>")
		}
		slot, err := parseSlot(rest[0])
		if err != nil {
			return request{}, err
		}
		return request{Cmd: "lock.add_rfid", Args: map[string]any{"slot": slot, "uidHex": strings.ToUpper(rest[1])}}, nil

	case "delete-rfid":
		if len(rest) != 1 {
			return request{}, fmt.Errorf("delete-rfid needs <slot>")
		}
		slot, err := parseSlot(rest[0])
		if err != nil {
			return request{}, err
		}
		return request{Cmd: "lock.delete_rfid", Args: map[string]any{"slot": slot}}, nil

	case "set-master":
		if len(rest) != 1 {
			return request{}, fmt.Errorf("set-master needs <pin>")
		}
		return request{Cmd: "lock.set_master", Args: map[string]any{"pin": rest[0]}}, nil

	default:
		return request{}, fmt.Errorf("unknown command %q", cmd)
	}
}

func parseSlot(s string) (int, error) {
	slot, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("slot must be a number, got %q", s)
	}
	return slot, nil
}

func run(req request, device string, wait bool, timeout time.Duration) error {
	var w io.Writer = os.Stdout
	var r io.Reader
	if device != "-" {
		f, err := os.OpenFile(device, os.O_RDWR, 0)
		if err != nil {
			return fmt.Errorf("open device: %w", err)
		}
		defer f.Close()
		w = f
		r = f
	}

	line, err := json.Marshal(req)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s\n", line); err != nil {
		return fmt.Errorf("write command: %w", err)
	}

	if !wait {
		return nil
	}
	if r == nil {
		return fmt.Errorf("-wait needs a real device, not stdout")
	}
	return awaitResult(r, req.CmdID, timeout)
}

func awaitResult(r io.Reader, cmdID string, timeout time.Duration) error {
	deadline := time.After(timeout)
	// Buffered so the scanner goroutine can finish its last send and exit
	// even when we give up on the timeout.
	lines := make(chan []byte, 16)
	go func() {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			line := append([]byte(nil), sc.Bytes()...)
			lines <- line
		}
		close(lines)
	}()

	for {
		select {
		case <-deadline:
			return fmt.Errorf("no cmd_result within %v", timeout)
		case line, ok := <-lines:
			if !ok {
				return fmt.Errorf("device closed before cmd_result")
			}
			var res result
			if err := json.Unmarshal(line, &res); err != nil {
				continue // state/event traffic or noise
			}
			if res.Evt != "cmd_result" || res.CmdID != cmdID {
				continue
			}
			if !res.OK {
				return fmt.Errorf("command rejected: %s", res.Error)
			}
			fmt.Println("ok")
			return nil
		}
	}
}
