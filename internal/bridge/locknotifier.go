package bridge

import "github.com/keyfold/lockcore/internal/lock"

// LockNotifier renders lock outcomes into the line-protocol wire shapes.
type LockNotifier struct {
	B *Bridge
}

type wireAction struct {
	Method  string `json:"method"`
	Success bool   `json:"success"`
	AtMS    uint32 `json:"atMs"`
}

type wireLock struct {
	State           string     `json:"state"`
	LastAction      wireAction `json:"lastAction"`
	LockoutRemainMS *uint32    `json:"lockoutRemainMs,omitempty"`
}

type wireTopAction struct {
	Type    string `json:"type"`
	Method  string `json:"method"`
	Success bool   `json:"success"`
	AtMS    uint32 `json:"atMs"`
}

type wireState struct {
	Lock       wireLock      `json:"lock"`
	LastAction wireTopAction `json:"lastAction"`
}

type wireUnlockEvent struct {
	Method  string `json:"method"`
	Success bool   `json:"success"`
	Slot    *int   `json:"slot,omitempty"`
	UIDHex  string `json:"uidHex,omitempty"`
}

func (n LockNotifier) CmdResult(cmdID string, ok bool, errCode string) {
	n.B.SendCmdResult(cmdID, ok, errCode)
}

func (n LockNotifier) UnlockEvent(ev lock.UnlockEventData) {
	data := wireUnlockEvent{
		Method:  ev.Method,
		Success: ev.Success,
		UIDHex:  ev.UIDHex,
	}
	if ev.Slot >= 0 {
		slot := ev.Slot
		data.Slot = &slot
	}
	n.B.SendEvent("lock.unlock", data)
}

func (n LockNotifier) State(snap lock.Snapshot) {
	action := wireAction{
		Method:  snap.Last.Method,
		Success: snap.Last.Success,
		AtMS:    snap.Last.AtMS,
	}
	out := wireState{
		Lock: wireLock{
			State:      snap.State.String(),
			LastAction: action,
		},
		LastAction: wireTopAction{
			Type:    "unlock",
			Method:  action.Method,
			Success: action.Success,
			AtMS:    action.AtMS,
		},
	}
	if snap.LockoutActive {
		remain := snap.LockoutRemainMS
		out.Lock.LockoutRemainMS = &remain
	}
	n.B.SendState(out)
}
