package lock

// ActionRecord captures the most recent credential attempt.
type ActionRecord struct {
	Method  string
	Success bool
	AtMS    uint32
}

// Snapshot is the state broadcast payload. LockoutRemainMS is meaningful
// only while LockoutActive is set.
type Snapshot struct {
	State           State
	Last            ActionRecord
	LockoutActive   bool
	LockoutRemainMS uint32
}

// UnlockEventData describes one attempt outcome. Slot is -1 when no numbered
// slot applies (master match or failure); UIDHex is empty for PIN attempts.
type UnlockEventData struct {
	Method  string
	Success bool
	Slot    int
	UIDHex  string
	AtMS    uint32
}

// Notifier carries outcomes to the companion controller. Implementations
// exist for the JSON line protocol and the binary frame link; either way the
// calls are fire and forget.
type Notifier interface {
	CmdResult(cmdID string, ok bool, errCode string)
	UnlockEvent(ev UnlockEventData)
	State(snap Snapshot)
}
