package session

import "time"

// Flow names.
const (
	FlowLoad     = "load"
	FlowIdentity = "identity"
	FlowSolve    = "solve"
	FlowClaim    = "claim"
	FlowFund     = "fund"
	FlowShuffle  = "shuffle"
)

// Results.
const (
	ResultOK           = "ok"
	ResultOKStale      = "ok_stale"
	ResultRejected     = "rejected"
	ResultBusy         = "busy"
	ResultReadFailure  = "read_failure"
	ResultWriteFailure = "write_failure"
	ResultError        = "error"
)

// Event is the durable record of one flow outcome.
type Event struct {
	ID        string    `json:"id"`
	At        time.Time `json:"at"`
	SessionID string    `json:"session_id"`
	Identity  string    `json:"identity"`
	Flow      string    `json:"flow"`
	Level     int       `json:"level"`
	Result    string    `json:"result"`
	Code      string    `json:"code,omitempty"`
	Message   string    `json:"message,omitempty"`
	TxHash    string    `json:"tx_hash,omitempty"`
	Block     uint64    `json:"block,omitempty"`
	Completed uint8     `json:"completed"`
	Claimed   uint8     `json:"claimed"`
	Moves     int       `json:"moves,omitempty"`
}

// EventSink receives every flow outcome. Implementations must not block.
type EventSink interface {
	WriteEvent(Event) error
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(Event) error

func (f SinkFunc) WriteEvent(e Event) error { return f(e) }
