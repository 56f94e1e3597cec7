package protocol

import "encoding/json"

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name,omitempty"`
	// Identity is the address every CALL on this connection acts as.
	Identity string `json:"identity"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	Identity        string `json:"identity"`
	LedgerID        string `json:"ledger_id"`
	Block           uint64 `json:"block"`
}

// CALL (client -> server): one contract view or mutation.
type CallMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	ID              string     `json:"id"`
	Method          string     `json:"method"`
	Params          CallParams `json:"params,omitempty"`
}

type CallParams struct {
	Identity string `json:"identity,omitempty"`
	// Amount is a decimal string in the smallest unit.
	Amount string `json:"amount,omitempty"`
}

// RESULT (server -> client): the answer to a CALL with the same id. A
// mutation answers with its tx hash; the outcome follows as RECEIPT.
type ResultMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	ID              string          `json:"id"`
	OK              bool            `json:"ok"`
	Result          json.RawMessage `json:"result,omitempty"`
	TxHash          string          `json:"tx_hash,omitempty"`
	Code            string          `json:"code,omitempty"`
	Message         string          `json:"message,omitempty"`
}

// RECEIPT (server -> client): confirmation or failure of a submitted mutation.
type ReceiptMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	TxHash          string         `json:"tx_hash"`
	OK              bool           `json:"ok"`
	Block           uint64         `json:"block,omitempty"`
	Events          []ReceiptEvent `json:"events,omitempty"`
	Code            string         `json:"code,omitempty"`
	Reason          string         `json:"reason,omitempty"`
	Message         string         `json:"message,omitempty"`
}

type ReceiptEvent struct {
	Name      string `json:"name"`
	User      string `json:"user"`
	Total     uint8  `json:"total,omitempty"`
	Milestone uint8  `json:"milestone,omitempty"`
	Claimed   uint8  `json:"claimed,omitempty"`
	Amount    string `json:"amount,omitempty"`
}

// Result payloads.

type UintValue struct {
	Value uint64 `json:"value"`
}

// StringValue carries addresses and decimal amounts.
type StringValue struct {
	Value string `json:"value"`
}

type BoolValue struct {
	Value bool `json:"value"`
}

type MilestoneValue struct {
	Milestone uint8 `json:"milestone"`
	Available bool  `json:"available"`
}
