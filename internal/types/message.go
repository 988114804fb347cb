package types

import "encoding/json"

// Client-to-bridge and bridge-to-client WebSocket message types.
const (
	MsgInput        = "input"
	MsgResize       = "resize"
	MsgOutput       = "output"
	MsgReplayDone   = "replay-done"
	MsgSessionEnded = "session-ended"
)

// ClientMessage is a structured inbound message from a viewer. Raw frames
// that do not parse as this shape are never forwarded to the terminal.
type ClientMessage struct {
	Type string      `json:"type"`
	Data string      `json:"data,omitempty"`
	Cols json.Number `json:"cols,omitempty"`
	Rows json.Number `json:"rows,omitempty"`
}

// ServerMessage is an outbound message to a viewer.
type ServerMessage struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
}
