package realtime

import (
	"encoding/json"
)

// Client and server message types other than task events.
const (
	TypeRegister   = "register"
	TypeRegistered = "registered"
	TypeConnected  = "connected"
	TypeError      = "error"
)

// clientMessage is any message a client may send.
type clientMessage struct {
	Type   string `json:"type"`
	UserID string `json:"userId,omitempty"`
}

// controlFrame is a non-event server message.
type controlFrame struct {
	Type     string `json:"type"`
	UserID   string `json:"userId,omitempty"`
	HandleID string `json:"handleId,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (f controlFrame) marshal() []byte {
	// Only string fields, so Marshal cannot fail.
	b, _ := json.Marshal(f)
	return b
}

func errorFrame(message string) []byte {
	return controlFrame{Type: TypeError, Error: message}.marshal()
}
