package session

import (
	"encoding/json"

	"github.com/creativecanvas/creativecanvas/backend-go/internal/scene"
)

type Message struct {
	Type    string          `json:"type"`
	Seq     int64           `json:"seq,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	// Client to server
	TypeCmd = "cmd"

	// Server to client
	TypeWelcome = "welcome"
	TypeRender  = "render"
	TypeResult  = "result"
	TypeError   = "error"
	TypeSaved   = "saved"
)

type WelcomePayload struct {
	ClientID  string `json:"clientId"`
	ProjectID string `json:"projectId"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// RenderPayload carries the full draw list of one frame.
type RenderPayload struct {
	Frame    uint64              `json:"frame"`
	Commands []scene.DrawCommand `json:"commands"`
}

type ResultPayload struct {
	Op     string `json:"op"`
	Result any    `json:"result,omitempty"`
}

type ErrorPayload struct {
	Op    string `json:"op,omitempty"`
	Error string `json:"error"`
}

type SavedPayload struct {
	ProjectID string `json:"projectId"`
	Timestamp string `json:"timestamp"`
}

func newMessage(typ string, seq int64, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{Type: typ, Seq: seq, Payload: data}, nil
}
