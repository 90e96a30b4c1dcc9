package protocol

import (
	"encoding/json"
	"fmt"
)

// Server message types.
const (
	TypeStart            = "start"
	TypePosition         = "position"
	TypeBreak            = "break"
	TypeBroken           = "broken"
	TypeDrop             = "drop"
	TypePut              = "put"
	TypeMsg              = "msg"
	TypeInventory        = "inventory"
	TypeConnectPlayer    = "connect_player"
	TypeDisconnectPlayer = "disconnect_player"
	TypeError            = "error"
)

// Envelope is one decoded inbound frame. Result stays raw until the state
// machine routes it by Type.
type Envelope struct {
	Type   string          `json:"type"`
	Result json.RawMessage `json:"result"`
	ReqID  string          `json:"req_id,omitempty"`
}

func DecodeEnvelope(b []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return e, err
	}
	if e.Type == "" {
		return e, fmt.Errorf("envelope: missing type")
	}
	return e, nil
}

// NewEnvelope marshals result into an envelope. Used by tests and the replay tool.
func NewEnvelope(typ string, result any) (Envelope, error) {
	b, err := json.Marshal(result)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: typ, Result: b}, nil
}

// Decode unmarshals the envelope result into v.
func (e Envelope) Decode(v any) error {
	if len(e.Result) == 0 {
		return fmt.Errorf("%s: empty result", e.Type)
	}
	if err := json.Unmarshal(e.Result, v); err != nil {
		return fmt.Errorf("%s: %w", e.Type, err)
	}
	return nil
}
