package protocol

import (
	"bytes"
	"encoding/json"
)

type Player struct {
	Nick string `json:"nick"`
	X    int    `json:"x"`
	Z    int    `json:"z"`
}

// Chunk is delivered as a 5x5 grid indexed chunk[lx][lz].
type Chunk struct {
	Chunk [][]int `json:"chunk"`
	X     int     `json:"x"`
	Z     int     `json:"z"`
}

type Block struct {
	X int `json:"x"`
	Z int `json:"z"`
}

type Slot struct {
	ID     int  `json:"id"`
	Count  int  `json:"count"`
	Damage *int `json:"damage,omitempty"`
}

type Drop struct {
	ID    int `json:"id"`
	Count int `json:"count"`
	X     int `json:"x,omitempty"`
	Z     int `json:"z,omitempty"`
}

type DropTile struct {
	X     int    `json:"x"`
	Z     int    `json:"z"`
	Items []Slot `json:"items"`
}

// START (server -> client)
type StartResult struct {
	MySelf     Player            `json:"my_self"`
	Players    map[string]Player `json:"players"`
	Chunks     map[string]Chunk  `json:"chunks"`
	Inventory  []*Slot           `json:"inventory"`
	Drops      []DropTile        `json:"drops"`
	Hand       *Slot             `json:"hand"`
	ServerTime int64             `json:"server_time,omitempty"` // epoch ms
}

// POSITION (server -> client)
type PositionResult struct {
	Player         Player            `json:"player"`
	Players        map[string]Player `json:"players,omitempty"`
	EscapePlayers  map[string]Player `json:"escape_players,omitempty"`
	Chunks         map[string]Chunk  `json:"chunks,omitempty"`
	Escape         bool              `json:"escape,omitempty"`
	Drops          []DropTile        `json:"drops,omitempty"`
	AvailableAfter int64             `json:"available_after,omitempty"` // server epoch ms
	ServerTime     int64             `json:"server_time,omitempty"`     // server epoch ms
}

// BREAK (server -> client)
type BreakResult struct {
	Block    Block           `json:"block"`
	Hardness int             `json:"hardness"`
	Progress int             `json:"progress"`
	Broken   bool            `json:"broken"`
	Dropped  *int            `json:"dropped"`
	Hand     json.RawMessage `json:"hand,omitempty"`
}

// BROKEN (server -> client): someone else finished breaking a block.
type BrokenResult struct {
	Block    Block `json:"block"`
	Hardness int   `json:"hardness"`
	Progress int   `json:"progress"`
	Dropped  *int  `json:"dropped,omitempty"`
}

// DROP (server -> client): full replacement of one tile's stacks.
type DropResult struct {
	Block Block  `json:"block"`
	Items []Drop `json:"items"`
}

// PUT (server -> client)
type PutResult struct {
	Block Block           `json:"block"`
	ID    int             `json:"id"`
	Hand  json.RawMessage `json:"hand,omitempty"`
}

type MsgResult struct {
	Text string `json:"text"`
}

type InventoryResult struct {
	Inventory []*Slot `json:"inventory"`
	Hand      *Slot   `json:"hand"`
}

type ConnectPlayerResult struct {
	Player Player `json:"player"`
}

type DisconnectPlayerResult struct {
	Player string `json:"player"`
}

type ErrorResult struct {
	ErrorCode   string `json:"error_code"`
	Description string `json:"description"`
}

// OptionalSlot decodes a hand field that may be absent, null, or a slot.
// present=false means the server did not mention the hand at all.
func OptionalSlot(raw json.RawMessage) (slot *Slot, present bool, err error) {
	if len(raw) == 0 {
		return nil, false, nil
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, true, nil
	}
	var s Slot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, true, err
	}
	return &s, true, nil
}
