package protocol

// Outbound intent types (client -> server).
const (
	IntentMove     = "move"
	IntentBreak    = "break"
	IntentPut      = "put"
	IntentTake     = "take"
	IntentSwap     = "swap"
	IntentTransfer = "transfer"
	IntentAway     = "away"
	IntentCrafting = "crafting"
	IntentSmelting = "smelting"
)

// Intent is the {type, data} object sent to the server.
type Intent struct {
	Type  string `json:"type"`
	Data  any    `json:"data"`
	ReqID string `json:"req_id,omitempty"`
}

// MoveData targets the adjacent tile the player steps onto.
type MoveData struct {
	X    int    `json:"x"`
	Z    int    `json:"z"`
	Side string `json:"side"`
}

type BreakData struct {
	X    int    `json:"x"`
	Z    int    `json:"z"`
	Side string `json:"side"`
}

type PutData struct {
	X    int    `json:"x"`
	Z    int    `json:"z"`
	Side string `json:"side"`
}

type TakeData struct {
	X  int `json:"x"`
	Z  int `json:"z"`
	ID int `json:"id"`
}

// Slot indexes below use -1 for the hand slot.
const HandSlot = -1

type SwapData struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type TransferData struct {
	From  int `json:"from"`
	To    int `json:"to"`
	Count int `json:"count"`
}

type AwayData struct {
	Slot  int `json:"slot"`
	Count int `json:"count"`
}

type CraftingData struct {
	Recipe string `json:"recipe"`
	Count  int    `json:"count"`
}

type SmeltingData struct {
	Recipe string `json:"recipe"`
	Count  int    `json:"count"`
}
