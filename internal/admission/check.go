package admission

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"gridcraft.app/internal/protocol"
	"gridcraft.app/internal/world"
)

var (
	ErrCooldown    = errors.New("movement cooldown")
	ErrNotAdjacent = errors.New("target not adjacent")
	ErrNoSelf      = errors.New("local player unknown")
	ErrNotResident = errors.New("target chunk not resident")
	ErrBlocked     = errors.New("target tile blocked")
	ErrEmpty       = errors.New("nothing there")
	ErrEmptyHand   = errors.New("hand is empty")
	ErrNoInput     = errors.New("no direction pressed")
)

// View is the read side of the world that admission needs.
type View interface {
	Self() (world.Player, bool)
	Block(x, z int) (id int, resident bool)
	DropsAt(x, z int) []world.Stack
	Hand() *world.Slot
}

func self(v View) (world.Pos, error) {
	p, ok := v.Self()
	if !ok {
		return world.Pos{}, ErrNoSelf
	}
	return p.Pos(), nil
}

// CheckMove validates a step in direction s and builds the move intent.
func CheckMove(v View, s Side) (protocol.Intent, error) {
	at, err := self(v)
	if err != nil {
		return protocol.Intent{}, err
	}
	to, ok := s.Step(at)
	if !ok {
		return protocol.Intent{}, ErrNotAdjacent
	}
	id, resident := v.Block(to.X, to.Z)
	if !resident {
		return protocol.Intent{}, ErrNotResident
	}
	if id != 0 {
		return protocol.Intent{}, fmt.Errorf("move %s to %d:%d: %w", s, to.X, to.Z, ErrBlocked)
	}
	return protocol.Intent{
		Type: protocol.IntentMove,
		Data: protocol.MoveData{X: to.X, Z: to.Z, Side: string(s)},
	}, nil
}

// CheckBreak requires a solid block exactly one step away.
func CheckBreak(v View, target world.Pos) (protocol.Intent, error) {
	at, err := self(v)
	if err != nil {
		return protocol.Intent{}, err
	}
	s := SideOf(at, target)
	if s == SideUnknown {
		return protocol.Intent{}, ErrNotAdjacent
	}
	id, resident := v.Block(target.X, target.Z)
	if !resident {
		return protocol.Intent{}, ErrNotResident
	}
	if id == 0 {
		return protocol.Intent{}, ErrEmpty
	}
	return protocol.Intent{
		Type: protocol.IntentBreak,
		Data: protocol.BreakData{X: target.X, Z: target.Z, Side: string(s)},
	}, nil
}

// CheckPut requires an empty adjacent tile and something in hand.
func CheckPut(v View, target world.Pos) (protocol.Intent, error) {
	at, err := self(v)
	if err != nil {
		return protocol.Intent{}, err
	}
	s := SideOf(at, target)
	if s == SideUnknown {
		return protocol.Intent{}, ErrNotAdjacent
	}
	id, resident := v.Block(target.X, target.Z)
	if !resident {
		return protocol.Intent{}, ErrNotResident
	}
	if id != 0 {
		return protocol.Intent{}, ErrBlocked
	}
	if h := v.Hand(); h == nil || h.Count <= 0 {
		return protocol.Intent{}, ErrEmptyHand
	}
	return protocol.Intent{
		Type: protocol.IntentPut,
		Data: protocol.PutData{X: target.X, Z: target.Z, Side: string(s)},
	}, nil
}

// CheckTake picks up item id from the player's own tile or an adjacent one.
func CheckTake(v View, target world.Pos, id int) (protocol.Intent, error) {
	at, err := self(v)
	if err != nil {
		return protocol.Intent{}, err
	}
	if target != at && SideOf(at, target) == SideUnknown {
		return protocol.Intent{}, ErrNotAdjacent
	}
	for _, s := range v.DropsAt(target.X, target.Z) {
		if s.ID == id && s.Count > 0 {
			return protocol.Intent{
				Type: protocol.IntentTake,
				Data: protocol.TakeData{X: target.X, Z: target.Z, ID: id},
			}, nil
		}
	}
	return protocol.Intent{}, ErrEmpty
}

// Inventory intents carry a req_id so replies can be matched to requests.

func Swap(from, to int) protocol.Intent {
	return withReqID(protocol.IntentSwap, protocol.SwapData{From: from, To: to})
}

func Transfer(from, to, count int) protocol.Intent {
	return withReqID(protocol.IntentTransfer, protocol.TransferData{From: from, To: to, Count: count})
}

func Away(slot, count int) protocol.Intent {
	return withReqID(protocol.IntentAway, protocol.AwayData{Slot: slot, Count: count})
}

func Crafting(recipe string, count int) protocol.Intent {
	return withReqID(protocol.IntentCrafting, protocol.CraftingData{Recipe: recipe, Count: count})
}

func Smelting(recipe string, count int) protocol.Intent {
	return withReqID(protocol.IntentSmelting, protocol.SmeltingData{Recipe: recipe, Count: count})
}

func withReqID(typ string, data any) protocol.Intent {
	return protocol.Intent{Type: typ, Data: data, ReqID: uuid.NewString()}
}
