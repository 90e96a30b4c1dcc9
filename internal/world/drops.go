package world

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Stack is an item stack lying on a tile.
type Stack struct {
	ID    int
	Count int
}

type DropTile struct {
	Pos    Pos
	Stacks []Stack
}

// AddDrop adds one item to the tile, growing an existing stack of the same id
// or appending a new stack of count 1.
func (w *World) AddDrop(x, z, id int) {
	key := TileKey(x, z)
	stacks := w.drops[key]
	for i := range stacks {
		if stacks[i].ID == id {
			stacks[i].Count++
			return
		}
	}
	w.drops[key] = append(stacks, Stack{ID: id, Count: 1})
}

// ReplaceDrops sets the exact stack list for a tile, preserving order. An
// empty list removes the tile.
func (w *World) ReplaceDrops(x, z int, stacks []Stack) {
	key := TileKey(x, z)
	kept := make([]Stack, 0, len(stacks))
	for _, s := range stacks {
		if s.Count > 0 {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		delete(w.drops, key)
		return
	}
	w.drops[key] = kept
}

func (w *World) ClearDrops() {
	w.drops = map[string][]Stack{}
}

func (w *World) DropsAt(x, z int) []Stack {
	return append([]Stack(nil), w.drops[TileKey(x, z)]...)
}

// DropTiles lists every tile holding drops, ordered by key.
func (w *World) DropTiles() []DropTile {
	keys := make([]string, 0, len(w.drops))
	for k := range w.drops {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]DropTile, 0, len(keys))
	for _, k := range keys {
		p, err := ParseTileKey(k)
		if err != nil {
			continue
		}
		out = append(out, DropTile{Pos: p, Stacks: append([]Stack(nil), w.drops[k]...)})
	}
	return out
}

// ParseTileKey is the inverse of TileKey and ChunkKey.
func ParseTileKey(key string) (Pos, error) {
	a, b, ok := strings.Cut(key, ":")
	if !ok {
		return Pos{}, fmt.Errorf("bad key %q", key)
	}
	x, err := strconv.Atoi(a)
	if err != nil {
		return Pos{}, fmt.Errorf("bad key %q: %w", key, err)
	}
	z, err := strconv.Atoi(b)
	if err != nil {
		return Pos{}, fmt.Errorf("bad key %q: %w", key, err)
	}
	return Pos{X: x, Z: z}, nil
}
