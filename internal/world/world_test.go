package world

import (
	"testing"
	"time"
)

func TestToChunkRoundTrip(t *testing.T) {
	for x := -23; x <= 23; x++ {
		for z := -23; z <= 23; z++ {
			cx, cz, lx, lz := ToChunk(x, z)
			if lx < 0 || lx >= ChunkSize || lz < 0 || lz >= ChunkSize {
				t.Fatalf("local offset out of range for (%d,%d): %d,%d", x, z, lx, lz)
			}
			gx, gz := FromChunk(cx, cz, lx, lz)
			if gx != x || gz != z {
				t.Fatalf("round trip (%d,%d) -> (%d,%d,%d,%d) -> (%d,%d)", x, z, cx, cz, lx, lz, gx, gz)
			}
		}
	}
	cx, cz, lx, lz := ToChunk(-1, -5)
	if cx != -1 || cz != -1 || lx != 4 || lz != 0 {
		t.Fatalf("unexpected split of (-1,-5): %d,%d,%d,%d", cx, cz, lx, lz)
	}
}

func TestWindowHas25Keys(t *testing.T) {
	keys := Window(-1, 3)
	if len(keys) != 25 {
		t.Fatalf("expected 25 keys, got %d", len(keys))
	}
	seen := map[string]bool{}
	for _, k := range keys {
		if seen[k] {
			t.Fatalf("duplicate key %s", k)
		}
		seen[k] = true
	}
	if !seen["-3:1"] || !seen["1:5"] || seen["2:3"] {
		t.Fatalf("unexpected window: %v", keys)
	}
}

func fill(w *World, cx0, cz0, cx1, cz1 int) {
	for cx := cx0; cx <= cx1; cx++ {
		for cz := cz0; cz <= cz1; cz++ {
			w.PutChunk(NewChunk(cx, cz))
		}
	}
}

func TestEvictKeepsOnlyWindow(t *testing.T) {
	w := New()
	fill(w, -5, -5, 5, 5)
	evicted := w.Evict(1, -1)
	if len(evicted) != 121-25 {
		t.Fatalf("expected %d evicted, got %d", 121-25, len(evicted))
	}
	got := w.ChunkKeys()
	want := map[string]bool{}
	for _, k := range Window(1, -1) {
		want[k] = true
	}
	if len(got) != len(want) {
		t.Fatalf("resident %d, want %d", len(got), len(want))
	}
	for _, k := range got {
		if !want[k] {
			t.Fatalf("unexpected resident chunk %s", k)
		}
	}
}

func TestSetBlockRequiresResidentChunk(t *testing.T) {
	w := New()
	w.PutChunk(NewChunk(-1, 0))
	if !w.SetBlock(-1, 2, 5) {
		t.Fatalf("expected edit in resident chunk")
	}
	if id, ok := w.Block(-1, 2); !ok || id != 5 {
		t.Fatalf("block mismatch: id=%d ok=%v", id, ok)
	}
	before := w.Digest()
	if w.SetBlock(7, 7, 1) {
		t.Fatalf("expected edit outside resident chunks rejected")
	}
	if w.Digest() != before {
		t.Fatalf("rejected edit changed the world")
	}
}

func TestChunkFromGridLayout(t *testing.T) {
	grid := make([][]int, ChunkSize)
	for lx := range grid {
		grid[lx] = make([]int, ChunkSize)
	}
	grid[1][3] = 9
	c, err := ChunkFromGrid(0, 0, grid)
	if err != nil {
		t.Fatalf("ChunkFromGrid: %v", err)
	}
	if c.Get(1, 3) != 9 || c.Get(3, 1) != 0 {
		t.Fatalf("grid must be indexed [lx][lz]")
	}
	if _, err := ChunkFromGrid(0, 0, grid[:4]); err == nil {
		t.Fatalf("expected short grid rejected")
	}
}

func TestDrops(t *testing.T) {
	w := New()
	w.AddDrop(3, 3, 7)
	w.AddDrop(3, 3, 7)
	w.AddDrop(3, 3, 2)
	got := w.DropsAt(3, 3)
	if len(got) != 2 || got[0] != (Stack{ID: 7, Count: 2}) || got[1] != (Stack{ID: 2, Count: 1}) {
		t.Fatalf("unexpected stacks: %+v", got)
	}
	w.ReplaceDrops(3, 3, []Stack{{ID: 2, Count: 4}})
	if got := w.DropsAt(3, 3); len(got) != 1 || got[0].Count != 4 {
		t.Fatalf("replace mismatch: %+v", got)
	}
	w.ReplaceDrops(3, 3, nil)
	if len(w.DropTiles()) != 0 {
		t.Fatalf("expected empty tile removed")
	}
}

func TestChatIsCapped(t *testing.T) {
	w := New()
	for i := 0; i < MaxChatLines+15; i++ {
		w.AppendChat("line", time.Unix(int64(i), 0))
	}
	chat := w.Chat()
	if len(chat) != MaxChatLines {
		t.Fatalf("expected %d lines, got %d", MaxChatLines, len(chat))
	}
	if chat[0].At.Unix() != 15 {
		t.Fatalf("expected oldest lines dropped first, got %v", chat[0].At)
	}
}

func TestInventoryViewsAreCopies(t *testing.T) {
	w := New()
	w.SetInventory([]*Slot{{ID: 1, Count: 3}, nil})
	inv := w.Inventory()
	inv[0].Count = 99
	if w.Inventory()[0].Count != 3 {
		t.Fatalf("inventory view aliased internal state")
	}
}
