package world

import (
	"sort"
	"time"
)

// MaxChatLines bounds the chat log; older lines are dropped first.
const MaxChatLines = 200

type Player struct {
	Nick string
	X, Z int
}

func (p Player) Pos() Pos { return Pos{X: p.X, Z: p.Z} }

type Slot struct {
	ID     int
	Count  int
	Damage *int
}

func (s *Slot) clone() *Slot {
	if s == nil {
		return nil
	}
	c := *s
	if s.Damage != nil {
		d := *s.Damage
		c.Damage = &d
	}
	return &c
}

// BreakProgress tracks the one block currently being mined by the local player.
type BreakProgress struct {
	Block    Pos
	Hardness int
	Progress int
	Broken   bool
}

type ChatLine struct {
	Text string
	At   time.Time
}

// World is the client's view of the server state. It is not safe for
// concurrent use; a single goroutine applies messages and renders frames.
type World struct {
	self    Player
	hasSelf bool

	players   map[string]Player
	chunks    map[string]*Chunk
	drops     map[string][]Stack
	inventory []*Slot
	hand      *Slot
	breaking  *BreakProgress
	chat      []ChatLine
}

func New() *World {
	return &World{
		players: map[string]Player{},
		chunks:  map[string]*Chunk{},
		drops:   map[string][]Stack{},
	}
}

// Self returns the local player; ok is false before the first start message.
func (w *World) Self() (Player, bool) { return w.self, w.hasSelf }

func (w *World) SetSelf(p Player) {
	w.self = p
	w.hasSelf = true
}

func (w *World) Player(nick string) (Player, bool) {
	p, ok := w.players[nick]
	return p, ok
}

// Players returns a copy of the remote player set.
func (w *World) Players() map[string]Player {
	out := make(map[string]Player, len(w.players))
	for k, v := range w.players {
		out[k] = v
	}
	return out
}

func (w *World) UpsertPlayer(p Player) {
	if w.hasSelf && p.Nick == w.self.Nick {
		return
	}
	w.players[p.Nick] = p
}

func (w *World) RemovePlayer(nick string) bool {
	if _, ok := w.players[nick]; !ok {
		return false
	}
	delete(w.players, nick)
	return true
}

func (w *World) ReplacePlayers(ps []Player) {
	w.players = make(map[string]Player, len(ps))
	for _, p := range ps {
		w.UpsertPlayer(p)
	}
}

// PutChunk inserts or replaces a chunk wholesale.
func (w *World) PutChunk(c *Chunk) {
	w.chunks[c.Key()] = c
}

func (w *World) ReplaceChunks(cs []*Chunk) {
	w.chunks = make(map[string]*Chunk, len(cs))
	for _, c := range cs {
		w.PutChunk(c)
	}
}

func (w *World) HasChunk(cx, cz int) bool {
	_, ok := w.chunks[ChunkKey(cx, cz)]
	return ok
}

// ChunkGrid returns a copy of a resident chunk in wire layout.
func (w *World) ChunkGrid(cx, cz int) ([][]int, bool) {
	c, ok := w.chunks[ChunkKey(cx, cz)]
	if !ok {
		return nil, false
	}
	return c.Grid(), true
}

// ChunkKeys lists resident chunk keys in sorted order.
func (w *World) ChunkKeys() []string {
	keys := make([]string, 0, len(w.chunks))
	for k := range w.chunks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ChunkCoords lists resident chunk coordinates ordered by key.
func (w *World) ChunkCoords() [][2]int {
	keys := w.ChunkKeys()
	out := make([][2]int, 0, len(keys))
	for _, k := range keys {
		c := w.chunks[k]
		out = append(out, [2]int{c.CX, c.CZ})
	}
	return out
}

// Block returns the block code at world (x, z). resident is false when the
// containing chunk is not loaded.
func (w *World) Block(x, z int) (id int, resident bool) {
	cx, cz, lx, lz := ToChunk(x, z)
	c, ok := w.chunks[ChunkKey(cx, cz)]
	if !ok {
		return 0, false
	}
	return c.Get(lx, lz), true
}

// SetBlock edits one block. It returns false, leaving the world unchanged,
// when the containing chunk is not resident.
func (w *World) SetBlock(x, z, id int) bool {
	cx, cz, lx, lz := ToChunk(x, z)
	c, ok := w.chunks[ChunkKey(cx, cz)]
	if !ok {
		return false
	}
	c.Set(lx, lz, id)
	return true
}

// Evict drops every resident chunk outside the view window around (cx, cz)
// and returns the evicted keys in sorted order.
func (w *World) Evict(cx, cz int) []string {
	var out []string
	for k, c := range w.chunks {
		if !InWindow(cx, cz, c.CX, c.CZ) {
			out = append(out, k)
			delete(w.chunks, k)
		}
	}
	sort.Strings(out)
	return out
}

func (w *World) Inventory() []*Slot {
	out := make([]*Slot, len(w.inventory))
	for i, s := range w.inventory {
		out[i] = s.clone()
	}
	return out
}

func (w *World) SetInventory(slots []*Slot) {
	w.inventory = make([]*Slot, len(slots))
	for i, s := range slots {
		w.inventory[i] = s.clone()
	}
}

func (w *World) Hand() *Slot { return w.hand.clone() }

func (w *World) SetHand(s *Slot) { w.hand = s.clone() }

func (w *World) BreakProgress() (BreakProgress, bool) {
	if w.breaking == nil {
		return BreakProgress{}, false
	}
	return *w.breaking, true
}

func (w *World) SetBreakProgress(b BreakProgress) {
	w.breaking = &b
}

func (w *World) ClearBreakProgress() {
	w.breaking = nil
}

func (w *World) AppendChat(text string, at time.Time) {
	w.chat = append(w.chat, ChatLine{Text: text, At: at})
	if n := len(w.chat) - MaxChatLines; n > 0 {
		w.chat = append(w.chat[:0:0], w.chat[n:]...)
	}
}

func (w *World) Chat() []ChatLine {
	return append([]ChatLine(nil), w.chat...)
}
