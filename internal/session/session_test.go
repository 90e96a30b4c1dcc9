package session

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gridcraft.app/internal/admission"
	"gridcraft.app/internal/protocol"
	"gridcraft.app/internal/world"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

type fakeSender struct{ sent []protocol.Intent }

func (f *fakeSender) Send(in protocol.Intent) error {
	f.sent = append(f.sent, in)
	return nil
}

func emptyGrid() [][]int {
	g := make([][]int, world.ChunkSize)
	for i := range g {
		g[i] = make([]int, world.ChunkSize)
	}
	return g
}

func windowChunks(cx, cz int) map[string]protocol.Chunk {
	out := map[string]protocol.Chunk{}
	for dx := -world.ViewRadius; dx <= world.ViewRadius; dx++ {
		for dz := -world.ViewRadius; dz <= world.ViewRadius; dz++ {
			out[world.ChunkKey(cx+dx, cz+dz)] = protocol.Chunk{Chunk: emptyGrid(), X: cx + dx, Z: cz + dz}
		}
	}
	return out
}

func env(t *testing.T, typ string, v any) protocol.Envelope {
	t.Helper()
	e, err := protocol.NewEnvelope(typ, v)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	return e
}

func startMsg() protocol.StartResult {
	chunks := windowChunks(0, 0)
	c := chunks["0:0"]
	c.Chunk[3][3] = 1
	c.Chunk[1][1] = 2
	chunks["0:0"] = c
	return protocol.StartResult{
		MySelf:    protocol.Player{Nick: "me", X: 2, Z: 3},
		Players:   map[string]protocol.Player{"bob": {Nick: "bob", X: 4, Z: 4}},
		Chunks:    chunks,
		Inventory: []*protocol.Slot{{ID: 1, Count: 5}, nil, nil},
		Drops:     []protocol.DropTile{{X: 0, Z: 0, Items: []protocol.Slot{{ID: 2, Count: 3}}}},
		Hand:      &protocol.Slot{ID: 11, Count: 1},
	}
}

func started(t *testing.T) (*GameSession, *fakeClock, *fakeSender) {
	t.Helper()
	clk := &fakeClock{t: time.Unix(1700000000, 0)}
	snd := &fakeSender{}
	s := New(Options{Now: clk.Now, Sender: snd})
	if err := s.Apply(env(t, protocol.TypeStart, startMsg())); err != nil {
		t.Fatalf("apply start: %v", err)
	}
	return s, clk, snd
}

func TestBreakScenario(t *testing.T) {
	s, _, _ := started(t)
	dropped := 7
	err := s.Apply(env(t, protocol.TypeBreak, protocol.BreakResult{
		Block: protocol.Block{X: 3, Z: 3}, Hardness: 10, Progress: 10, Broken: true, Dropped: &dropped,
	}))
	if err != nil {
		t.Fatalf("apply break: %v", err)
	}
	w := s.World()
	if id, ok := w.Block(3, 3); !ok || id != 0 {
		t.Fatalf("block (3,3) = %d resident=%v, want 0", id, ok)
	}
	drops := w.DropsAt(3, 3)
	if len(drops) != 1 || drops[0] != (world.Stack{ID: 7, Count: 1}) {
		t.Fatalf("unexpected drops at 3:3: %+v", drops)
	}
	if _, ok := w.BreakProgress(); ok {
		t.Fatalf("break progress should be empty")
	}
}

func TestStartIsIdempotent(t *testing.T) {
	s, _, _ := started(t)
	once := s.World().Digest()
	if err := s.Apply(env(t, protocol.TypeStart, startMsg())); err != nil {
		t.Fatalf("apply start again: %v", err)
	}
	if got := s.World().Digest(); got != once {
		t.Fatalf("second start changed world: %s != %s", got, once)
	}
	if len(s.World().ChunkKeys()) != 25 {
		t.Fatalf("expected 25 chunks, got %d", len(s.World().ChunkKeys()))
	}
	if _, ok := s.World().Player("me"); ok {
		t.Fatalf("local player must not appear among remote players")
	}
}

func TestLateBreakDoesNotResurrectProgress(t *testing.T) {
	s, _, _ := started(t)
	progress := protocol.BreakResult{Block: protocol.Block{X: 2, Z: 2}, Hardness: 10, Progress: 4}
	s.World().SetBlock(2, 2, 3)
	if err := s.Apply(env(t, protocol.TypeBreak, progress)); err != nil {
		t.Fatalf("apply break: %v", err)
	}
	if b, ok := s.World().BreakProgress(); !ok || b.Progress != 4 {
		t.Fatalf("expected tracked progress, got %+v %v", b, ok)
	}
	done := progress
	done.Progress, done.Broken = 10, true
	if err := s.Apply(env(t, protocol.TypeBreak, done)); err != nil {
		t.Fatalf("apply broken break: %v", err)
	}
	late := progress
	late.Progress = 7
	if err := s.Apply(env(t, protocol.TypeBreak, late)); err != nil {
		t.Fatalf("apply late break: %v", err)
	}
	if b, ok := s.World().BreakProgress(); ok {
		t.Fatalf("late break re-created progress: %+v", b)
	}
}

func TestBreakOutsideWindowIsNotTracked(t *testing.T) {
	s, _, _ := started(t)
	if _, ok := s.World().Block(100, 3); ok {
		t.Fatalf("(100,3) should not be resident")
	}
	err := s.Apply(env(t, protocol.TypeBreak, protocol.BreakResult{
		Block: protocol.Block{X: 100, Z: 3}, Hardness: 10, Progress: 4,
		Hand: json.RawMessage(`{"id":4,"count":2}`),
	}))
	if err != nil {
		t.Fatalf("apply break: %v", err)
	}
	if b, ok := s.World().BreakProgress(); ok {
		t.Fatalf("progress stored for a non-resident block: %+v", b)
	}
	if h := s.World().Hand(); h == nil || h.ID != 4 || h.Count != 2 {
		t.Fatalf("hand not updated: %+v", h)
	}
}

func TestBrokenClearsMatchingTarget(t *testing.T) {
	s, _, _ := started(t)
	if err := s.Apply(env(t, protocol.TypeBreak, protocol.BreakResult{Block: protocol.Block{X: 1, Z: 1}, Hardness: 5, Progress: 1})); err != nil {
		t.Fatalf("apply break: %v", err)
	}
	if err := s.Apply(env(t, protocol.TypeBroken, protocol.BrokenResult{Block: protocol.Block{X: 3, Z: 3}})); err != nil {
		t.Fatalf("apply broken: %v", err)
	}
	if _, ok := s.World().BreakProgress(); !ok {
		t.Fatalf("broken on another block must keep progress")
	}
	if err := s.Apply(env(t, protocol.TypeBroken, protocol.BrokenResult{Block: protocol.Block{X: 1, Z: 1}})); err != nil {
		t.Fatalf("apply broken: %v", err)
	}
	if _, ok := s.World().BreakProgress(); ok {
		t.Fatalf("broken on the tracked block must clear progress")
	}
	if id, _ := s.World().Block(1, 1); id != 0 {
		t.Fatalf("block not zeroed")
	}

	// Far outside the resident window: a logged no-op.
	before := s.World().Digest()
	if err := s.Apply(env(t, protocol.TypeBroken, protocol.BrokenResult{Block: protocol.Block{X: 500, Z: 500}})); err != nil {
		t.Fatalf("apply broken outside window: %v", err)
	}
	if s.World().Digest() != before {
		t.Fatalf("edit outside window changed the world")
	}
}

func TestPositionSequenceKeepsExactWindow(t *testing.T) {
	s, _, _ := started(t)
	path := []protocol.Player{
		{Nick: "me", X: 3, Z: 3},
		{Nick: "me", X: 5, Z: 3},
		{Nick: "me", X: 12, Z: -4},
		{Nick: "me", X: -8, Z: -9},
		{Nick: "me", X: -7, Z: -9},
	}
	for _, p := range path {
		cx, cz := world.ChunkOf(world.Pos{X: p.X, Z: p.Z})
		msg := protocol.PositionResult{Player: p, Chunks: windowChunks(cx, cz)}
		if err := s.Apply(env(t, protocol.TypePosition, msg)); err != nil {
			t.Fatalf("apply position: %v", err)
		}
		got := s.World().ChunkKeys()
		want := map[string]bool{}
		for _, k := range world.Window(cx, cz) {
			want[k] = true
		}
		if len(got) != len(want) {
			t.Fatalf("at %d:%d resident %d chunks, want %d", p.X, p.Z, len(got), len(want))
		}
		for _, k := range got {
			if !want[k] {
				t.Fatalf("at %d:%d unexpected resident chunk %s", p.X, p.Z, k)
			}
		}
	}
}

func TestPositionClearsBreakAndGatesMovement(t *testing.T) {
	s, clk, _ := started(t)
	s.World().SetBreakProgress(world.BreakProgress{Block: world.Pos{X: 3, Z: 3}, Hardness: 10, Progress: 2})

	// Server clock runs 10s ahead of ours.
	serverNow := clk.t.Add(10 * time.Second).UnixMilli()
	msg := protocol.PositionResult{
		Player:         protocol.Player{Nick: "me", X: 2, Z: 2},
		ServerTime:     serverNow,
		AvailableAfter: serverNow + 300,
	}
	if err := s.Apply(env(t, protocol.TypePosition, msg)); err != nil {
		t.Fatalf("apply position: %v", err)
	}
	if _, ok := s.World().BreakProgress(); ok {
		t.Fatalf("local move must clear break progress")
	}
	want := clk.t.Add(300 * time.Millisecond)
	if got := s.Gate().CanMoveAfter; !got.Equal(want) {
		t.Fatalf("CanMoveAfter = %v, want %v", got, want)
	}
	if off, ok := s.ClockOffset(); !ok || off != 10*time.Second {
		t.Fatalf("clock offset = %v %v", off, ok)
	}

	// Without server_time the remembered offset is used.
	clk.t = clk.t.Add(time.Second)
	msg.ServerTime = 0
	msg.AvailableAfter = clk.t.Add(10*time.Second + 200*time.Millisecond).UnixMilli()
	if err := s.Apply(env(t, protocol.TypePosition, msg)); err != nil {
		t.Fatalf("apply position: %v", err)
	}
	want = clk.t.Add(200 * time.Millisecond)
	if got := s.Gate().CanMoveAfter; !got.Equal(want) {
		t.Fatalf("CanMoveAfter = %v, want %v", got, want)
	}
	if ok, _ := s.Gate().Allow(clk.t.Add(199 * time.Millisecond)); ok {
		t.Fatalf("move admitted before deadline")
	}
}

func TestRemotePlayers(t *testing.T) {
	s, _, _ := started(t)
	if err := s.Apply(env(t, protocol.TypePosition, protocol.PositionResult{Player: protocol.Player{Nick: "bob", X: 1, Z: 4}})); err != nil {
		t.Fatalf("apply remote position: %v", err)
	}
	if p, ok := s.World().Player("bob"); !ok || p.X != 1 || p.Z != 4 {
		t.Fatalf("remote position not applied: %+v", p)
	}
	if err := s.Apply(env(t, protocol.TypePosition, protocol.PositionResult{Player: protocol.Player{Nick: "bob"}, Escape: true})); err != nil {
		t.Fatalf("apply escape: %v", err)
	}
	if _, ok := s.World().Player("bob"); ok {
		t.Fatalf("escaped player still present")
	}
	if err := s.Apply(env(t, protocol.TypeConnectPlayer, protocol.ConnectPlayerResult{Player: protocol.Player{Nick: "ann", X: 0, Z: 1}})); err != nil {
		t.Fatalf("apply connect: %v", err)
	}
	if err := s.Apply(env(t, protocol.TypeDisconnectPlayer, protocol.DisconnectPlayerResult{Player: "ann"})); err != nil {
		t.Fatalf("apply disconnect: %v", err)
	}
	if len(s.World().Players()) != 0 {
		t.Fatalf("expected no remote players, got %v", s.World().Players())
	}
}

func TestPutHandSemantics(t *testing.T) {
	s, _, _ := started(t)
	put := protocol.Envelope{Type: protocol.TypePut, Result: json.RawMessage(`{"block":{"x":2,"z":2},"id":11}`)}
	if err := s.Apply(put); err != nil {
		t.Fatalf("apply put: %v", err)
	}
	if h := s.World().Hand(); h == nil || h.ID != 11 {
		t.Fatalf("absent hand must leave hand unchanged, got %+v", h)
	}
	put.Result = json.RawMessage(`{"block":{"x":2,"z":1},"id":11,"hand":null}`)
	if err := s.Apply(put); err != nil {
		t.Fatalf("apply put: %v", err)
	}
	if h := s.World().Hand(); h != nil {
		t.Fatalf("explicit null hand must clear it, got %+v", h)
	}
	if id, _ := s.World().Block(2, 1); id != 11 {
		t.Fatalf("put block not applied")
	}
}

func TestDropReplaceAndDecodeFailure(t *testing.T) {
	s, _, _ := started(t)
	if err := s.Apply(env(t, protocol.TypeDrop, protocol.DropResult{Block: protocol.Block{X: 0, Z: 0}})); err != nil {
		t.Fatalf("apply drop: %v", err)
	}
	if len(s.World().DropsAt(0, 0)) != 0 {
		t.Fatalf("empty drop list must clear the tile")
	}
	before := s.World().Digest()
	bad := protocol.Envelope{Type: protocol.TypeStart, Result: json.RawMessage(`{"my_self":"oops"}`)}
	if err := s.Apply(bad); err == nil {
		t.Fatalf("expected decode error")
	}
	if s.World().Digest() != before {
		t.Fatalf("failed decode mutated the world")
	}
}

func TestUnknownTypeIgnored(t *testing.T) {
	s, _, _ := started(t)
	before := s.World().Digest()
	if err := s.Apply(protocol.Envelope{Type: "weather", Result: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("unknown type must not error: %v", err)
	}
	if s.UnknownMessages()["weather"] != 1 || s.World().Digest() != before {
		t.Fatalf("unknown type not ignored cleanly")
	}
}

func TestChatAndNotices(t *testing.T) {
	s, clk, _ := started(t)
	if err := s.Apply(env(t, protocol.TypeMsg, protocol.MsgResult{Text: "hello"})); err != nil {
		t.Fatalf("apply msg: %v", err)
	}
	if chat := s.World().Chat(); len(chat) != 1 || chat[0].Text != "hello" || !chat[0].At.Equal(clk.t) {
		t.Fatalf("chat mismatch: %+v", chat)
	}
	if err := s.Apply(env(t, protocol.TypeError, protocol.ErrorResult{ErrorCode: protocol.ErrNotAdjacent, Description: "too far"})); err != nil {
		t.Fatalf("apply error: %v", err)
	}
	if n := s.Notices(); len(n) != 1 || n[0].Fatal || n[0].Description != "too far" {
		t.Fatalf("notice mismatch: %+v", n)
	}
	if !s.InGame() {
		t.Fatalf("non-fatal error must keep the session in game")
	}
}

func TestSessionConflictIsFatal(t *testing.T) {
	s, _, snd := started(t)
	err := s.Apply(env(t, protocol.TypeError, protocol.ErrorResult{ErrorCode: protocol.ErrSessionConflict, Description: "opened elsewhere"}))
	if !errors.Is(err, ErrFatal) {
		t.Fatalf("expected ErrFatal, got %v", err)
	}
	if !s.Fatal() || s.InGame() {
		t.Fatalf("session must be fatal and out of game")
	}
	if err := s.Send(admission.Swap(0, 1)); !errors.Is(err, ErrFatal) {
		t.Fatalf("send after fatal: %v", err)
	}
	if len(snd.sent) != 0 {
		t.Fatalf("nothing should reach the transport")
	}
	if err := s.Apply(env(t, protocol.TypeMsg, protocol.MsgResult{Text: "x"})); !errors.Is(err, ErrFatal) {
		t.Fatalf("apply after fatal: %v", err)
	}
}

func TestPendingRequestsResolve(t *testing.T) {
	s, _, snd := started(t)
	in := admission.Swap(0, protocol.HandSlot)
	if err := s.Send(in); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(snd.sent) != 1 || s.Pending()[in.ReqID] != protocol.IntentSwap {
		t.Fatalf("pending not tracked: %v", s.Pending())
	}
	reply := env(t, protocol.TypeInventory, protocol.InventoryResult{Inventory: []*protocol.Slot{nil, nil, {ID: 1, Count: 5}}})
	reply.ReqID = in.ReqID
	if err := s.Apply(reply); err != nil {
		t.Fatalf("apply inventory: %v", err)
	}
	if len(s.Pending()) != 0 {
		t.Fatalf("reply did not resolve pending request")
	}
	if inv := s.World().Inventory(); len(inv) != 3 || inv[2] == nil || s.World().Hand() != nil {
		t.Fatalf("inventory not replaced: %+v", inv)
	}
}

func TestTexturesUpdateFlag(t *testing.T) {
	s, _, _ := started(t)
	if !s.TexturesUpdateNeeded() {
		t.Fatalf("start must mark textures dirty")
	}
	if s.TexturesUpdateNeeded() {
		t.Fatalf("flag must reset after it is read")
	}
	if err := s.Apply(env(t, protocol.TypeMsg, protocol.MsgResult{Text: "x"})); err != nil {
		t.Fatalf("apply msg: %v", err)
	}
	if s.TexturesUpdateNeeded() {
		t.Fatalf("chat must not mark textures dirty")
	}
}
