package session

import (
	"fmt"
	"time"

	"gridcraft.app/internal/protocol"
	"gridcraft.app/internal/world"
)

// Apply interprets one server message. Payloads are decoded and validated
// before anything is mutated, so a decode error leaves the world untouched.
func (s *GameSession) Apply(env protocol.Envelope) error {
	if s.fatal {
		return ErrFatal
	}
	now := s.now()
	var err error
	switch env.Type {
	case protocol.TypeStart:
		err = s.applyStart(env, now)
	case protocol.TypePosition:
		err = s.applyPosition(env, now)
	case protocol.TypeBreak:
		err = s.applyBreak(env)
	case protocol.TypeBroken:
		err = s.applyBroken(env)
	case protocol.TypeDrop:
		err = s.applyDrop(env)
	case protocol.TypePut:
		err = s.applyPut(env)
	case protocol.TypeMsg:
		var m protocol.MsgResult
		if err = env.Decode(&m); err == nil {
			s.world.AppendChat(m.Text, now)
		}
	case protocol.TypeInventory:
		var m protocol.InventoryResult
		if err = env.Decode(&m); err == nil {
			s.world.SetInventory(slots(m.Inventory))
			s.world.SetHand(slot(m.Hand))
		}
	case protocol.TypeConnectPlayer:
		var m protocol.ConnectPlayerResult
		if err = env.Decode(&m); err == nil {
			s.world.UpsertPlayer(player(m.Player))
		}
	case protocol.TypeDisconnectPlayer:
		var m protocol.DisconnectPlayerResult
		if err = env.Decode(&m); err == nil {
			s.world.RemovePlayer(m.Player)
		}
	case protocol.TypeError:
		err = s.applyError(env, now)
	default:
		s.unknown[env.Type]++
		s.logger.Printf("ignoring unknown message type %q", env.Type)
		return nil
	}
	if err != nil {
		return err
	}
	if env.ReqID != "" {
		delete(s.pending, env.ReqID)
	}
	s.seq++
	if s.recorder != nil {
		if rerr := s.recorder.Record(s.seq, now, env, s.world.Digest()); rerr != nil {
			s.logger.Printf("journal: %v", rerr)
		}
	}
	if s.fatal {
		return ErrFatal
	}
	return nil
}

func (s *GameSession) applyStart(env protocol.Envelope, now time.Time) error {
	var m protocol.StartResult
	if err := env.Decode(&m); err != nil {
		return err
	}
	chunks, err := buildChunks(m.Chunks)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	s.world.SetSelf(player(m.MySelf))
	ps := make([]world.Player, 0, len(m.Players))
	for _, p := range m.Players {
		ps = append(ps, player(p))
	}
	s.world.ReplacePlayers(ps)
	s.world.ReplaceChunks(chunks)
	s.world.SetInventory(slots(m.Inventory))
	s.world.SetHand(slot(m.Hand))
	s.world.ClearDrops()
	for _, t := range m.Drops {
		s.world.ReplaceDrops(t.X, t.Z, stacksFromSlots(t.Items))
	}
	s.world.ClearBreakProgress()
	if m.ServerTime != 0 {
		s.offset = time.UnixMilli(m.ServerTime).Sub(now)
		s.offsetKnown = true
	}
	s.inGame = true
	s.texturesDirty = true
	return nil
}

func (s *GameSession) applyPosition(env protocol.Envelope, now time.Time) error {
	var m protocol.PositionResult
	if err := env.Decode(&m); err != nil {
		return err
	}
	me, hasSelf := s.world.Self()
	if !hasSelf || m.Player.Nick != me.Nick {
		if m.Escape {
			s.world.RemovePlayer(m.Player.Nick)
		} else {
			s.world.UpsertPlayer(player(m.Player))
		}
		return nil
	}

	chunks, err := buildChunks(m.Chunks)
	if err != nil {
		return fmt.Errorf("position: %w", err)
	}
	s.world.ClearBreakProgress()
	s.world.SetSelf(player(m.Player))
	for _, p := range m.Players {
		s.world.UpsertPlayer(player(p))
	}
	for nick := range m.EscapePlayers {
		s.world.RemovePlayer(nick)
	}
	for _, c := range chunks {
		s.world.PutChunk(c)
	}
	for _, t := range m.Drops {
		s.world.ReplaceDrops(t.X, t.Z, stacksFromSlots(t.Items))
	}
	cx, cz := world.ChunkOf(player(m.Player).Pos())
	if evicted := s.world.Evict(cx, cz); len(evicted) > 0 {
		s.logger.Printf("evicted %d chunks around %s", len(evicted), world.ChunkKey(cx, cz))
	}
	s.gate.CanMoveAfter = s.canMoveAfter(m, now)
	s.texturesDirty = true
	return nil
}

// canMoveAfter translates the server deadline into local clock terms.
func (s *GameSession) canMoveAfter(m protocol.PositionResult, now time.Time) time.Time {
	if m.AvailableAfter == 0 {
		return now
	}
	if m.ServerTime != 0 {
		s.offset = time.UnixMilli(m.ServerTime).Sub(now)
		s.offsetKnown = true
		return now.Add(time.Duration(m.AvailableAfter-m.ServerTime) * time.Millisecond)
	}
	return time.UnixMilli(m.AvailableAfter).Add(-s.offset)
}

func (s *GameSession) applyBreak(env protocol.Envelope) error {
	var m protocol.BreakResult
	if err := env.Decode(&m); err != nil {
		return err
	}
	hand, handPresent, err := protocol.OptionalSlot(m.Hand)
	if err != nil {
		return fmt.Errorf("break: hand: %w", err)
	}
	pos := world.Pos{X: m.Block.X, Z: m.Block.Z}
	if !m.Broken {
		// Progress is only tracked for a resident, non-empty block. A late
		// report for a block that is gone or out of view is dropped.
		if id, ok := s.world.Block(pos.X, pos.Z); ok && id != 0 {
			s.world.SetBreakProgress(world.BreakProgress{
				Block:    pos,
				Hardness: m.Hardness,
				Progress: m.Progress,
			})
		}
	} else {
		s.editBlock(pos, 0)
		if m.Dropped != nil {
			s.world.AddDrop(pos.X, pos.Z, *m.Dropped)
		}
		s.world.ClearBreakProgress()
	}
	if handPresent {
		s.world.SetHand(slot(hand))
	}
	s.texturesDirty = true
	return nil
}

func (s *GameSession) applyBroken(env protocol.Envelope) error {
	var m protocol.BrokenResult
	if err := env.Decode(&m); err != nil {
		return err
	}
	pos := world.Pos{X: m.Block.X, Z: m.Block.Z}
	if b, ok := s.world.BreakProgress(); ok && b.Block == pos {
		s.world.ClearBreakProgress()
	}
	s.editBlock(pos, 0)
	if m.Dropped != nil {
		s.world.AddDrop(pos.X, pos.Z, *m.Dropped)
	}
	s.texturesDirty = true
	return nil
}

func (s *GameSession) applyDrop(env protocol.Envelope) error {
	var m protocol.DropResult
	if err := env.Decode(&m); err != nil {
		return err
	}
	stacks := make([]world.Stack, 0, len(m.Items))
	for _, it := range m.Items {
		stacks = append(stacks, world.Stack{ID: it.ID, Count: it.Count})
	}
	s.world.ReplaceDrops(m.Block.X, m.Block.Z, stacks)
	return nil
}

func (s *GameSession) applyPut(env protocol.Envelope) error {
	var m protocol.PutResult
	if err := env.Decode(&m); err != nil {
		return err
	}
	hand, handPresent, err := protocol.OptionalSlot(m.Hand)
	if err != nil {
		return fmt.Errorf("put: hand: %w", err)
	}
	s.editBlock(world.Pos{X: m.Block.X, Z: m.Block.Z}, m.ID)
	if handPresent {
		s.world.SetHand(slot(hand))
	}
	s.texturesDirty = true
	return nil
}

func (s *GameSession) applyError(env protocol.Envelope, now time.Time) error {
	var m protocol.ErrorResult
	if err := env.Decode(&m); err != nil {
		return err
	}
	n := Notice{Code: m.ErrorCode, Description: m.Description, At: now, Fatal: protocol.IsFatalCode(m.ErrorCode)}
	if !protocol.IsKnownCode(m.ErrorCode) {
		s.logger.Printf("unrecognized error code %q", m.ErrorCode)
	}
	s.notices = append(s.notices, n)
	if n.Fatal {
		s.fatal = true
		s.inGame = false
		s.logger.Printf("fatal: %s: %s", m.ErrorCode, m.Description)
	}
	return nil
}

// editBlock is a logged no-op when the chunk was already evicted.
func (s *GameSession) editBlock(p world.Pos, id int) {
	if !s.world.SetBlock(p.X, p.Z, id) {
		s.logger.Printf("%v: edit %s -> %d", ErrNotResident, world.TileKey(p.X, p.Z), id)
	}
}

func buildChunks(in map[string]protocol.Chunk) ([]*world.Chunk, error) {
	out := make([]*world.Chunk, 0, len(in))
	// The map key is informational; the payload coordinates are authoritative.
	for _, c := range in {
		ch, err := world.ChunkFromGrid(c.X, c.Z, c.Chunk)
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, nil
}

func player(p protocol.Player) world.Player {
	return world.Player{Nick: p.Nick, X: p.X, Z: p.Z}
}

func slot(s *protocol.Slot) *world.Slot {
	if s == nil {
		return nil
	}
	return &world.Slot{ID: s.ID, Count: s.Count, Damage: s.Damage}
}

func slots(in []*protocol.Slot) []*world.Slot {
	out := make([]*world.Slot, len(in))
	for i, s := range in {
		out[i] = slot(s)
	}
	return out
}

func stacksFromSlots(in []protocol.Slot) []world.Stack {
	out := make([]world.Stack, 0, len(in))
	for _, s := range in {
		out = append(out, world.Stack{ID: s.ID, Count: s.Count})
	}
	return out
}
