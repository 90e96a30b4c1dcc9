package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"
)

// Digest hashes the canonical world state: self, remote players, chunks,
// drops, inventory, hand and break progress. The chat log is not included.
func (w *World) Digest() string {
	h := sha256.New()
	writeBool(h, w.hasSelf)
	writeString(h, w.self.Nick)
	writeInt(h, w.self.X)
	writeInt(h, w.self.Z)

	nicks := make([]string, 0, len(w.players))
	for n := range w.players {
		nicks = append(nicks, n)
	}
	sort.Strings(nicks)
	writeInt(h, len(nicks))
	for _, n := range nicks {
		p := w.players[n]
		writeString(h, n)
		writeInt(h, p.X)
		writeInt(h, p.Z)
	}

	keys := w.ChunkKeys()
	writeInt(h, len(keys))
	for _, k := range keys {
		d := w.chunks[k].Digest()
		writeString(h, k)
		h.Write(d[:])
	}

	tiles := w.DropTiles()
	writeInt(h, len(tiles))
	for _, t := range tiles {
		writeInt(h, t.Pos.X)
		writeInt(h, t.Pos.Z)
		writeInt(h, len(t.Stacks))
		for _, s := range t.Stacks {
			writeInt(h, s.ID)
			writeInt(h, s.Count)
		}
	}

	writeInt(h, len(w.inventory))
	for _, s := range w.inventory {
		writeSlot(h, s)
	}
	writeSlot(h, w.hand)

	writeBool(h, w.breaking != nil)
	if w.breaking != nil {
		b := w.breaking
		writeInt(h, b.Block.X)
		writeInt(h, b.Block.Z)
		writeInt(h, b.Hardness)
		writeInt(h, b.Progress)
		writeBool(h, b.Broken)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeSlot(h hash.Hash, s *Slot) {
	writeBool(h, s != nil)
	if s == nil {
		return
	}
	writeInt(h, s.ID)
	writeInt(h, s.Count)
	writeBool(h, s.Damage != nil)
	if s.Damage != nil {
		writeInt(h, *s.Damage)
	}
}

func writeInt(h hash.Hash, v int) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(int64(v)))
	h.Write(b[:])
}

func writeBool(h hash.Hash, v bool) {
	if v {
		h.Write([]byte{1})
		return
	}
	h.Write([]byte{0})
}

func writeString(h hash.Hash, s string) {
	writeInt(h, len(s))
	h.Write([]byte(s))
}
