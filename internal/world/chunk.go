package world

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

type Chunk struct {
	CX, CZ int
	blocks [ChunkSize * ChunkSize]int // x fastest, then z

	dirty bool
	hash  [32]byte
}

func NewChunk(cx, cz int) *Chunk {
	return &Chunk{CX: cx, CZ: cz, dirty: true}
}

// ChunkFromGrid builds a chunk from a server grid indexed grid[lx][lz].
func ChunkFromGrid(cx, cz int, grid [][]int) (*Chunk, error) {
	if len(grid) != ChunkSize {
		return nil, fmt.Errorf("chunk %s: want %d columns, got %d", ChunkKey(cx, cz), ChunkSize, len(grid))
	}
	c := NewChunk(cx, cz)
	for lx, col := range grid {
		if len(col) != ChunkSize {
			return nil, fmt.Errorf("chunk %s: column %d has %d cells", ChunkKey(cx, cz), lx, len(col))
		}
		for lz, b := range col {
			c.blocks[index(lx, lz)] = b
		}
	}
	return c, nil
}

func (c *Chunk) Key() string { return ChunkKey(c.CX, c.CZ) }

func index(lx, lz int) int {
	return lx + lz*ChunkSize
}

func (c *Chunk) Get(lx, lz int) int {
	return c.blocks[index(lx, lz)]
}

func (c *Chunk) Set(lx, lz int, b int) {
	i := index(lx, lz)
	if c.blocks[i] == b {
		return
	}
	c.blocks[i] = b
	c.dirty = true
}

// Grid returns the chunk in the wire layout grid[lx][lz].
func (c *Chunk) Grid() [][]int {
	out := make([][]int, ChunkSize)
	for lx := range out {
		out[lx] = make([]int, ChunkSize)
		for lz := range out[lx] {
			out[lx][lz] = c.Get(lx, lz)
		}
	}
	return out
}

func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		h := sha256.New()
		var tmp [8]byte
		for _, v := range c.blocks {
			binary.LittleEndian.PutUint64(tmp[:], uint64(int64(v)))
			h.Write(tmp[:])
		}
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}
