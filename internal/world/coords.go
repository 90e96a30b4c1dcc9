package world

import "strconv"

const (
	// ChunkSize is the edge length of a chunk in tiles.
	ChunkSize = 5
	// ViewRadius is how many chunks are kept resident on each side of the player's chunk.
	ViewRadius = 2
)

type Pos struct {
	X int
	Z int
}

func FloorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func Mod(a, b int) int {
	// b > 0
	return ((a % b) + b) % b
}

// ToChunk splits world coordinates into chunk coordinates and local offsets.
func ToChunk(x, z int) (cx, cz, lx, lz int) {
	return FloorDiv(x, ChunkSize), FloorDiv(z, ChunkSize), Mod(x, ChunkSize), Mod(z, ChunkSize)
}

// FromChunk is the inverse of ToChunk.
func FromChunk(cx, cz, lx, lz int) (x, z int) {
	return cx*ChunkSize + lx, cz*ChunkSize + lz
}

// ChunkOf returns the chunk coordinates containing a world position.
func ChunkOf(p Pos) (cx, cz int) {
	return FloorDiv(p.X, ChunkSize), FloorDiv(p.Z, ChunkSize)
}

func ChunkKey(cx, cz int) string {
	return strconv.Itoa(cx) + ":" + strconv.Itoa(cz)
}

func TileKey(x, z int) string {
	return strconv.Itoa(x) + ":" + strconv.Itoa(z)
}

// Window returns the keys of the resident chunk window centered on (cx, cz),
// row by row from the north-west corner.
func Window(cx, cz int) []string {
	out := make([]string, 0, (2*ViewRadius+1)*(2*ViewRadius+1))
	for dz := -ViewRadius; dz <= ViewRadius; dz++ {
		for dx := -ViewRadius; dx <= ViewRadius; dx++ {
			out = append(out, ChunkKey(cx+dx, cz+dz))
		}
	}
	return out
}

// InWindow reports whether chunk (x, z) is within the view window around (cx, cz).
func InWindow(cx, cz, x, z int) bool {
	return abs(x-cx) <= ViewRadius && abs(z-cz) <= ViewRadius
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
