package assets

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"sync/atomic"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/go-gl/mathgl/mgl32"
)

type MeshOptions struct {
	Width     int
	Height    int
	Scale     float32
	Threshold uint8 // minimum alpha for a pixel to hide its neighbour's side face
}

func DefaultMeshOptions() MeshOptions {
	return MeshOptions{Width: 16, Height: 16, Scale: 0.4 / 16, Threshold: 128}
}

func (o MeshOptions) key() string {
	return fmt.Sprintf("%dx%d/%g/%d", o.Width, o.Height, o.Scale, o.Threshold)
}

// Mesh is an indexed triangle list; every face has its own four vertices.
type Mesh struct {
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	UVs       []mgl32.Vec2
	Indices   []uint32
}

func (m *Mesh) Faces() int { return len(m.Indices) / 6 }

// BakeItemMesh extrudes a sprite into one voxel per pixel with any alpha.
// Front and back faces are always emitted; a side face only where the
// neighbouring pixel is below opts.Threshold or the sprite edge is reached. The sprite is sampled
// on an opts.Width x opts.Height grid, image row 0 at the top.
func BakeItemMesh(img image.Image, opts MeshOptions) *Mesh {
	w, h, s := opts.Width, opts.Height, opts.Scale
	b := img.Bounds()
	alpha := func(x, y int) uint8 {
		if x < 0 || y < 0 || x >= w || y >= h {
			return 0
		}
		px := b.Min.X + x*b.Dx()/w
		py := b.Min.Y + y*b.Dy()/h
		return color.NRGBAModel.Convert(img.At(px, py)).(color.NRGBA).A
	}
	solid := func(x, y int) bool { return alpha(x, y) >= opts.Threshold }

	m := &Mesh{}
	zf, zb := float32(0), -s
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if alpha(x, y) == 0 {
				continue
			}
			x0 := float32(x-w/2) * s
			x1 := x0 + s
			yt := float32(h/2-y) * s
			yb := yt - s
			u0, u1 := float32(x)/float32(w), float32(x+1)/float32(w)
			v0, v1 := 1-float32(y)/float32(h), 1-float32(y+1)/float32(h)
			uv := [4]mgl32.Vec2{{u0, v1}, {u1, v1}, {u1, v0}, {u0, v0}}

			m.quad(mgl32.Vec3{0, 0, 1}, uv,
				mgl32.Vec3{x0, yb, zf}, mgl32.Vec3{x1, yb, zf}, mgl32.Vec3{x1, yt, zf}, mgl32.Vec3{x0, yt, zf})
			m.quad(mgl32.Vec3{0, 0, -1}, uv,
				mgl32.Vec3{x1, yb, zb}, mgl32.Vec3{x0, yb, zb}, mgl32.Vec3{x0, yt, zb}, mgl32.Vec3{x1, yt, zb})
			if !solid(x+1, y) {
				m.quad(mgl32.Vec3{1, 0, 0}, uv,
					mgl32.Vec3{x1, yb, zf}, mgl32.Vec3{x1, yb, zb}, mgl32.Vec3{x1, yt, zb}, mgl32.Vec3{x1, yt, zf})
			}
			if !solid(x-1, y) {
				m.quad(mgl32.Vec3{-1, 0, 0}, uv,
					mgl32.Vec3{x0, yb, zb}, mgl32.Vec3{x0, yb, zf}, mgl32.Vec3{x0, yt, zf}, mgl32.Vec3{x0, yt, zb})
			}
			if !solid(x, y-1) {
				m.quad(mgl32.Vec3{0, 1, 0}, uv,
					mgl32.Vec3{x0, yt, zf}, mgl32.Vec3{x1, yt, zf}, mgl32.Vec3{x1, yt, zb}, mgl32.Vec3{x0, yt, zb})
			}
			if !solid(x, y+1) {
				m.quad(mgl32.Vec3{0, -1, 0}, uv,
					mgl32.Vec3{x0, yb, zb}, mgl32.Vec3{x1, yb, zb}, mgl32.Vec3{x1, yb, zf}, mgl32.Vec3{x0, yb, zf})
			}
		}
	}
	return m
}

// quad appends four counter-clockwise corners as two triangles.
func (m *Mesh) quad(n mgl32.Vec3, uv [4]mgl32.Vec2, a, b, c, d mgl32.Vec3) {
	base := uint32(len(m.Positions))
	m.Positions = append(m.Positions, a, b, c, d)
	m.Normals = append(m.Normals, n, n, n, n)
	m.UVs = append(m.UVs, uv[:]...)
	m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
}

// MeshCache bakes each distinct sprite at most once per option set.
type MeshCache struct {
	cache *ristretto.Cache[string, *Mesh]
	bakes atomic.Int64
}

func NewMeshCache() (*MeshCache, error) {
	c, err := ristretto.NewCache[string, *Mesh](&ristretto.Config[string, *Mesh]{
		NumCounters: 10000,
		MaxCost:     64 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &MeshCache{cache: c}, nil
}

// Get returns the mesh for blob, baking it on first use. The key is derived
// from the blob's content, not its name.
func (c *MeshCache) Get(blob []byte, opts MeshOptions) *Mesh {
	sum := sha256.Sum256(blob)
	key := hex.EncodeToString(sum[:]) + "|" + opts.key()
	if m, ok := c.cache.Get(key); ok {
		return m
	}
	m := BakeItemMesh(Decode(blob), opts)
	c.bakes.Add(1)
	cost := int64(len(m.Positions)*32 + len(m.Indices)*4 + 1)
	c.cache.Set(key, m, cost)
	c.cache.Wait()
	return m
}

// Bakes counts how many meshes were actually generated.
func (c *MeshCache) Bakes() int { return int(c.bakes.Load()) }

func (c *MeshCache) Close() { c.cache.Close() }
