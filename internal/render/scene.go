package render

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"gridcraft.app/internal/assets"
)

type Kind int

const (
	KindBlock Kind = iota + 1
	KindDrop
	KindPlayer
	KindNameplate
	KindBorder
	KindHand
)

func (k Kind) String() string {
	switch k {
	case KindBlock:
		return "block"
	case KindDrop:
		return "drop"
	case KindPlayer:
		return "player"
	case KindNameplate:
		return "nameplate"
	case KindBorder:
		return "border"
	case KindHand:
		return "hand"
	default:
		return "unknown"
	}
}

// Node is what the orchestrator asks the scene to draw. Material is an encoded
// texture; Mesh is nil for unit cubes and flat sprites.
type Node struct {
	Kind     Kind
	Name     string
	Position mgl32.Vec3
	Scale    float32
	Material []byte
	Mesh     *assets.Mesh
	Label    string
}

type Handle uint64

// Scene is the rendering collaborator. Handles stay valid until Remove.
type Scene interface {
	Add(n Node) Handle
	Move(h Handle, pos mgl32.Vec3)
	Rotate(h Handle, yaw float32)
	SetMaterial(h Handle, material []byte)
	SetVisible(h Handle, visible bool)
	Remove(h Handle)
	Render() error
}

// HeadlessNode is a node as the headless scene last saw it.
type HeadlessNode struct {
	Node
	Yaw     float32
	Visible bool
}

// HeadlessScene keeps the scene graph in memory and counts frames. It backs
// the CLI tools and tests.
type HeadlessScene struct {
	next   Handle
	nodes  map[Handle]*HeadlessNode
	frames int
}

func NewHeadlessScene() *HeadlessScene {
	return &HeadlessScene{nodes: map[Handle]*HeadlessNode{}}
}

func (s *HeadlessScene) Add(n Node) Handle {
	s.next++
	s.nodes[s.next] = &HeadlessNode{Node: n, Visible: true}
	return s.next
}

func (s *HeadlessScene) Move(h Handle, pos mgl32.Vec3) {
	if n, ok := s.nodes[h]; ok {
		n.Position = pos
	}
}

func (s *HeadlessScene) Rotate(h Handle, yaw float32) {
	if n, ok := s.nodes[h]; ok {
		n.Yaw = yaw
	}
}

func (s *HeadlessScene) SetMaterial(h Handle, material []byte) {
	if n, ok := s.nodes[h]; ok {
		n.Material = material
	}
}

func (s *HeadlessScene) SetVisible(h Handle, visible bool) {
	if n, ok := s.nodes[h]; ok {
		n.Visible = visible
	}
}

func (s *HeadlessScene) Remove(h Handle) { delete(s.nodes, h) }

func (s *HeadlessScene) Render() error {
	s.frames++
	return nil
}

func (s *HeadlessScene) Frames() int { return s.frames }

func (s *HeadlessScene) Node(h Handle) (HeadlessNode, bool) {
	n, ok := s.nodes[h]
	if !ok {
		return HeadlessNode{}, false
	}
	return *n, true
}

// Nodes lists live nodes of one kind in handle order.
func (s *HeadlessScene) Nodes(k Kind) []HeadlessNode {
	hs := make([]Handle, 0, len(s.nodes))
	for h, n := range s.nodes {
		if n.Kind == k {
			hs = append(hs, h)
		}
	}
	sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
	out := make([]HeadlessNode, 0, len(hs))
	for _, h := range hs {
		out = append(out, *s.nodes[h])
	}
	return out
}

func (s *HeadlessScene) Len() int { return len(s.nodes) }
