package admission

import "gridcraft.app/internal/world"

// Side is the direction from an actor to an adjacent target tile.
type Side string

const (
	SideUnknown Side = ""
	SideUp      Side = "up"
	SideDown    Side = "down"
	SideLeft    Side = "left"
	SideRight   Side = "right"
)

// SideOf maps the offset between actor and target to a side. Only tiles one
// step away along a single axis have a side; everything else is SideUnknown.
func SideOf(actor, target world.Pos) Side {
	dx := target.X - actor.X
	dz := target.Z - actor.Z
	switch {
	case dx == 0 && dz == -1:
		return SideUp
	case dx == 0 && dz == 1:
		return SideDown
	case dx == -1 && dz == 0:
		return SideLeft
	case dx == 1 && dz == 0:
		return SideRight
	}
	return SideUnknown
}

// Delta returns the grid step for a side.
func (s Side) Delta() (dx, dz int, ok bool) {
	switch s {
	case SideUp:
		return 0, -1, true
	case SideDown:
		return 0, 1, true
	case SideLeft:
		return -1, 0, true
	case SideRight:
		return 1, 0, true
	}
	return 0, 0, false
}

// Step returns the tile next to p in direction s.
func (s Side) Step(p world.Pos) (world.Pos, bool) {
	dx, dz, ok := s.Delta()
	if !ok {
		return p, false
	}
	return world.Pos{X: p.X + dx, Z: p.Z + dz}, true
}

func ParseSide(v string) Side {
	switch Side(v) {
	case SideUp, SideDown, SideLeft, SideRight:
		return Side(v)
	}
	return SideUnknown
}
