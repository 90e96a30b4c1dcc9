package admission

import (
	"time"

	"gridcraft.app/internal/protocol"
)

// Gate holds the earliest local time at which the next move may be sent.
type Gate struct {
	CanMoveAfter time.Time
}

// Allow reports whether a move is admissible at now and, if not, how long
// remains until it is.
func (g Gate) Allow(now time.Time) (ok bool, cooldown time.Duration) {
	if now.Before(g.CanMoveAfter) {
		return false, g.CanMoveAfter.Sub(now)
	}
	return true, 0
}

// Optimistic pushes the deadline forward right after a dispatch so the same
// key is not re-sent before the server answers.
func (g *Gate) Optimistic(now time.Time, d time.Duration) {
	if t := now.Add(d); t.After(g.CanMoveAfter) {
		g.CanMoveAfter = t
	}
}

// Input holds the direction currently pressed. Releasing another key does
// not clear it; pressing a new one replaces it.
type Input struct {
	pressed Side
}

func (in *Input) Press(s Side) {
	if s == SideUnknown {
		return
	}
	in.pressed = s
}

func (in *Input) Release(s Side) {
	if in.pressed == s {
		in.pressed = SideUnknown
	}
}

func (in *Input) Pressed() (Side, bool) {
	return in.pressed, in.pressed != SideUnknown
}

// NextMove returns the move intent for the pressed direction if the cooldown
// has elapsed and the destination is passable.
func NextMove(g Gate, now time.Time, in *Input, v View) (protocol.Intent, error) {
	s, ok := in.Pressed()
	if !ok {
		return protocol.Intent{}, ErrNoInput
	}
	if ok, _ := g.Allow(now); !ok {
		return protocol.Intent{}, ErrCooldown
	}
	return CheckMove(v, s)
}
