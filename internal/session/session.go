package session

import (
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"gridcraft.app/internal/admission"
	"gridcraft.app/internal/protocol"
	"gridcraft.app/internal/world"
)

var (
	// ErrFatal is returned once the server reported a session conflict.
	ErrFatal       = errors.New("session: fatal session conflict")
	ErrNoTransport = errors.New("session: no transport")
	// ErrNotResident marks an edit aimed at a chunk that is not loaded. Apply
	// logs it and carries on.
	ErrNotResident = errors.New("session: chunk not resident")
)

// Sender is the outbound half of the transport.
type Sender interface {
	Send(in protocol.Intent) error
}

// Recorder receives every applied envelope with the resulting world digest.
type Recorder interface {
	Record(seq uint64, at time.Time, env protocol.Envelope, digest string) error
}

type Options struct {
	Now      func() time.Time
	Sender   Sender
	Logger   *log.Logger
	Recorder Recorder
}

// Notice is an application error surfaced to the player.
type Notice struct {
	Code        string
	Description string
	At          time.Time
	Fatal       bool
}

// GameSession owns the world model and is its only writer. All methods must
// be called from the goroutine that runs the game loop.
type GameSession struct {
	world    *world.World
	now      func() time.Time
	sender   Sender
	logger   *log.Logger
	recorder Recorder

	seq     uint64
	inGame  bool
	fatal   bool
	notices []Notice

	gate          admission.Gate
	offset        time.Duration // server clock minus local clock
	offsetKnown   bool
	texturesDirty bool

	unknown map[string]int
	pending map[string]string
}

func New(opts Options) *GameSession {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	return &GameSession{
		world:    world.New(),
		now:      opts.Now,
		sender:   opts.Sender,
		logger:   opts.Logger,
		recorder: opts.Recorder,
		unknown:  map[string]int{},
		pending:  map[string]string{},
	}
}

// World exposes the model for reading. Callers must not mutate it.
func (s *GameSession) World() *world.World { return s.world }

func (s *GameSession) InGame() bool { return s.inGame && !s.fatal }

// Leave ends play; the loop stops at its next tick.
func (s *GameSession) Leave() { s.inGame = false }

func (s *GameSession) Fatal() bool { return s.fatal }

func (s *GameSession) Notices() []Notice {
	return append([]Notice(nil), s.notices...)
}

// Gate returns the current movement gate.
func (s *GameSession) Gate() admission.Gate { return s.gate }

// MarkDispatched applies the optimistic cooldown after a move was sent.
func (s *GameSession) MarkDispatched(now time.Time, d time.Duration) {
	s.gate.Optimistic(now, d)
}

// TexturesUpdateNeeded reports and clears the block material dirty flag.
func (s *GameSession) TexturesUpdateNeeded() bool {
	v := s.texturesDirty
	s.texturesDirty = false
	return v
}

// ClockOffset is the last observed server-minus-local clock difference.
func (s *GameSession) ClockOffset() (time.Duration, bool) { return s.offset, s.offsetKnown }

// UnknownMessages counts ignored envelopes per type.
func (s *GameSession) UnknownMessages() map[string]int {
	out := make(map[string]int, len(s.unknown))
	for k, v := range s.unknown {
		out[k] = v
	}
	return out
}

// Pending lists outstanding req_id correlations by intent type.
func (s *GameSession) Pending() map[string]string {
	out := make(map[string]string, len(s.pending))
	for k, v := range s.pending {
		out[k] = v
	}
	return out
}

// Send forwards an intent to the transport. It refuses once the session is fatal.
func (s *GameSession) Send(in protocol.Intent) error {
	if s.fatal {
		return ErrFatal
	}
	if s.sender == nil {
		return ErrNoTransport
	}
	if err := s.sender.Send(in); err != nil {
		return fmt.Errorf("send %s: %w", in.Type, err)
	}
	if in.ReqID != "" {
		s.pending[in.ReqID] = in.Type
	}
	return nil
}
