package render

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"gridcraft.app/internal/protocol"
	"gridcraft.app/internal/session"
)

// ErrInboundClosed ends Run when the transport goes away.
var ErrInboundClosed = errors.New("render: inbound closed")

// Loop is the single goroutine that owns the session: it applies inbound
// envelopes in order and ticks the orchestrator at the frame rate.
type Loop struct {
	sess     *session.GameSession
	orch     *Orchestrator
	interval time.Duration
	now      func() time.Time
	log      *log.Logger
	cmds     chan func(*Orchestrator)
	frames   int
}

func NewLoop(s *session.GameSession, o *Orchestrator, interval time.Duration, logger *log.Logger) *Loop {
	if interval <= 0 {
		interval = time.Second / 60
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Loop{
		sess:     s,
		orch:     o,
		interval: interval,
		now:      time.Now,
		log:      logger,
		cmds:     make(chan func(*Orchestrator), 64),
	}
}

// Submit queues fn to run on the loop goroutine, e.g. an input press. It
// reports false when the queue is full.
func (l *Loop) Submit(fn func(*Orchestrator)) bool {
	select {
	case l.cmds <- fn:
		return true
	default:
		return false
	}
}

// Frames counts ticks that reached the orchestrator.
func (l *Loop) Frames() int { return l.frames }

// Run blocks until ctx ends, inbound closes, the session turns fatal, or play
// stops after having started. In the last case it returns nil and a new call
// to Run restarts the loop. Before the first start message ticks are idle.
func (l *Loop) Run(ctx context.Context, inbound <-chan protocol.Envelope) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	played := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.cmds:
			fn(l.orch)
		case env, ok := <-inbound:
			if !ok {
				return ErrInboundClosed
			}
			if err := l.sess.Apply(env); err != nil {
				if errors.Is(err, session.ErrFatal) {
					l.log.Printf("stopping: %v", err)
					return err
				}
				l.log.Printf("apply %s: %v", env.Type, err)
			}
		case <-ticker.C:
			if !l.sess.InGame() {
				if played {
					l.log.Printf("left the game after %d frames", l.frames)
					return nil
				}
				continue
			}
			played = true
			l.frames++
			if err := l.orch.Tick(l.now()); err != nil {
				l.log.Printf("frame: %v", err)
			}
		}
	}
}
