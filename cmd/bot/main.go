package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"time"

	"gridcraft.app/internal/admission"
	"gridcraft.app/internal/render"
	"gridcraft.app/internal/session"
	"gridcraft.app/internal/settings"
	"gridcraft.app/internal/transport/ws"
)

// parseDirs reads a comma separated list of sides such as "up,left".
func parseDirs(v string) ([]admission.Side, error) {
	var out []admission.Side
	for _, f := range strings.Split(v, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		side := admission.ParseSide(f)
		if side == admission.SideUnknown {
			return nil, fmt.Errorf("unknown direction %q", f)
		}
		out = append(out, side)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no directions in %q", v)
	}
	return out, nil
}

func main() {
	var (
		backend = flag.String("backend", "http://localhost:8080", "backend base url")
		token   = flag.String("token", os.Getenv("GC_TOKEN"), "session token")
		every   = flag.Duration("every", 2*time.Second, "how often to pick a new direction")
		dirList = flag.String("dirs", "up,down,left,right", "directions to pick from")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	if *token == "" {
		logger.Fatalf("missing -token")
	}
	dirs, err := parseDirs(*dirList)
	if err != nil {
		logger.Fatalf("-dirs: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	conn := ws.NewClient(*backend, logger)
	if err := conn.Connect(ctx, *token); err != nil {
		logger.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	sess := session.New(session.Options{Sender: conn, Logger: logger})
	orch := render.NewOrchestrator(sess, render.Options{Settings: settings.Defaults(), Logger: logger})
	loop := render.NewLoop(sess, orch, time.Second/20, logger)

	go walk(ctx, loop, dirs, *every, logger)

	if err := loop.Run(ctx, conn.Inbound()); err != nil && ctx.Err() == nil {
		logger.Printf("stopped: %v", err)
	}
}

// walk presses a random one of dirs every tick of d and reports chat now and then.
func walk(ctx context.Context, loop *render.Loop, dirs []admission.Side, d time.Duration, logger *log.Logger) {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	t := time.NewTicker(d)
	defer t.Stop()
	seen := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		side := dirs[r.Intn(len(dirs))]
		loop.Submit(func(o *render.Orchestrator) {
			o.Input().Press(side)
			w := o.Session().World()
			chat := w.Chat()
			for _, line := range chat[min(seen, len(chat)):] {
				logger.Printf("chat: %s", line.Text)
			}
			seen = len(chat)
			if me, ok := w.Self(); ok {
				logger.Printf("at %d:%d heading %s, moves=%d", me.X, me.Z, side, o.Moves())
			}
		})
	}
}
