// Package runtime drives the presentation goroutine: draining finished
// chunks and stepping chunk visibility at frame and fixed rates.
package runtime

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/shariarpapon/everime-world-generator/internal/sim/master"
	"github.com/shariarpapon/everime-world-generator/internal/sim/visibility"
)

// Stepper is the per-phase streaming hook; *visibility.Streamer satisfies it.
type Stepper interface {
	Tick(phase visibility.Phase)
}

type Config struct {
	FrameInterval time.Duration
	FixedInterval time.Duration

	// GenerateOnStart queues one generation before the first frame.
	GenerateOnStart bool
}

// Loop owns every call that must stay on the presentation goroutine. Other
// goroutines reach it only through Regenerate.
type Loop struct {
	cfg      Config
	master   *master.Master
	streamer Stepper
	log      *log.Logger

	regen  chan struct{}
	stop   chan struct{}
	frames atomic.Uint64
	fixed  atomic.Uint64
}

func New(cfg Config, m *master.Master, streamer Stepper, logger *log.Logger) *Loop {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = time.Second / 60
	}
	if cfg.FixedInterval <= 0 {
		cfg.FixedInterval = time.Second / 50
	}
	l := &Loop{
		cfg:      cfg,
		master:   m,
		streamer: streamer,
		log:      logger,
		regen:    make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
	if cfg.GenerateOnStart {
		l.regen <- struct{}{}
	}
	return l
}

// Regenerate accepts at most one pending request; senders should not block.
func (l *Loop) Regenerate() chan<- struct{} { return l.regen }

func (l *Loop) Frames() uint64     { return l.frames.Load() }
func (l *Loop) FixedSteps() uint64 { return l.fixed.Load() }
func (l *Loop) Stop()              { close(l.stop) }

func (l *Loop) Run(ctx context.Context) error {
	frame := time.NewTicker(l.cfg.FrameInterval)
	defer frame.Stop()
	fixed := time.NewTicker(l.cfg.FixedInterval)
	defer fixed.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stop:
			return nil
		case <-l.regen:
			if err := l.master.GenerateWorld(ctx); err != nil {
				l.log.Printf("generate world: %v", err)
			}
		case <-fixed.C:
			l.FixedStep()
		case <-frame.C:
			l.Frame()
		}
	}
}

// Frame drains the current run, then steps the Update and LateUpdate phases.
func (l *Loop) Frame() {
	l.master.Drain()
	if l.streamer != nil {
		l.streamer.Tick(visibility.PhaseUpdate)
		l.streamer.Tick(visibility.PhaseLateUpdate)
	}
	l.frames.Add(1)
}

func (l *Loop) FixedStep() {
	if l.streamer != nil {
		l.streamer.Tick(visibility.PhaseFixedUpdate)
	}
	l.fixed.Add(1)
}
