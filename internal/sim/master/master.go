// Package master runs world generation: a background pass that produces chunk
// geometry and spawn sites, and a per-tick drain that hands them to the
// presentation goroutine.
package master

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/shariarpapon/everime-world-generator/internal/sim/world"
)

// noiseOffsetRange bounds the random offset that places each world at a
// different spot of the noise plane.
const noiseOffsetRange = 9_999_999

type EventSink interface {
	WriteEvent(v any) error
}

type Options struct {
	Logger *log.Logger
	Events EventSink

	// OnWorld is called on the presentation goroutine whenever the current
	// world changes; nil means the world was cleared.
	OnWorld func(w *world.World)

	// OnComplete is called once per run, on the presentation goroutine.
	OnComplete func(s Summary)
}

type Summary struct {
	RunID        uint64
	World        *world.World
	Seed         string
	CombinedSeed int64
	Chunks       int
	Spawns       []SpawnObject
	Faults       int
	Digest       [32]byte
	Started      time.Time
	Completed    time.Time
}

// Info is a point-in-time view that is safe to read from any goroutine.
type Info struct {
	State             State
	RunID             uint64
	Seed              string
	CombinedSeed      int64
	WorldSizeInChunks int
	ChunkSize         int
	HeightMultiplier  float32
	WorldOffset       mgl32.Vec3
	ChunksReady       int
	ChunksTotal       int
}

type Master struct {
	presenter world.Presenter
	opts      Options
	log       *log.Logger

	mu       sync.Mutex
	settings *world.WorldSettings
	current  *run
	nextRun  uint64
	faults   []Fault

	state atomic.Int32
	wg    sync.WaitGroup
}

func New(settings *world.WorldSettings, presenter world.Presenter, opts Options) *Master {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[master] ", log.LstdFlags|log.Lmicroseconds)
	}
	return &Master{
		presenter: presenter,
		opts:      opts,
		log:       logger,
		settings:  settings,
	}
}

func (m *Master) State() State { return State(m.state.Load()) }

// Running reports whether a run has started and not yet drained every chunk.
func (m *Master) Running() bool { return m.State() != StateIdle }

func (m *Master) Settings() *world.WorldSettings {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		return nil
	}
	return m.settings.Clone()
}

// SetSettings replaces the settings used by the next GenerateWorld.
func (m *Master) SetSettings(s *world.WorldSettings) {
	m.mu.Lock()
	m.settings = s
	m.mu.Unlock()
}

func (m *Master) World() *world.World {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	return m.current.world
}

func (m *Master) Info() Info {
	m.mu.Lock()
	r := m.current
	m.mu.Unlock()
	info := Info{State: m.State()}
	if r == nil {
		return info
	}
	s := r.world.Settings()
	info.RunID = r.id
	info.Seed = s.Seed
	info.CombinedSeed = r.world.CombinedSeed()
	info.WorldSizeInChunks = s.WorldSizeInChunks
	info.ChunkSize = s.ChunkSize
	info.HeightMultiplier = s.Height.Multiplier
	info.WorldOffset = s.WorldOffset
	info.ChunksReady = int(r.drained.Load())
	info.ChunksTotal = r.total
	return info
}

// Faults returns the most recent faults, oldest first.
func (m *Master) Faults() []Fault {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Fault(nil), m.faults...)
}

// GenerateWorld discards the current world and starts a new background run.
// It must be called from the presentation goroutine.
func (m *Master) GenerateWorld(ctx context.Context) error {
	m.mu.Lock()
	settings := m.settings
	m.mu.Unlock()
	if settings == nil {
		m.recordFault(nil, Fault{Kind: FaultConfig, Message: "world creation failed: assign world settings"})
		return ErrNoSettings
	}

	m.ClearExistingWorld()

	m.mu.Lock()
	notes := settings.Correct()
	if settings.UseRandomSeed {
		settings.RandomizeSeed()
	}
	s := settings.Clone()
	m.nextRun++
	id := m.nextRun
	m.mu.Unlock()

	seed := s.CombinedSeed()
	rng := rand.New(rand.NewSource(seed))
	offset := mgl32.Vec2{
		float32(int(rng.Float64()*2*noiseOffsetRange - noiseOffsetRange)),
		float32(int(rng.Float64()*2*noiseOffsetRange - noiseOffsetRange)),
	}
	w := world.New(s, offset)
	w.SetRoot(m.presenter.CreateNode(fmt.Sprintf("World_%d", seed), mgl32.Vec3{}))

	runCtx, cancel := context.WithCancel(ctx)
	r := newRun(id, w, cancel)

	m.mu.Lock()
	m.current = r
	m.mu.Unlock()
	m.state.Store(int32(StateRunning))

	for _, n := range notes {
		m.recordFault(r, Fault{RunID: id, Kind: FaultConfig, Message: n})
	}
	m.log.Printf("run %d: generating %dx%d chunks of size %d (seed=%q combined=%d)",
		id, s.WorldSizeInChunks, s.WorldSizeInChunks, s.ChunkSize, s.Seed, seed)
	m.emit(Event{Kind: EventGenerateStart, RunID: id, Seed: s.Seed, CombinedSeed: seed, Chunks: r.total})
	if m.opts.OnWorld != nil {
		m.opts.OnWorld(w)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		r.generate(runCtx, rng)
	}()
	return nil
}

// ClearExistingWorld cancels the current run and destroys its scene root.
// Output the cancelled run already queued is never drained.
func (m *Master) ClearExistingWorld() {
	m.mu.Lock()
	r := m.current
	m.current = nil
	m.mu.Unlock()
	if r == nil {
		return
	}
	r.cancel()
	m.presenter.Destroy(r.world.Root())
	m.state.Store(int32(StateIdle))
	m.emit(Event{Kind: EventCleared, RunID: r.id})
	if m.opts.OnWorld != nil {
		m.opts.OnWorld(nil)
	}
}

// SetChunkVisibility shows or hides every chunk of a finished world.
func (m *Master) SetChunkVisibility(visible bool) {
	w := m.World()
	if w == nil || m.Running() {
		return
	}
	w.SetVisible(visible)
}

// Close cancels the current run and waits for background work to stop.
func (m *Master) Close() {
	m.mu.Lock()
	r := m.current
	m.mu.Unlock()
	if r != nil {
		r.cancel()
	}
	m.wg.Wait()
}

func (m *Master) recordFault(r *run, f Fault) {
	if f.At.IsZero() {
		f.At = time.Now().UTC()
	}
	if f.Chunk != "" {
		m.log.Printf("run %d: %s fault at chunk %s: %s", f.RunID, f.Kind, f.Chunk, f.Message)
	} else {
		m.log.Printf("run %d: %s fault: %s", f.RunID, f.Kind, f.Message)
	}
	if r != nil {
		r.faultCount++
	}
	m.mu.Lock()
	m.faults = append(m.faults, f)
	if over := len(m.faults) - maxRetainedFaults; over > 0 {
		m.faults = append(m.faults[:0], m.faults[over:]...)
	}
	m.mu.Unlock()
	m.emit(Event{Kind: EventFault, RunID: f.RunID, FaultKind: string(f.Kind), Chunk: f.Chunk, Message: f.Message})
}

func (m *Master) emit(e Event) {
	if m.opts.Events == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	if err := m.opts.Events.WriteEvent(e); err != nil {
		m.log.Printf("event log: %v", err)
	}
}
