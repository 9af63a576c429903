package master

import (
	"encoding/hex"
	"time"

	"github.com/shariarpapon/everime-world-generator/internal/sim/world"
)

// Drain instantiates everything the background run has released so far.
// It is a no-op when no run is in progress and must be called from the
// presentation goroutine.
func (m *Master) Drain() {
	m.mu.Lock()
	r := m.current
	m.mu.Unlock()
	if r == nil || r.done {
		return
	}

	s := r.world.Settings()
	root := r.world.Root()
	opts := world.RenderOptions{Material: s.ChunkMaterial, Collider: s.GenerateCollider}

	for _, c := range r.chunks.Drain(0) {
		c.Instantiate(m.presenter, root, opts)
		r.drained.Add(1)
	}
	if r.drained.Load() > 0 {
		m.state.CompareAndSwap(int32(StateRunning), int32(StateDraining))
	}

	for _, sp := range r.spawns.Drain(0) {
		if sp.Template == "" {
			m.recordFault(r, Fault{RunID: r.id, Kind: FaultData, Chunk: sp.Chunk.Coord().String(), Message: "spawn object template is empty"})
			continue
		}
		// The chunk may still be in flight; its node is created here and
		// reused when the chunk itself is drained.
		parent := sp.Chunk.Node(m.presenter, root)
		if _, err := m.presenter.Instantiate(sp.Template, sp.Position, sp.Rotation, parent); err != nil {
			m.recordFault(r, Fault{RunID: r.id, Kind: FaultData, Chunk: sp.Chunk.Coord().String(), Message: err.Error()})
			continue
		}
		r.spawned = append(r.spawned, sp)
	}

	for _, f := range r.faults.Drain(0) {
		m.recordFault(r, f)
	}

	if int(r.drained.Load()) >= r.total {
		r.done = true
		m.state.Store(int32(StateIdle))
		m.complete(r)
	}
}

// Spawns returns the spawn objects instantiated for the current world.
func (m *Master) Spawns() []SpawnObject {
	m.mu.Lock()
	r := m.current
	m.mu.Unlock()
	if r == nil {
		return nil
	}
	return append([]SpawnObject(nil), r.spawned...)
}

func (m *Master) complete(r *run) {
	now := time.Now()
	sum := Summary{
		RunID:        r.id,
		World:        r.world,
		Seed:         r.world.Settings().Seed,
		CombinedSeed: r.world.CombinedSeed(),
		Chunks:       int(r.drained.Load()),
		Spawns:       append([]SpawnObject(nil), r.spawned...),
		Faults:       r.faultCount,
		Digest:       r.world.Digest(),
		Started:      r.started,
		Completed:    now,
	}
	elapsed := now.Sub(r.started)
	m.log.Printf("run %d: world generation complete: %d chunks, %d spawns, %d faults in %s",
		r.id, sum.Chunks, len(sum.Spawns), sum.Faults, elapsed.Round(time.Millisecond))
	m.emit(Event{
		Kind:         EventComplete,
		RunID:        r.id,
		Seed:         sum.Seed,
		CombinedSeed: sum.CombinedSeed,
		Chunks:       sum.Chunks,
		Spawns:       len(sum.Spawns),
		Faults:       sum.Faults,
		Digest:       hex.EncodeToString(sum.Digest[:]),
		ElapsedMS:    elapsed.Milliseconds(),
	})
	if m.opts.OnComplete != nil {
		m.opts.OnComplete(sum)
	}
}
