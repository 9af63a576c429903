package master

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/shariarpapon/everime-world-generator/internal/sim/mathx"
	"github.com/shariarpapon/everime-world-generator/internal/sim/world"
	"github.com/shariarpapon/everime-world-generator/internal/sim/world/terrain/heightmap"
	"github.com/shariarpapon/everime-world-generator/internal/sim/world/terrain/noise"
)

const noiseSeedSalt = 0x6e6f697365

// NoiseSeed derives the noise field seed of a world from its combined seed.
func NoiseSeed(combinedSeed int64) int64 {
	return mathx.DeriveSeed(combinedSeed, noiseSeedSalt)
}

// run owns one generation: its world, its handoff queues and its
// cancellation. Superseded runs are dropped whole, queues included.
type run struct {
	id      uint64
	world   *world.World
	cancel  context.CancelFunc
	total   int
	started time.Time

	chunks *Queue[*world.Chunk]
	spawns *Queue[SpawnObject]
	faults *Queue[Fault]

	drained atomic.Int64

	// Presentation goroutine only.
	spawned    []SpawnObject
	faultCount int
	done       bool
}

func newRun(id uint64, w *world.World, cancel context.CancelFunc) *run {
	n := w.Settings().WorldSizeInChunks
	return &run{
		id:      id,
		world:   w,
		cancel:  cancel,
		total:   n * n,
		started: time.Now(),
		chunks:  NewQueue[*world.Chunk](),
		spawns:  NewQueue[SpawnObject](),
		faults:  NewQueue[Fault](),
	}
}

func (r *run) fault(kind FaultKind, c world.ChunkCoord, format string, args ...any) {
	r.faults.Enqueue(Fault{
		RunID:   r.id,
		Kind:    kind,
		Chunk:   c.String(),
		Message: fmt.Sprintf(format, args...),
		At:      time.Now().UTC(),
	})
}

// generate runs both passes. The first samples raw heights for every chunk and
// accumulates the world extremum; the second needs that extremum to normalize,
// then meshes each chunk, picks its spawn sites and queues both for the drain.
func (r *run) generate(ctx context.Context, rng *rand.Rand) {
	defer func() {
		if p := recover(); p != nil {
			r.fault(FaultInternal, world.ChunkCoord{}, "generation stopped: %v", p)
		}
	}()

	s := r.world.Settings()
	n := s.ChunkSize + 1
	off := r.world.NoiseOffset()
	src := noise.New(NoiseSeed(r.world.CombinedSeed()), s.Noise.Source)
	ext := heightmap.NewExtremum()

	size := s.WorldSizeInChunks
	for x := 0; x < size; x++ {
		for y := 0; y < size; y++ {
			if ctx.Err() != nil {
				return
			}
			coord := world.ChunkCoord{X: x, Y: y}
			global := r.world.RelativeToGlobalChunkPosition(coord)
			raw, _ := heightmap.Generate(n,
				float64(off.X())+float64(global.X()),
				float64(off.Y())+float64(global.Z()),
				src, s.Noise, &ext)
			r.world.AddChunk(world.NewChunk(world.ChunkData{
				Heights:        raw,
				Coord:          coord,
				GlobalPosition: global,
				Material:       s.ChunkMaterial,
			}, s.VisibleByDefault))
		}
	}

	unitSize := float32(s.WorldUnitSize())
	for x := 0; x < size; x++ {
		for y := 0; y < size; y++ {
			if ctx.Err() != nil {
				return
			}
			coord := world.ChunkCoord{X: x, Y: y}
			c := r.world.Chunk(coord)
			if s.Height.RadialFalloff {
				f, centerHit := heightmap.NormalizeWithFalloff(c.Heights(), ext, c.GlobalPosition(), unitSize)
				if centerHit {
					r.fault(FaultNumeric, coord, "falloff distance is zero at the world center; height clamped to 1")
				}
				c.SetHeights(f)
			} else {
				c.SetHeights(heightmap.Normalize(c.Heights(), ext))
			}
			c.BuildMesh(s.Height)
			if err := c.Mesh().Validate(); err != nil {
				r.fault(FaultData, coord, "mesh: %v", err)
			}

			// Spawn sites are queued ahead of their chunk so that draining the
			// last chunk also finds every spawn.
			for _, sp := range selectSpawns(rng, c, s.Spawn, r.id) {
				r.spawns.Enqueue(sp)
			}
			r.chunks.Enqueue(c)
		}
	}
}
