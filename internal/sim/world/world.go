// Package world holds a generated terrain world: its settings, its chunk grid
// and the conversions between world space and chunk coordinates.
package world

import (
	"crypto/sha256"
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/shariarpapon/everime-world-generator/internal/sim/mathx"
)

type World struct {
	settings     *WorldSettings
	combinedSeed int64
	noiseOffset  mgl32.Vec2

	mu     sync.RWMutex
	chunks map[ChunkCoord]*Chunk
	root   Handle
}

// New takes ownership of settings; callers pass a clone.
func New(settings *WorldSettings, noiseOffset mgl32.Vec2) *World {
	return &World{
		settings:     settings,
		combinedSeed: settings.CombinedSeed(),
		noiseOffset:  noiseOffset,
		chunks:       make(map[ChunkCoord]*Chunk, settings.WorldSizeInChunks*settings.WorldSizeInChunks),
	}
}

func (w *World) Settings() *WorldSettings { return w.settings }
func (w *World) CombinedSeed() int64      { return w.combinedSeed }
func (w *World) NoiseOffset() mgl32.Vec2  { return w.noiseOffset }

func (w *World) Root() Handle {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.root
}

func (w *World) SetRoot(h Handle) {
	w.mu.Lock()
	w.root = h
	w.mu.Unlock()
}

func (w *World) AddChunk(c *Chunk) {
	w.mu.Lock()
	w.chunks[c.Coord()] = c
	w.mu.Unlock()
}

func (w *World) Chunk(c ChunkCoord) *Chunk {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.chunks[c]
}

func (w *World) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.chunks)
}

// ChunkCoords returns the loaded coordinates sorted by X then Y.
func (w *World) ChunkCoords() []ChunkCoord {
	w.mu.RLock()
	keys := make([]ChunkCoord, 0, len(w.chunks))
	for k := range w.chunks {
		keys = append(keys, k)
	}
	w.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].X != keys[j].X {
			return keys[i].X < keys[j].X
		}
		return keys[i].Y < keys[j].Y
	})
	return keys
}

// RelativeToGlobalChunkPosition maps a chunk coordinate to its world-space origin.
func (w *World) RelativeToGlobalChunkPosition(c ChunkCoord) mgl32.Vec3 {
	size := float32(w.settings.ChunkSize)
	return mgl32.Vec3{float32(c.X) * size, 0, float32(c.Y) * size}.Add(w.settings.WorldOffset)
}

// GlobalToRelativeChunkPosition maps a world-space point to the nearest chunk
// coordinate, clamped to the world grid.
func (w *World) GlobalToRelativeChunkPosition(p mgl32.Vec3) ChunkCoord {
	size := float32(w.settings.ChunkSize)
	off := w.settings.WorldOffset
	maxIdx := w.settings.WorldSizeInChunks - 1
	return ChunkCoord{
		X: mathx.ClampInt(mathx.RoundToInt((p.X()-off.X())/size), 0, maxIdx),
		Y: mathx.ClampInt(mathx.RoundToInt((p.Z()-off.Z())/size), 0, maxIdx),
	}
}

// Digest hashes every chunk digest in coordinate order.
func (w *World) Digest() [32]byte {
	h := sha256.New()
	for _, k := range w.ChunkCoords() {
		d := w.Chunk(k).Digest()
		h.Write(d[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// SetVisible applies one visibility flag to every chunk.
func (w *World) SetVisible(visible bool) {
	for _, k := range w.ChunkCoords() {
		w.Chunk(k).SetVisible(visible)
	}
}
