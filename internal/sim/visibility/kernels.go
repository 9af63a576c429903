package visibility

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// ThreadGroupSize is the kernel thread-group edge; the window edge must be a
// multiple of it.
const ThreadGroupSize = 16

var (
	ErrUnknownKernel  = errors.New("unknown kernel")
	ErrBufferReleased = errors.New("compute buffer released")
)

type Uniforms struct {
	// ViewerPosition is relative to the world offset.
	ViewerPosition        mgl32.Vec3
	ViewerChunkCoord      [2]int32
	MaxViewDistance       float32
	ChunkSize             float32
	ChunkExtent           float32
	ChunksVisibleRadially int32
	VisibleChunksPerAxis  int32
}

type ThreadID struct {
	X int
	Y int
}

type KernelID int

const (
	KernelCheckPreviouslyActiveChunks KernelID = iota
	KernelCheckSurroundingChunks
)

type kernelFunc func(id ThreadID, slots []ChunkUpdateData, u *Uniforms)

var kernels = map[KernelID]kernelFunc{
	KernelCheckPreviouslyActiveChunks: checkPreviouslyActiveChunks,
	KernelCheckSurroundingChunks:      checkSurroundingChunks,
}

var kernelNames = map[string]KernelID{
	"CheckPreviouslyActiveChunks": KernelCheckPreviouslyActiveChunks,
	"CheckSurroundingChunks":      KernelCheckSurroundingChunks,
}

func FindKernel(name string) (KernelID, error) {
	id, ok := kernelNames[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownKernel, name)
	}
	return id, nil
}

func slotIndex(id ThreadID, u *Uniforms) int {
	return id.X*int(u.VisibleChunksPerAxis) + id.Y
}

// checkPreviouslyActiveChunks re-evaluates an already assigned slot against
// the current viewer position.
func checkPreviouslyActiveChunks(id ThreadID, slots []ChunkUpdateData, u *Uniforms) {
	i := slotIndex(id, u)
	if i >= len(slots) || !slots[i].Assigned() {
		return
	}
	slots[i].SetActive = boolToInt(withinView(slots[i].Coord, u))
}

// checkSurroundingChunks assigns the slot its coordinate in the window
// centered on the viewer's chunk and evaluates it.
func checkSurroundingChunks(id ThreadID, slots []ChunkUpdateData, u *Uniforms) {
	i := slotIndex(id, u)
	if i >= len(slots) {
		return
	}
	coord := mgl32.Vec2{
		float32(u.ViewerChunkCoord[0] + int32(id.X) - u.ChunksVisibleRadially),
		float32(u.ViewerChunkCoord[1] + int32(id.Y) - u.ChunksVisibleRadially),
	}
	slots[i] = ChunkUpdateData{Coord: coord, SetActive: boolToInt(withinView(coord, u))}
}

// withinView measures from the viewer to the nearest point of the chunk's
// square footprint.
func withinView(coord mgl32.Vec2, u *Uniforms) bool {
	cx := coord.X() * u.ChunkSize
	cz := coord.Y() * u.ChunkSize
	dx := math.Max(math.Abs(float64(u.ViewerPosition.X()-cx))-float64(u.ChunkExtent), 0)
	dz := math.Max(math.Abs(float64(u.ViewerPosition.Z()-cz))-float64(u.ChunkExtent), 0)
	return math.Sqrt(dx*dx+dz*dz) <= float64(u.MaxViewDistance)
}

func boolToInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
