package visibility

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// ChunkUpdateData is one slot of the visibility window.
type ChunkUpdateData struct {
	Coord     mgl32.Vec2
	SetActive int32
}

// ChunkUpdateDataSize is the byte stride of one slot: two floats and an int.
const ChunkUpdateDataSize = 4*2 + 4

// Unassigned marks a slot no sweep has written yet. Negative coordinates never
// name a chunk.
var Unassigned = mgl32.Vec2{-1, -1}

func (d ChunkUpdateData) Assigned() bool {
	return d.Coord.X() >= 0 && d.Coord.Y() >= 0
}

// ComputeBuffer is device-side slot storage. Host data crosses only through
// SetData and GetData.
type ComputeBuffer struct {
	data     []ChunkUpdateData
	stride   int
	released bool
}

func NewComputeBuffer(count, stride int) *ComputeBuffer {
	return &ComputeBuffer{data: make([]ChunkUpdateData, count), stride: stride}
}

func (b *ComputeBuffer) Count() int  { return len(b.data) }
func (b *ComputeBuffer) Stride() int { return b.stride }

func (b *ComputeBuffer) SetData(src []ChunkUpdateData) error {
	if b.released {
		return ErrBufferReleased
	}
	if len(src) != len(b.data) {
		return fmt.Errorf("set data: %d slots into buffer of %d", len(src), len(b.data))
	}
	copy(b.data, src)
	return nil
}

func (b *ComputeBuffer) GetData(dst []ChunkUpdateData) error {
	if b.released {
		return ErrBufferReleased
	}
	if len(dst) != len(b.data) {
		return fmt.Errorf("get data: buffer of %d into %d slots", len(b.data), len(dst))
	}
	copy(dst, b.data)
	return nil
}

func (b *ComputeBuffer) Release() {
	b.released = true
	b.data = nil
}
