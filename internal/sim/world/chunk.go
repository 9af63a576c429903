package world

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/shariarpapon/everime-world-generator/internal/sim/world/terrain/heightmap"
	"github.com/shariarpapon/everime-world-generator/internal/sim/world/terrain/mesh"
)

type ChunkCoord struct {
	X int
	Y int
}

func (c ChunkCoord) String() string { return fmt.Sprintf("%d,%d", c.X, c.Y) }

type ChunkData struct {
	Heights        *heightmap.Field
	Coord          ChunkCoord
	GlobalPosition mgl32.Vec3
	Material       string
}

// Chunk is written by the generating goroutine until it is handed to the
// presentation goroutine, and only touched by the latter afterwards.
type Chunk struct {
	data ChunkData
	mesh *mesh.Data

	visible      bool
	presenter    Presenter
	node         Handle
	instantiated bool
}

func NewChunk(data ChunkData, visibleByDefault bool) *Chunk {
	return &Chunk{data: data, visible: visibleByDefault}
}

func (c *Chunk) Coord() ChunkCoord             { return c.data.Coord }
func (c *Chunk) GlobalPosition() mgl32.Vec3    { return c.data.GlobalPosition }
func (c *Chunk) Material() string              { return c.data.Material }
func (c *Chunk) Heights() *heightmap.Field     { return c.data.Heights }
func (c *Chunk) SetHeights(f *heightmap.Field) { c.data.Heights = f }
func (c *Chunk) Mesh() *mesh.Data              { return c.mesh }
func (c *Chunk) SetMesh(m *mesh.Data)          { c.mesh = m }
func (c *Chunk) Visible() bool                 { return c.visible }
func (c *Chunk) Instantiated() bool            { return c.instantiated }
func (c *Chunk) NodeHandle() Handle            { return c.node }

func (c *Chunk) BuildMesh(h HeightSettings) {
	c.mesh = mesh.Build(c.data.Heights, h.Multiplier, h.Curve, h.Gradient, h.Law)
}

// Node returns the chunk's presentation node, creating it under parent on
// first use.
func (c *Chunk) Node(p Presenter, parent Handle) Handle {
	if c.node != NoHandle {
		return c.node
	}
	c.presenter = p
	c.node = p.CreateNode("Chunk "+c.data.Coord.String(), c.data.GlobalPosition)
	if parent != NoHandle {
		p.Attach(c.node, parent)
	}
	p.SetActive(c.node, c.visible)
	return c.node
}

// Instantiate attaches the chunk's geometry to its node. Repeated calls are no-ops.
func (c *Chunk) Instantiate(p Presenter, parent Handle, opts RenderOptions) {
	if c.instantiated {
		return
	}
	node := c.Node(p, parent)
	if c.mesh != nil {
		if opts.Material == "" {
			opts.Material = c.data.Material
		}
		r := p.CreateRenderable(c.mesh, opts)
		p.Attach(r, node)
	}
	c.instantiated = true
	p.SetActive(node, c.visible)
}

func (c *Chunk) SetVisible(visible bool) {
	c.visible = visible
	if c.node != NoHandle && c.presenter != nil {
		c.presenter.SetActive(c.node, visible)
	}
}

// Digest hashes the height field and mesh buffers.
func (c *Chunk) Digest() [32]byte {
	h := sha256.New()
	var tmp [8]byte
	putF := func(v float32) {
		binary.LittleEndian.PutUint32(tmp[:4], math.Float32bits(v))
		h.Write(tmp[:4])
	}
	binary.LittleEndian.PutUint64(tmp[:], uint64(int64(c.data.Coord.X)))
	h.Write(tmp[:])
	binary.LittleEndian.PutUint64(tmp[:], uint64(int64(c.data.Coord.Y)))
	h.Write(tmp[:])
	if c.data.Heights != nil {
		for _, v := range c.data.Heights.Values {
			putF(v)
		}
	}
	if m := c.mesh; m != nil {
		for _, v := range m.Vertices {
			putF(v[0])
			putF(v[1])
			putF(v[2])
		}
		for _, v := range m.UV {
			putF(v[0])
			putF(v[1])
		}
		for _, v := range m.Colors {
			putF(v[0])
			putF(v[1])
			putF(v[2])
			putF(v[3])
		}
		for _, idx := range m.Triangles {
			binary.LittleEndian.PutUint32(tmp[:4], uint32(idx))
			h.Write(tmp[:4])
		}
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
