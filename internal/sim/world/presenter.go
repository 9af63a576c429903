package world

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/shariarpapon/everime-world-generator/internal/sim/world/terrain/mesh"
)

// Handle identifies a presentation node. The zero Handle is never issued.
type Handle uint64

const NoHandle Handle = 0

type RenderOptions struct {
	Material string
	Collider bool
}

// Presenter builds the scene that mirrors a world. Every call happens on the
// presentation goroutine.
type Presenter interface {
	CreateNode(name string, position mgl32.Vec3) Handle
	CreateRenderable(m *mesh.Data, opts RenderOptions) Handle
	Attach(child, parent Handle)
	Instantiate(template string, position mgl32.Vec3, rotation mgl32.Quat, parent Handle) (Handle, error)
	SetActive(h Handle, active bool)
	Destroy(h Handle)
}
